package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

// ManifestPattern matches template manifest file names.
const ManifestPattern = "template.{toml,yaml,yml}"

// manifest is the on-disk description of a template directory. Files maps
// project file names to paths relative to the manifest; when empty, every
// sibling source file is taken under its own name.
type manifest struct {
	ID          string            `toml:"id" yaml:"id"`
	Name        string            `toml:"name" yaml:"name"`
	Description string            `toml:"description" yaml:"description"`
	Title       string            `toml:"title" yaml:"title"`
	Files       map[string]string `toml:"files" yaml:"files"`
}

// Stats counts the outcome of a seeding pass.
type Stats struct {
	Loaded int `json:"loaded"`
	Failed int `json:"failed"`
}

// Seeder loads starter templates from disk into a catalog.
type Seeder struct {
	catalog *Catalog
	dir     string
	logger  *zap.Logger
}

// NewSeeder creates a seeder reading template manifests under dir.
func NewSeeder(catalog *Catalog, dir string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{catalog: catalog, dir: dir, logger: logger}
}

// Seed walks the templates directory and registers every manifest found.
// A missing directory is not an error; a bad template is logged and skipped.
func (s *Seeder) Seed(ctx context.Context) (Stats, error) {
	var stats Stats

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		s.logger.Warn("Templates directory not found", zap.String("dir", s.dir))
		return stats, nil
	}

	manifests, err := s.find(ctx)
	if err != nil {
		return stats, fmt.Errorf("walk templates: %w", err)
	}

	for _, path := range manifests {
		t, err := s.load(path)
		if err == nil {
			err = s.catalog.Register(t)
		}
		if err != nil {
			s.logger.Warn("Failed to load template", zap.String("manifest", path), zap.Error(err))
			stats.Failed++
			continue
		}
		s.logger.Debug("Loaded template", zap.String("id", t.ID), zap.String("manifest", path))
		stats.Loaded++
	}

	s.logger.Info("Seeding templates complete",
		zap.String("dir", s.dir),
		zap.Int("loaded", stats.Loaded),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// find returns manifest paths in lexical order. fastwalk calls back from
// several goroutines, so matches are collected under a lock.
func (s *Seeder) find(ctx context.Context) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, s.dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}
		if ok, _ := doublestar.Match(ManifestPattern, d.Name()); ok {
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

func (s *Seeder) load(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, err
	}

	var m manifest
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return Template{}, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ID == "" || m.Name == "" {
		return Template{}, fmt.Errorf("manifest missing required fields (id, name)")
	}

	dir := filepath.Dir(path)
	sources := m.Files
	if len(sources) == 0 {
		if sources, err = siblingSources(dir, filepath.Base(path)); err != nil {
			return Template{}, err
		}
	}

	contents := make(map[string]string, len(sources))
	for name, rel := range sources {
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return Template{}, fmt.Errorf("%s: path %q escapes the template directory", name, rel)
		}
		raw, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			return Template{}, fmt.Errorf("%s: %w", name, err)
		}
		if err := checkEncoding(name, raw); err != nil {
			return Template{}, err
		}
		contents[name] = string(raw)
	}

	title := m.Title
	if title == "" {
		title = project.NewTitle
	}
	return Template{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Title:       title,
		Files:       project.FilesFromMap(contents),
		Source:      path,
	}, nil
}

// siblingSources lists the source files next to a manifest.
func siblingSources(dir, manifestName string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestName {
			continue
		}
		if utils.ValidateFileName(e.Name()) == nil {
			out[e.Name()] = e.Name()
		}
	}
	return out, nil
}

// checkEncoding rejects sources that are not UTF-8, naming the charset
// they appear to be in.
func checkEncoding(name string, data []byte) error {
	if utf8.Valid(data) {
		return nil
	}
	detected := "unknown"
	if result, err := chardet.NewTextDetector().DetectBest(data); err == nil && result != nil {
		detected = strings.ToLower(result.Charset)
	}
	return fmt.Errorf("%s: content is not UTF-8 (detected %s)", name, detected)
}
