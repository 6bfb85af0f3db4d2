package templates

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

// DefaultID names the built-in starter template.
const DefaultID = "default"

var (
	ErrNotFound  = errors.New("template not found")
	ErrDuplicate = errors.New("template already registered")
)

// Template is a named starter project.
type Template struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Title       string        `json:"title"`
	Files       project.Files `json:"files"`
	Source      string        `json:"source"`
}

// Catalog holds the starter templates offered to new workspaces.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]Template // Protected by mu
}

// NewCatalog creates a catalog holding only the built-in template.
func NewCatalog() *Catalog {
	c := &Catalog{templates: make(map[string]Template)}
	c.templates[DefaultID] = Template{
		ID:          DefaultID,
		Name:        "React Counter",
		Description: "Counter component with Tailwind, Font Awesome and canvas-confetti",
		Title:       project.NewTitle,
		Files:       project.DefaultFiles(),
		Source:      "builtin",
	}
	return c
}

// Register validates and adds a template. Its files are laid over the
// built-in ones, so required files stay in canonical order.
func (c *Catalog) Register(t Template) error {
	if err := utils.ValidateID(t.ID, "template id"); err != nil {
		return err
	}
	if t.Name == "" {
		return fmt.Errorf("template %s: name is required", t.ID)
	}
	for _, name := range t.Files.Names() {
		if err := utils.ValidateFileName(name); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
		if err := utils.ValidateFileContent(name, t.Files.Content(name)); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
	}
	if t.Files.Len() > utils.MaxProjectFiles {
		return fmt.Errorf("template %s: %d files exceeds maximum %d", t.ID, t.Files.Len(), utils.MaxProjectFiles)
	}
	merged := project.DefaultFiles()
	for _, name := range t.Files.Names() {
		merged.Set(name, t.Files.Content(name))
	}
	t.Files = merged
	t.Title = project.SanitizeTitle(t.Title)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.templates[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.ID)
	}
	c.templates[t.ID] = t
	return nil
}

// Get returns a template with an independent copy of its files.
func (c *Catalog) Get(id string) (Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Files = t.Files.Clone()
	return t, nil
}

// List returns all templates, the built-in one first and the rest by id.
func (c *Catalog) List() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		t.Files = t.Files.Clone()
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].ID == DefaultID) != (out[j].ID == DefaultID) {
			return out[i].ID == DefaultID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}
