package preview

import (
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

// Document is the compiled, self-contained preview document.
type Document struct {
	HTML         string       `json:"html"`
	Dependencies []Dependency `json:"dependencies"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
	ETag         string       `json:"etag"`
}

// Compiler runs the preview pipeline: rewrite, resolve, assemble.
type Compiler struct {
	resolver *Resolver
	hasher   *utils.Hasher
	logger   *zap.Logger
}

// NewCompiler creates a compiler resolving dependencies against cdnHost.
func NewCompiler(cdnHost string, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		resolver: NewResolver(cdnHost, logger),
		hasher:   utils.DefaultHasher(),
		logger:   logger,
	}
}

// Resolver returns the dependency resolver in use.
func (c *Compiler) Resolver() *Resolver {
	return c.resolver
}

// Compile turns project files into one document. It is a pure function of
// the files and never fails; problems are reported as diagnostics.
func (c *Compiler) Compile(files project.Files) Document {
	entry, component := Rewrite(
		files.Content(project.EntryFile),
		files.Content(project.ComponentFile),
	)
	deps, diags := c.resolver.Resolve(files.Content(project.DescriptorFile))

	html, injected := Assemble(Parts{
		Shell:        files.Content(project.ShellFile),
		Entry:        entry,
		Component:    component,
		Stylesheet:   files.Content(project.StylesheetFile),
		Dependencies: deps,
	})
	if !injected {
		c.logger.Warn("Shell has no closing body tag, appending runtime")
		diags = append(diags, Diagnostic{
			File:    project.ShellFile,
			Message: "no closing </body> tag; runtime appended to the end of the document",
		})
	}

	etag := c.hasher.HashString(html)
	c.logger.Debug("Compiled document",
		zap.String("etag", utils.ShortHash(etag)),
		zap.Int("bytes", len(html)),
		zap.Int("dependencies", len(deps)),
		zap.Int("diagnostics", len(diags)),
	)

	return Document{
		HTML:         html,
		Dependencies: deps,
		Diagnostics:  diags,
		ETag:         etag,
	}
}
