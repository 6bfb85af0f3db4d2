package preview

import (
	"fmt"
	"regexp"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	"go.uber.org/zap"
)

// DefaultCDNHost serves user-declared dependencies.
const DefaultCDNHost = "unpkg.com"

const maxPackageNameLength = 214

// runtimePackages are already supplied by the runtime bundle.
var runtimePackages = map[string]bool{
	"react":     true,
	"react-dom": true,
}

// packageName accepts plain and scoped npm package names.
var packageName = regexp.MustCompile(`^(?:@[A-Za-z0-9~-][A-Za-z0-9._~-]*/)?[A-Za-z0-9~-][A-Za-z0-9._~-]*$`)

// Dependency is one external script reference.
type Dependency struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ScriptTag renders the dependency as a classic script element.
func (d Dependency) ScriptTag() string {
	return `<script src="` + d.URL + `"></script>`
}

// Diagnostic is a non-fatal problem found while compiling.
type Diagnostic struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Resolver turns a dependency descriptor into CDN script references.
type Resolver struct {
	host   string
	logger *zap.Logger
}

// NewResolver creates a resolver for the given CDN host.
func NewResolver(host string, logger *zap.Logger) *Resolver {
	if host == "" {
		host = DefaultCDNHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{host: host, logger: logger}
}

// Host returns the CDN host.
func (r *Resolver) Host() string {
	return r.host
}

// Resolve returns the declared dependencies in declaration order, minus the
// runtime-provided packages. It never fails: malformed input yields an empty
// list and a diagnostic.
func (r *Resolver) Resolve(descriptor string) ([]Dependency, []Diagnostic) {
	if !sonic.ValidString(descriptor) {
		return nil, r.invalid("malformed JSON")
	}

	root, err := sonic.GetFromString(descriptor)
	if err != nil {
		return nil, r.invalid(err.Error())
	}
	if root.TypeSafe() != ast.V_OBJECT {
		return nil, r.invalid("descriptor is not an object")
	}

	deps := root.Get("dependencies")
	if !deps.Exists() || deps.TypeSafe() == ast.V_NULL {
		return nil, nil
	}
	it, err := deps.Properties()
	if err != nil {
		return nil, r.invalid("dependencies is not an object")
	}

	var (
		out   []Dependency
		diags []Diagnostic
		seen  = make(map[string]bool)
		pair  ast.Pair
	)
	for it.Next(&pair) {
		name := pair.Key
		if runtimePackages[name] || seen[name] {
			continue
		}
		seen[name] = true

		if len(name) > maxPackageNameLength || !packageName.MatchString(name) {
			msg := fmt.Sprintf("skipping invalid package name %q", name)
			r.logger.Warn("Invalid dependency name", zap.String("name", name))
			diags = append(diags, Diagnostic{File: "package.json", Message: msg})
			continue
		}

		out = append(out, Dependency{
			Name: name,
			URL:  "https://" + r.host + "/" + name,
		})
	}
	return out, diags
}

func (r *Resolver) invalid(reason string) []Diagnostic {
	r.logger.Warn("Invalid package.json", zap.String("reason", reason))
	return []Diagnostic{{File: "package.json", Message: "Invalid package.json: " + reason}}
}
