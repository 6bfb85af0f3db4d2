package preview

import (
	"regexp"
	"strings"
)

// GlobalName is the window property that carries the root component from
// the rewritten module code to the mounting code.
const GlobalName = "App"

// globalFallback is appended to component modules without a default export.
const globalFallback = "\nif (typeof App !== \"undefined\" && !window.App) { window.App = App; }"

// Pattern is one recognised import statement shape.
type Pattern struct {
	Name       string
	Specifiers []string
	re         *regexp.Regexp
}

// Match reports whether src contains the statement shape.
func (p Pattern) Match(src string) bool {
	return p.re.MatchString(src)
}

// importPattern matches `import <bindings> from '<module>'` starting a line.
// The bindings may span lines and carry comments, but outside a comment they
// never contain a terminator or a quote, so a match cannot swallow a
// neighbouring statement.
func importPattern(name string, specifiers ...string) Pattern {
	alts := make([]string, 0, len(specifiers)*2)
	for _, s := range specifiers {
		q := regexp.QuoteMeta(s)
		alts = append(alts, `'`+q+`'`, `"`+q+`"`)
	}
	bindings := `(?:[^;'"/]|//[^\n]*|/\*[\s\S]*?\*/)*?`
	expr := `(?m)^import\s+` + bindings + `\bfrom\s*(?:` + strings.Join(alts, "|") + `)[ \t]*;?`
	return Pattern{
		Name:       name,
		Specifiers: specifiers,
		re:         regexp.MustCompile(expr),
	}
}

var importPatterns = []Pattern{
	importPattern("framework", "react"),
	importPattern("renderer", "react-dom", "react-dom/client"),
	importPattern("component", "./App", "./App.jsx"),
}

var defaultExport = regexp.MustCompile(`(?m)^([ \t]*)export\s+default\s+`)

// Patterns returns the import statement shapes removed by the rewriter.
func Patterns() []Pattern {
	return append([]Pattern(nil), importPatterns...)
}

// StripImports removes every recognised import statement. Other imports are
// left byte-for-byte.
func StripImports(src string) string {
	for _, p := range importPatterns {
		src = p.re.ReplaceAllString(src, "")
	}
	return src
}

// HasDefaultExport reports whether src has a line-anchored default export.
func HasDefaultExport(src string) bool {
	return defaultExport.MatchString(src)
}

// RewriteEntry prepares the entry script for global-scope execution.
func RewriteEntry(src string) string {
	return StripImports(src)
}

// RewriteComponent prepares the component module. The first default export
// becomes an assignment to window.App; without one a guarded assignment from
// a same-named local binding is appended.
func RewriteComponent(src string) string {
	src = StripImports(src)

	loc := defaultExport.FindStringSubmatchIndex(src)
	if loc == nil {
		return src + globalFallback
	}

	indent := src[loc[2]:loc[3]]
	return src[:loc[0]] + indent + "window." + GlobalName + " = " + src[loc[1]:]
}

// Rewrite applies the rewriter to both scripts.
func Rewrite(entry, component string) (string, string) {
	return RewriteEntry(entry), RewriteComponent(component)
}
