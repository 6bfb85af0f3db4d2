package preview

import (
	"regexp"
	"strings"
)

var (
	closingBody   = regexp.MustCompile(`(?i)</body\s*>`)
	closingScript = regexp.MustCompile(`(?i)</script`)
	closingStyle  = regexp.MustCompile(`(?i)</style`)
)

// Parts are the inputs of one document assembly.
type Parts struct {
	Shell        string
	Entry        string
	Component    string
	Stylesheet   string
	Dependencies []Dependency
}

// Fragment builds the runtime bundle, style block, error harness and app
// block that get injected into the shell.
func Fragment(p Parts) string {
	var b strings.Builder

	b.WriteString(coreLibraries)
	for i, dep := range p.Dependencies {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(dep.ScriptTag())
	}

	b.WriteString(styleOpen)
	b.WriteString(closingStyle.ReplaceAllStringFunc(p.Stylesheet, escapeTag))
	b.WriteString(overlayStyle)
	b.WriteString(errorHarness)

	b.WriteString(appBlockOpen)
	b.WriteString(escapeScript(p.Component))
	b.WriteString(exportFallbacks)
	b.WriteString(escapeScript(p.Entry))
	b.WriteString(appBlockClose)

	return b.String()
}

// Assemble injects the fragment before the first closing body tag of the
// shell, or appends it when the shell has none. The second result reports
// whether a closing body tag was found.
func Assemble(p Parts) (string, bool) {
	fragment := Fragment(p)

	loc := closingBody.FindStringIndex(p.Shell)
	if loc == nil {
		return p.Shell + fragment, false
	}
	return p.Shell[:loc[0]] + fragment + p.Shell[loc[0]:], true
}

// escapeScript keeps embedded code from closing its script element early.
func escapeScript(src string) string {
	return closingScript.ReplaceAllStringFunc(src, escapeTag)
}

func escapeTag(tag string) string {
	return `<\` + tag[1:]
}
