package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func names(deps []Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Name)
	}
	return out
}

func TestResolveFiltersRuntimePackages(t *testing.T) {
	r := NewResolver("", nil)

	deps, diags := r.Resolve(`{"dependencies":{"lodash":"x","react":"x","react-dom":"x"}}`)

	assert.Empty(t, diags)
	require.Len(t, deps, 1)
	assert.Equal(t, "lodash", deps[0].Name)
	assert.Equal(t, "https://unpkg.com/lodash", deps[0].URL)
	assert.Equal(t, `<script src="https://unpkg.com/lodash"></script>`, deps[0].ScriptTag())
}

func TestResolveKeepsDeclarationOrder(t *testing.T) {
	r := NewResolver("cdn.example.com", nil)
	descriptor := `{
  "name": "x",
  "dependencies": {
    "zustand": "^4",
    "react": "^18",
    "axios": "^1",
    "canvas-confetti": "^1.6.0",
    "@tanstack/react-query": "^5",
    "b": "1"
  }
}`

	for i := 0; i < 20; i++ {
		deps, diags := r.Resolve(descriptor)
		assert.Empty(t, diags)
		assert.Equal(t, []string{"zustand", "axios", "canvas-confetti", "@tanstack/react-query", "b"}, names(deps))
		assert.Equal(t, "https://cdn.example.com/@tanstack/react-query", deps[3].URL)
	}
}

func TestResolveMalformedDescriptor(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewResolver("", zap.New(core))

	for _, in := range []string{
		"",
		"{",
		`{"dependencies": {"a": }`,
		`[1, 2]`,
		`"text"`,
		`{"dependencies": ["lodash"]}`,
	} {
		deps, diags := r.Resolve(in)
		assert.Empty(t, deps, in)
		require.Len(t, diags, 1, in)
		assert.Equal(t, "package.json", diags[0].File)
		assert.Contains(t, diags[0].Message, "Invalid package.json")
	}
	assert.Equal(t, 6, logs.FilterMessage("Invalid package.json").Len())
}

func TestResolveWithoutDependencies(t *testing.T) {
	r := NewResolver("", nil)

	for _, in := range []string{`{}`, `{"name":"x"}`, `{"dependencies": null}`, `{"dependencies": {}}`} {
		deps, diags := r.Resolve(in)
		assert.Empty(t, deps, in)
		assert.Empty(t, diags, in)
	}
}

func TestResolveRejectsUnsafeNames(t *testing.T) {
	r := NewResolver("", nil)

	deps, diags := r.Resolve(`{"dependencies":{"ok-pkg":"1","\"><script>alert(1)</script>":"1","a b":"1","../etc":"1","@scope/pkg":"1"}}`)

	assert.Equal(t, []string{"ok-pkg", "@scope/pkg"}, names(deps))
	assert.Len(t, diags, 3)
}

func TestResolveDuplicateKeys(t *testing.T) {
	r := NewResolver("", nil)

	deps, _ := r.Resolve(`{"dependencies":{"a":"1","b":"1","a":"2"}}`)

	assert.Equal(t, []string{"a", "b"}, names(deps))
}
