package preview

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
)

// ScriptRef describes one script element of a compiled document.
type ScriptRef struct {
	Src    string `json:"src,omitempty"`
	Type   string `json:"type,omitempty"`
	Inline bool   `json:"inline"`
}

// Manifest lists the external resources a document loads.
type Manifest struct {
	Scripts      []ScriptRef `json:"scripts"`
	Stylesheets  []string    `json:"stylesheets"`
	ErrorDisplay bool        `json:"error_display"`
}

// ExternalScripts returns the src of every external script in order.
func (m Manifest) ExternalScripts() []string {
	var out []string
	for _, s := range m.Scripts {
		if !s.Inline {
			out = append(out, s.Src)
		}
	}
	return out
}

// Inspect parses a document and lists its scripts and stylesheets.
func Inspect(document string) (Manifest, error) {
	doc, err := htmlquery.Parse(strings.NewReader(document))
	if err != nil {
		return Manifest{}, fmt.Errorf("parse document: %w", err)
	}

	var m Manifest
	for _, n := range htmlquery.Find(doc, "//script") {
		src := htmlquery.SelectAttr(n, "src")
		m.Scripts = append(m.Scripts, ScriptRef{
			Src:    src,
			Type:   htmlquery.SelectAttr(n, "type"),
			Inline: src == "",
		})
	}
	for _, n := range htmlquery.Find(doc, `//link[@rel="stylesheet"]`) {
		m.Stylesheets = append(m.Stylesheets, htmlquery.SelectAttr(n, "href"))
	}
	m.ErrorDisplay = htmlquery.FindOne(doc, `//*[@id="`+ErrorDisplayID+`"]`) != nil
	return m, nil
}
