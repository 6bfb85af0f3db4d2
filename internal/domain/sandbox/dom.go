package sandbox

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DOM is a lightweight view of a parsed document that scripts can read and
// mutate through element proxies.
type DOM struct {
	doc      *goquery.Document
	elements map[*html.Node]*Element
	changes  []DOMChange
	mu       sync.RWMutex
}

// Element is the mutable state of one element as seen by scripts.
type Element struct {
	TagName   string
	ID        string
	ClassName string
	Style     map[string]string

	node      *html.Node
	dom       *DOM
	innerHTML *string
	innerText *string
}

// ParseDOM parses an HTML document.
func ParseDOM(document string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &DOM{
		doc:      doc,
		elements: make(map[*html.Node]*Element),
	}, nil
}

// Document returns the underlying goquery document.
func (d *DOM) Document() *goquery.Document {
	return d.doc
}

// Query finds elements by CSS selector. Invalid selectors match nothing.
func (d *DOM) Query(selector string) []*Element {
	var out []*Element
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.element(s.Nodes[0]))
	})
	return out
}

// ByID returns the element with the given id, or nil.
func (d *DOM) ByID(id string) *Element {
	var found *Element
	d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("id"); v == id {
			found = d.element(s.Nodes[0])
			return false
		}
		return true
	})
	return found
}

// Changes returns accumulated DOM changes
func (d *DOM) Changes() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

func (d *DOM) record(change DOMChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, change)
}

func (d *DOM) element(n *html.Node) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.elements[n]; ok {
		return e
	}
	e := &Element{
		TagName: strings.ToUpper(n.Data),
		Style:   make(map[string]string),
		node:    n,
		dom:     d,
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			e.ID = a.Val
		case "class":
			e.ClassName = a.Val
		}
	}
	d.elements[n] = e
	return e
}

// NewDetached creates an element that is not part of the document.
func (d *DOM) NewDetached(tag string) *Element {
	return d.element(&html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)})
}

func (e *Element) selector() string {
	if e.ID != "" {
		return "#" + e.ID
	}
	return strings.ToLower(e.TagName)
}

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// SetAttribute sets attribute value
func (e *Element) SetAttribute(name, value string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			e.dom.record(DOMChange{Type: "set_attribute", Selector: e.selector(), Property: name, Value: value})
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	e.dom.record(DOMChange{Type: "set_attribute", Selector: e.selector(), Property: name, Value: value})
}

// SetStyle sets one inline style property.
func (e *Element) SetStyle(prop, value string) {
	e.Style[prop] = value
	e.dom.record(DOMChange{Type: "set_style", Selector: e.selector(), Property: prop, Value: value})
}

// SetInnerHTML replaces the markup of the element.
func (e *Element) SetInnerHTML(v string) {
	e.innerHTML, e.innerText = &v, nil
	e.dom.record(DOMChange{Type: "set_html", Selector: e.selector(), Property: "innerHTML", Value: v})
}

// SetInnerText replaces the text of the element.
func (e *Element) SetInnerText(v string) {
	e.innerText, e.innerHTML = &v, nil
	e.dom.record(DOMChange{Type: "set_text", Selector: e.selector(), Property: "innerText", Value: v})
}

// InnerHTML returns the current markup.
func (e *Element) InnerHTML() string {
	switch {
	case e.innerHTML != nil:
		return *e.innerHTML
	case e.innerText != nil:
		return html.EscapeString(*e.innerText)
	}
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

var lineBreak = regexp.MustCompile(`(?i)<br\s*/?>`)

// Text returns the rendered text, with <br> as line breaks.
func (e *Element) Text() string {
	if e.innerText != nil {
		return *e.innerText
	}
	markup := lineBreak.ReplaceAllString(e.InnerHTML(), "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	return doc.Text()
}

// Displayed reports whether the element's inline display was turned on.
func (e *Element) Displayed() bool {
	v, ok := e.Style["display"]
	return ok && v != "none" && v != ""
}
