package project

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

// Well-known file names of a preview project.
const (
	ShellFile      = "index.html"
	EntryFile      = "index.jsx"
	ComponentFile  = "App.jsx"
	StylesheetFile = "App.css"
	DescriptorFile = "package.json"
)

// RequiredFiles lists the entries every project carries, in canonical order.
var RequiredFiles = []string{ShellFile, EntryFile, ComponentFile, StylesheetFile, DescriptorFile}

var (
	ErrUnknownFile     = errors.New("unknown file")
	ErrMissingFile     = errors.New("required file missing")
	ErrInvalidFileName = errors.New("invalid file name")
)

// Files is an ordered, keyed collection of project sources.
// Iteration follows insertion order; replacing a key keeps its position.
type Files struct {
	names   []string
	content map[string]string
}

// NewFiles creates an empty collection.
func NewFiles() Files {
	return Files{content: make(map[string]string)}
}

// FilesFromMap builds a collection from a plain map. Required names come
// first in canonical order, any other names follow in sorted order so the
// result does not depend on map iteration.
func FilesFromMap(m map[string]string) Files {
	f := NewFiles()
	for _, name := range RequiredFiles {
		if v, ok := m[name]; ok {
			f.Set(name, v)
		}
	}
	for _, name := range sortedKeys(m) {
		if !f.Has(name) {
			f.Set(name, m[name])
		}
	}
	return f
}

// Get returns the content of name.
func (f Files) Get(name string) (string, bool) {
	v, ok := f.content[name]
	return v, ok
}

// Content returns the content of name, or "" when absent.
func (f Files) Content(name string) string {
	return f.content[name]
}

// Has reports whether name exists.
func (f Files) Has(name string) bool {
	_, ok := f.content[name]
	return ok
}

// Set replaces the content of name, appending it when new.
func (f *Files) Set(name, content string) {
	if f.content == nil {
		f.content = make(map[string]string)
	}
	if _, ok := f.content[name]; !ok {
		f.names = append(f.names, name)
	}
	f.content[name] = content
}

// Replace updates an existing entry only.
func (f *Files) Replace(name, content string) error {
	if !f.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownFile, name)
	}
	f.content[name] = content
	return nil
}

// Names returns file names in order.
func (f Files) Names() []string {
	return append([]string(nil), f.names...)
}

// Len returns the number of files.
func (f Files) Len() int {
	return len(f.names)
}

// Clone returns an independent copy.
func (f Files) Clone() Files {
	c := Files{
		names:   append([]string(nil), f.names...),
		content: make(map[string]string, len(f.content)),
	}
	for k, v := range f.content {
		c.content[k] = v
	}
	return c
}

// Map returns a plain map copy.
func (f Files) Map() map[string]string {
	m := make(map[string]string, len(f.content))
	for k, v := range f.content {
		m[k] = v
	}
	return m
}

// Equal reports whether both collections hold the same names, order and content.
func (f Files) Equal(o Files) bool {
	if len(f.names) != len(o.names) {
		return false
	}
	for i, name := range f.names {
		if o.names[i] != name || o.content[name] != f.content[name] {
			return false
		}
	}
	return true
}

// Validate checks that all required files are present.
func (f Files) Validate() error {
	for _, name := range RequiredFiles {
		if !f.Has(name) {
			return fmt.Errorf("%w: %s", ErrMissingFile, name)
		}
	}
	return nil
}

// MarshalJSON encodes the collection as an object in iteration order.
func (f Files) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range f.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := sonic.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := sonic.Marshal(f.content[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping the declared key order.
func (f *Files) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = NewFiles()
		return nil
	}
	if !sonic.Valid(data) {
		return errors.New("decode files: malformed json")
	}
	root, err := sonic.Get(data)
	if err != nil {
		return fmt.Errorf("decode files: %w", err)
	}
	it, err := root.Properties()
	if err != nil {
		return fmt.Errorf("decode files: %w", err)
	}

	out := NewFiles()
	var pair ast.Pair
	for it.Next(&pair) {
		v, err := pair.Value.StrictString()
		if err != nil {
			return fmt.Errorf("decode files: %s: %w", pair.Key, err)
		}
		out.Set(pair.Key, v)
	}
	*f = out
	return nil
}
