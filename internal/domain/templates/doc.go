// Package templates provides the starter projects a workspace can open from.
//
// The catalog always holds the built-in counter project. Additional
// templates are seeded from a directory tree where each template lives in
// its own folder next to a template.toml or template.yaml manifest.
package templates
