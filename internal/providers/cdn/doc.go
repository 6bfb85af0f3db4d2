// Package cdn checks that a project's dependency scripts resolve on the
// public package CDN before the preview tries to load them.
package cdn
