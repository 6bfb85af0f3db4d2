// Package project defines the in-memory model of a preview project.
//
// A project is a small, fixed-shape set of sources:
//   - index.html: the HTML shell
//   - index.jsx: the entry script mounting the root component
//   - App.jsx: the root component module
//   - App.css: the stylesheet
//   - package.json: the dependency descriptor
//
// Files keeps insertion order so that every consumer (JSON encoding, the
// preview pipeline, the store) sees the same sequence for the same project.
package project
