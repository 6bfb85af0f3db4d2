// Package http provides HTTP handlers and routing for the preview REST API.
//
// Endpoints:
//   - Health: / and /health
//   - Identity: /auth/anonymous, /auth/token
//   - Projects: /projects, /projects/:id
//   - Templates: /templates
//   - Workspaces: /workspaces, /workspaces/:id and its files, active, mode,
//     title, run, refresh, save, check, dependencies/check, document and
//     manifest sub-resources
//   - Preview: /preview/:token
//   - Metrics: /metrics/json
//
// Errors are JSON bodies of the form {"error": "..."}; domain sentinels map
// to status codes in statusFor.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Workspaces: mgr, Store: st, Identity: ids, Host: host})
//	handlers.Register(router, middleware.Auth(ids))
package http
