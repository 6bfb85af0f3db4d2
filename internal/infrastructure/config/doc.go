// Package config provides 12-factor configuration for the preview service.
//
// Values come from Default, an optional TOML file and the environment, in
// that order of precedence (the environment wins). CLI flags in cmd/server
// override the result.
//
// Configuration Sections:
//   - Server: HTTP listen address (PORT, HOST)
//   - Logging: level and format (LOG_LEVEL, LOG_DEV)
//   - RateLimit: per-IP limits (RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED)
//   - Preview: PREVIEW_DEBOUNCE, PREVIEW_CDN_HOST, PREVIEW_BASE_URL, PREVIEW_MODE,
//     PREVIEW_MAX_WORKSPACES, PREVIEW_CHECK_TIMEOUT, PREVIEW_HEADLESS
//   - Storage: STORAGE_PATH
//   - Auth: AUTH_SECRET, AUTH_TOKEN_TTL
//   - Templates: TEMPLATES_DIR
//   - CDN: CDN_PROBE_TIMEOUT, CDN_PROBE_RETRIES, CDN_PROBE_RPS
//
// A TOML file uses the section and key names of the struct tags:
//
//	[preview]
//	debounce = "750ms"
//	cdn_host = "cdn.jsdelivr.net/npm"
package config
