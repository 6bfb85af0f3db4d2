// Package middleware provides the gin middleware of the preview API.
//
//   - CORS: gin-contrib/cors with the editor's headers exposed (ETag, trace ids)
//   - RateLimit: per-IP token buckets with idle eviction
//   - Auth: session token verification, principal in the request context
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	api := router.Group("/", middleware.Auth(identityService))
package middleware
