// Package server wires the preview service together.
//
// NewServer builds every component from a config.Config:
//   - zap logging, Prometheus metrics and request tracing
//   - the SQLite project store and the identity service
//   - compiler, sandbox host and script runtime
//   - the workspace manager with its schedulers and event bus
//   - starter templates and the CDN prober
//   - the gin router: REST API, /stream WebSocket and /metrics
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
