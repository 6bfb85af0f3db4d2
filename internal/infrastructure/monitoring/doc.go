/*
Package monitoring provides metrics collection for the preview service.

# Overview

Metrics live on a dedicated Prometheus registry, so several collectors can
coexist in one process (tests create one per server).

# Features

- HTTP request metrics (latency, status, response size)
- Compile metrics by trigger, with a rolling latency summary
- Mount counts and the highest run generation
- Overlay reports by channel, save outcomes, CDN probes
- WebSocket connection metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "run")
	doc := compiler.Compile(files)
	timer.Stop(len(doc.Diagnostics))
*/
package monitoring
