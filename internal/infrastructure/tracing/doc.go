/*
Package tracing gives every API request a trace id and a request id and
logs one line per request.

Inbound X-Trace-ID headers are honoured when they hold a UUID, so a client
can correlate several calls (open workspace, edit, run) under one trace.
Both ids are echoed in the response headers and stored in the request
context; Fields returns them as zap fields for handlers that log.

	tracer := tracing.New("react-editor", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

Spans are handed to a buffered collector (1000 spans) and dropped with a
warning when it is full, so logging never blocks a request.
*/
package tracing
