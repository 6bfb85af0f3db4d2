// Package ws streams workspace events to the editor over a WebSocket.
//
// One connection follows one workspace. The server pushes every workspace
// event (compiled, mounted, report, notification) plus a fresh project list
// of the owner whenever it changes.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - edit: Replace one file ({"file": "App.jsx", "content": "..."})
//   - run: Compile now and remount
//   - refresh: Remount without compiling
//
// Message Types (Server → Client):
//   - system: Connected to a workspace
//   - compiled, mounted, report, notification: Workspace events
//   - projects: Owner's project list, most recent first
//   - ack: A client message was applied
//   - pong: Reply to ping
//   - error: A client message failed
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, store, metrics, logger)
//	router.GET("/stream", middleware.Auth(ids), handler.HandleConnection)
package ws
