// Package logging configures slog for fsledger.
//
// Logs are JSON lines in a size-rotated file under ~/.fsledger/logs/. CLI
// commands may also log to stderr; the MCP server never does, because its
// stdio streams belong to the protocol.
package logging
