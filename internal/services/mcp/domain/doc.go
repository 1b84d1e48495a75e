// Package domain translates MCP tool calls into reconciliation service
// operations.
//
// Each tool is a Tool constructor paired with a typed handler. Handlers
// validate and normalize the MCP input, call the reconciliation service, and
// shape the result into flat JSON that MCP clients can render.
package domain
