// Package service wires protocol transport to the reconciliation tools.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio or streamable HTTP and delegates business meaning to the tool
// handlers in the MCP domain package.
package service
