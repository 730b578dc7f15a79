// Package mcp provides an MCP (Model Context Protocol) server adapter for campus.
// It lets AI assistants search the school site's indexed content and ask
// grounded questions.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
