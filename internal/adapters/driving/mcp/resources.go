package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/campus/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for campus resources.
	uriScheme = "campus://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for the content-kind registry.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "kinds",
		Name:        "kinds",
		Description: "Content kinds indexed from the school website",
		MIMEType:    "application/json",
	}, s.handleKindsResource)

	// Template for per-record sync status.
	if s.ports.Sync != nil {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "sync/{kind}/{id}",
			Name:        "sync-status",
			Description: "Index sync state of one content record",
			MIMEType:    "application/json",
		}, s.handleSyncStatusResource)
	}
}

// handleKindsResource lists the registered kinds with their fields and caches.
func (s *Server) handleKindsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type kindInfo struct {
		Kind      string   `json:"kind"`
		Label     string   `json:"label"`
		Fields    []string `json:"fields"`
		CacheKeys []string `json:"cache_keys,omitempty"`
		CacheTags []string `json:"cache_tags,omitempty"`
	}

	kinds := s.ports.Kinds.Kinds()
	infos := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		spec, _ := s.ports.Kinds.Lookup(k)
		infos = append(infos, kindInfo{
			Kind:      string(k),
			Label:     s.ports.Kinds.Label(k),
			Fields:    spec.FieldPaths,
			CacheKeys: spec.CacheKeys,
			CacheTags: spec.CacheTags,
		})
	}

	return jsonResource(req.Params.URI, infos)
}

// handleSyncStatusResource returns the sync status of one record.
func (s *Server) handleSyncStatusResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract the identity from URI: campus://sync/{kind}/{id}
	ref, ok := extractSourceRef(req.Params.URI)
	if !ok || !s.ports.Kinds.Has(ref.Kind) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	st := s.ports.Sync.Status(ref)
	info := struct {
		Kind        string `json:"kind"`
		ID          string `json:"id"`
		Phase       string `json:"phase"`
		Pending     bool   `json:"pending"`
		LastError   string `json:"last_error,omitempty"`
		LastSuccess string `json:"last_success,omitempty"`
		Chunks      int    `json:"chunks"`
	}{
		Kind:      string(ref.Kind),
		ID:        ref.ID,
		Phase:     string(st.Phase),
		Pending:   st.Pending,
		LastError: st.LastError,
		Chunks:    st.Chunks,
	}
	if !st.LastSuccess.IsZero() {
		info.LastSuccess = st.LastSuccess.Format(time.RFC3339Nano)
	}

	return jsonResource(req.Params.URI, info)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSourceRef extracts the identity from a URI like campus://sync/{kind}/{id}.
func extractSourceRef(uri string) (domain.SourceRef, bool) {
	const prefix = uriScheme + "sync/"

	if !strings.HasPrefix(uri, prefix) {
		return domain.SourceRef{}, false
	}

	kind, id, ok := strings.Cut(strings.TrimPrefix(uri, prefix), "/")
	if !ok || kind == "" || id == "" {
		return domain.SourceRef{}, false
	}
	return domain.SourceRef{Kind: domain.ContentKind(kind), ID: id}, true
}
