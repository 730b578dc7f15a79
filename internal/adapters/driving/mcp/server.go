package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/campus/internal/logger"
)

// Version is reported to clients unless WithVersion overrides it.
const Version = "0.1.0"

// endpoint is where RunHTTP mounts the streamable HTTP transport.
const endpoint = "/mcp"

const shutdownTimeout = 5 * time.Second

const instructions = `Searches the school website: news, events, staff, FAQs, programmes and announcements.
Call retrieve for source passages, or ask for an answer written from them.
Read campus://kinds for the indexed content kinds and campus://sync/{kind}/{id} for one record's index state.`

// Server exposes school content retrieval to AI assistants.
type Server struct {
	ports   *Ports
	version string
	server  *mcp.Server
}

// Option configures the server.
type Option func(*Server)

// WithVersion reports v as the server version, typically the build version.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// NewServer registers the retrieve tool, the ask tool when a chat service
// is present, and the kinds and sync-status resources.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, version: Version}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "campus", Version: s.version},
		&mcp.ServerOptions{Instructions: instructions},
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("mcp: serving campus %s over stdio", s.version)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves the streamable HTTP transport at /mcp on addr until ctx
// ends. In-flight requests get a few seconds to finish.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(endpoint, s.Handler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Info("mcp: serving campus %s at http://%s%s", s.version, addr, endpoint)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp http server: %w", err)
	}
	return nil
}
