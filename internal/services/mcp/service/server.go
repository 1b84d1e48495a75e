package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sjpiano/paytrack/internal/platform/timeouts"
	"github.com/sjpiano/paytrack/internal/services/mcp/domain"
	reconcileapp "github.com/sjpiano/paytrack/internal/services/reconcile/app"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "paytrack MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// defaultHTTPAddr binds HTTP transport to loopback unless configured.
	defaultHTTPAddr = "localhost:8081"
)

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.ReconcilePaymentsInput, domain.ReconcilePaymentsResult](),
	newMCPToolRegistrar[domain.SearchPaymentEmailsInput, domain.SearchPaymentEmailsResult](),
	newMCPToolRegistrar[domain.FindStudentByParentInput, domain.FindStudentByParentResult](),
	newMCPToolRegistrar[domain.CheckInvoiceExistsInput, domain.CheckInvoiceExistsResult](),
	newMCPToolRegistrar[domain.ListReconciliationRunsInput, domain.ListReconciliationRunsResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over streamable HTTP for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	HTTPAddr  string // Defaults to localhost:8081 for HTTP transport.
	Service   reconcileapp.ServiceRuntimeConfig
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	close     func()
}

// New creates an MCP server whose tools call service.
func New(service domain.ReconcileService) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("reconcile service is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	if err := registerReconcileTools(mcpServerRegistrationAdapter{server: mcpServer}, service); err != nil {
		return nil, fmt.Errorf("register reconcile tools: %w", err)
	}
	return &Server{mcpServer: mcpServer}, nil
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	service, closeService, err := reconcileapp.OpenService(ctx, cfg.Service)
	if err != nil {
		return err
	}
	server, err := New(service)
	if err != nil {
		closeService()
		return err
	}
	server.close = closeService

	if cfg.Transport == TransportHTTP {
		return server.ServeHTTP(ctx, cfg.HTTPAddr)
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the service held by the server.
func (s *Server) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
	s.close = nil
}

// serveWithTransport runs the MCP session over transport until it ends.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	defer s.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// ServeHTTP serves MCP over streamable HTTP at addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	defer s.Close()
	if strings.TrimSpace(addr) == "" {
		addr = defaultHTTPAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: timeouts.Shutdown,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("mcp http transport listening at %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP http: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown MCP http: %w", err)
	}
	return nil
}

func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
