package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sjpiano/paytrack/internal/services/mcp/domain"
	reconcileapp "github.com/sjpiano/paytrack/internal/services/reconcile/app"
)

func openTestService(t *testing.T) *reconcileapp.Service {
	t.Helper()
	dir := t.TempDir()
	service, closeService, err := reconcileapp.OpenService(context.Background(), reconcileapp.ServiceRuntimeConfig{
		DBPath:     filepath.Join(dir, "paytrack.db"),
		MailboxDir: t.TempDir(),
		Timezone:   "UTC",
	})
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	t.Cleanup(closeService)
	return service
}

func connectClient(t *testing.T, ctx context.Context, server *Server) (*mcp.ClientSession, <-chan error) {
	t.Helper()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	connectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	session, err := client.Connect(connectCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	return session, serveErr
}

func decodeStructured(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
}

func TestServerListsAndCallsReconcileTools(t *testing.T) {
	server, err := New(openTestService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session, serveErr := connectClient(t, ctx, server)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"reconcile_payments", "search_payment_emails", "find_student_by_parent", "check_invoice_exists", "list_reconciliation_runs"} {
		if !names[want] {
			t.Fatalf("tool %q not registered; have %v", want, names)
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "reconcile_payments",
		Arguments: map[string]any{"dry_run": true},
	})
	if err != nil {
		t.Fatalf("call reconcile_payments: %v", err)
	}
	if result.IsError {
		t.Fatalf("reconcile_payments returned tool error: %+v", result.Content)
	}
	var report domain.ReconcilePaymentsResult
	decodeStructured(t, result, &report)
	if report.Status != "NO_CANDIDATES" || !report.DryRun || report.RunID == "" {
		t.Fatalf("report = %+v", report)
	}

	result, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "list_reconciliation_runs", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("call list_reconciliation_runs: %v", err)
	}
	var runs domain.ListReconciliationRunsResult
	decodeStructured(t, result, &runs)
	if len(runs.Runs) != 1 || runs.Runs[0].RunID != report.RunID || runs.Runs[0].Trigger != "mcp" {
		t.Fatalf("runs = %+v", runs)
	}

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "check_invoice_exists",
		Arguments: map[string]any{"student_email": ""},
	})
	if err != nil {
		t.Fatalf("call check_invoice_exists: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing student email")
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestAddMCPToolRejectsUnknownHandler(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	err := addMCPTool(server, &mcp.Tool{Name: "bogus"}, func() {})
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("err = %v, want unsupported handler error", err)
	}
}

func TestNewRequiresService(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "websocket"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("err = %v, want unsupported transport", err)
	}
}
