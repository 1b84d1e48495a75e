package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sjpiano/paytrack/internal/services/mcp/domain"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
}

func registerReconcileTools(registrar mcpRegistrationTarget, service domain.ReconcileService) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.ReconcilePaymentsTool(), handler: domain.ReconcilePaymentsHandler(service)},
		{tool: domain.SearchPaymentEmailsTool(), handler: domain.SearchPaymentEmailsHandler(service)},
		{tool: domain.FindStudentByParentTool(), handler: domain.FindStudentByParentHandler(service)},
		{tool: domain.CheckInvoiceExistsTool(), handler: domain.CheckInvoiceExistsHandler(service)},
		{tool: domain.ListReconciliationRunsTool(), handler: domain.ListReconciliationRunsHandler(service)},
	}
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if registrar == nil {
		return fmt.Errorf("mcp registrar is required")
	}
	if tool == nil {
		return fmt.Errorf("mcp tool is required")
	}
	if err := registrar.AddTool(tool, handler); err != nil {
		return fmt.Errorf("register tool %q: %w", tool.Name, err)
	}
	return nil
}
