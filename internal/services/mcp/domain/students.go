package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	reconciledomain "github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

// FindStudentByParentInput represents the MCP tool input for a roster lookup.
type FindStudentByParentInput struct {
	ParentName   string `json:"parent_name" jsonschema:"payer name as it appears in the deposit notice"`
	ReplyToEmail string `json:"reply_to_email" jsonschema:"payer email, bare or as Name <address>"`
	Amount       string `json:"amount" jsonschema:"deposited amount, e.g. 200.00 or $1,200"`
}

// StudentResult is one roster record.
type StudentResult struct {
	StudentName    string `json:"student_name" jsonschema:"student name"`
	StudentEmail   string `json:"student_email" jsonschema:"student email that receives invoices and receipts"`
	GuardianName   string `json:"guardian_name" jsonschema:"parent or guardian name"`
	GuardianEmail  string `json:"guardian_email" jsonschema:"parent or guardian email"`
	ExpectedAmount string `json:"expected_amount" jsonschema:"monthly fee"`
}

// FindStudentByParentResult represents the MCP tool output for a roster lookup.
type FindStudentByParentResult struct {
	Matched          bool            `json:"matched" jsonschema:"true when exactly one record matches name, email, and amount"`
	Reason           string          `json:"reason,omitempty" jsonschema:"why no unique match was found (NAME_MISMATCH, EMAIL_MISMATCH, AMOUNT_MISMATCH, AMBIGUOUS)"`
	Candidates       int             `json:"candidates" jsonschema:"records that matched every predicate"`
	Student          *StudentResult  `json:"student,omitempty" jsonschema:"the matched record"`
	GuardianStudents []StudentResult `json:"guardian_students" jsonschema:"every active record registered to this parent"`
}

// FindStudentByParentTool defines the MCP tool schema for a roster lookup.
func FindStudentByParentTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "find_student_by_parent",
		Description: "Looks up the student paid for by a parent. A match requires the parent name, parent email, and monthly fee to agree with exactly one roster record.",
	}
}

// FindStudentByParentHandler runs the roster matcher for a parent.
func FindStudentByParentHandler(service ReconcileService) mcp.ToolHandlerFor[FindStudentByParentInput, FindStudentByParentResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FindStudentByParentInput) (*mcp.CallToolResult, FindStudentByParentResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, lookupCallTimeout)
		defer cancel()

		match, err := service.FindStudent(callCtx, input.ParentName, input.ReplyToEmail, input.Amount)
		if err != nil {
			return nil, FindStudentByParentResult{}, toolError("find student by parent", err)
		}
		result := FindStudentByParentResult{
			Matched:          match.Result.Matched,
			Reason:           string(match.Result.Reason),
			Candidates:       match.Result.Candidates,
			GuardianStudents: make([]StudentResult, 0, len(match.GuardianRecords)),
		}
		if match.Result.Matched {
			student := studentResult(match.Result.Record)
			result.Student = &student
		}
		for _, record := range match.GuardianRecords {
			result.GuardianStudents = append(result.GuardianStudents, studentResult(record))
		}
		return nil, result, nil
	}
}

func studentResult(record reconciledomain.RosterRecord) StudentResult {
	return StudentResult{
		StudentName:    record.StudentName,
		StudentEmail:   record.StudentEmail,
		GuardianName:   record.GuardianName,
		GuardianEmail:  record.GuardianEmail,
		ExpectedAmount: record.ExpectedAmount.StringFixed(2),
	}
}
