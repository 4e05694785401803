package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/openai"
)

// ToolResult records the outcome of one tool invocation. Failures are
// reported back into the conversation instead of aborting it.
type ToolResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolHandler executes one tool call with its JSON arguments.
type ToolHandler func(ctx context.Context, orgID, userID string, args json.RawMessage) (string, error)

// ToolDefinition pairs a model-visible tool spec with its executor.
type ToolDefinition struct {
	Spec    openai.ToolSpec
	Handler ToolHandler
}

// ToolRegistry holds the tools the orchestrator may expose to the model.
type ToolRegistry struct {
	tools map[string]ToolDefinition
	order []string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]ToolDefinition{}}
}

func (r *ToolRegistry) Register(def ToolDefinition) {
	if _, exists := r.tools[def.Spec.Name]; !exists {
		r.order = append(r.order, def.Spec.Name)
	}
	r.tools[def.Spec.Name] = def
}

// Specs returns the tool specs in registration order.
func (r *ToolRegistry) Specs() []openai.ToolSpec {
	specs := make([]openai.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec)
	}
	return specs
}

// Execute runs a requested tool call. Unknown tools and handler errors come
// back as failed results, never as errors; the orchestrator folds them into
// the assistant turn.
func (r *ToolRegistry) Execute(ctx context.Context, orgID, userID string, call openai.ToolCallRequest) ToolResult {
	def, ok := r.tools[call.Name]
	if !ok {
		return ToolResult{
			Name:    call.Name,
			Success: false,
			Error:   fmt.Sprintf("unknown tool %q", call.Name),
		}
	}

	output, err := def.Handler(ctx, orgID, userID, call.Arguments)
	if err != nil {
		return ToolResult{Name: call.Name, Success: false, Error: err.Error()}
	}
	return ToolResult{Name: call.Name, Success: true, Output: output}
}

// ContactCreator creates a CRM contact on behalf of the assistant.
type ContactCreator interface {
	CreateContact(ctx context.Context, orgID, userID, name, phone, email string) (string, error)
}

// MeetingScheduler books a meeting on behalf of the assistant.
type MeetingScheduler interface {
	ScheduleMeeting(ctx context.Context, orgID, userID, title, startsAt string) (string, error)
}

// ReportGenerator produces a named report for the organization.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, orgID, userID, reportType string) (string, error)
}

// DefaultToolRegistry wires the standard assistant tools. Nil executors are
// simply not registered, so deployments expose only what they back.
func DefaultToolRegistry(contacts ContactCreator, meetings MeetingScheduler, reports ReportGenerator) *ToolRegistry {
	registry := NewToolRegistry()

	if contacts != nil {
		registry.Register(ToolDefinition{
			Spec: openai.ToolSpec{
				Name:        "create_contact",
				Description: "Create a new contact in the CRM with a name and optional phone and email.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"name": {"type": "string", "description": "Full name of the contact"},
						"phone": {"type": "string", "description": "Phone number"},
						"email": {"type": "string", "description": "Email address"}
					},
					"required": ["name"]
				}`),
			},
			Handler: func(ctx context.Context, orgID, userID string, args json.RawMessage) (string, error) {
				var p struct {
					Name  string `json:"name"`
					Phone string `json:"phone"`
					Email string `json:"email"`
				}
				if err := json.Unmarshal(args, &p); err != nil {
					return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid create_contact arguments", err)
				}
				if p.Name == "" {
					return "", domain.NewDomainError(domain.ErrCodeValidation, "contact name is required")
				}
				return contacts.CreateContact(ctx, orgID, userID, p.Name, p.Phone, p.Email)
			},
		})
	}

	if meetings != nil {
		registry.Register(ToolDefinition{
			Spec: openai.ToolSpec{
				Name:        "schedule_meeting",
				Description: "Schedule a meeting with a title and an ISO 8601 start time.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"title": {"type": "string", "description": "Meeting title"},
						"starts_at": {"type": "string", "description": "Start time in ISO 8601 format"}
					},
					"required": ["title", "starts_at"]
				}`),
			},
			Handler: func(ctx context.Context, orgID, userID string, args json.RawMessage) (string, error) {
				var p struct {
					Title    string `json:"title"`
					StartsAt string `json:"starts_at"`
				}
				if err := json.Unmarshal(args, &p); err != nil {
					return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid schedule_meeting arguments", err)
				}
				if p.Title == "" || p.StartsAt == "" {
					return "", domain.NewDomainError(domain.ErrCodeValidation, "meeting title and start time are required")
				}
				return meetings.ScheduleMeeting(ctx, orgID, userID, p.Title, p.StartsAt)
			},
		})
	}

	if reports != nil {
		registry.Register(ToolDefinition{
			Spec: openai.ToolSpec{
				Name:        "generate_report",
				Description: "Generate a business report of the given type for the organization.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"report_type": {"type": "string", "description": "Type of report, for example sales or activity"}
					},
					"required": ["report_type"]
				}`),
			},
			Handler: func(ctx context.Context, orgID, userID string, args json.RawMessage) (string, error) {
				var p struct {
					ReportType string `json:"report_type"`
				}
				if err := json.Unmarshal(args, &p); err != nil {
					return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid generate_report arguments", err)
				}
				if p.ReportType == "" {
					return "", domain.NewDomainError(domain.ErrCodeValidation, "report type is required")
				}
				return reports.GenerateReport(ctx, orgID, userID, p.ReportType)
			},
		})
	}

	return registry
}
