package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/openai"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

// Generator produces an assistant turn from a prompt. Implemented by the
// OpenAI client.
type Generator interface {
	Generate(ctx context.Context, req openai.GenerationRequest) (*openai.GenerationResult, error)
}

// LearningRecorder captures interaction events without blocking the caller.
type LearningRecorder interface {
	Record(orgID, userID string, eventType domain.LearningEventType, payload any)
}

// ModelProfiles maps query complexity to concrete model names.
type ModelProfiles struct {
	Fast string
	Deep string
}

type ChatInput struct {
	OrgID     string
	UserID    string
	Role      domain.Role
	SessionID string
	Message   string
}

// SourceRef is the provenance of one retrieved chunk surfaced to the caller.
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	SourceURL  string  `json:"source_url,omitempty"`
	Similarity float32 `json:"similarity"`
}

type ChatOutput struct {
	SessionID   string
	MessageID   string
	Content     string
	Model       string
	Sources     []SourceRef
	ToolResults []ToolResult
}

// OrchestratorService runs one assistant turn: it resolves the session,
// gathers conversation context and retrieved knowledge concurrently, calls
// the model, executes any requested tools, and persists both turns.
type OrchestratorService struct {
	conversations *ConversationService
	retrieval     *RetrievalService
	generator     Generator
	tools         *ToolRegistry
	learning      LearningRecorder
	profiles      ModelProfiles
	persona       string
	assistantName string
}

func NewOrchestratorService(
	conversations *ConversationService,
	retrieval *RetrievalService,
	generator Generator,
	tools *ToolRegistry,
	learning LearningRecorder,
	profiles ModelProfiles,
	assistantName, persona string,
) *OrchestratorService {
	return &OrchestratorService{
		conversations: conversations,
		retrieval:     retrieval,
		generator:     generator,
		tools:         tools,
		learning:      learning,
		profiles:      profiles,
		persona:       persona,
		assistantName: assistantName,
	}
}

// Handle processes one user message end to end. Retrieval degrades silently;
// generation failure is fatal and leaves the user turn persisted.
func (s *OrchestratorService) Handle(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrchestratorService.Handle", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		UserID:    input.UserID,
		SessionID: input.SessionID,
		Operation: "chat",
	})
	defer span.End()

	if input.OrgID == "" {
		return nil, domain.ErrMissingOrgID
	}
	if input.UserID == "" {
		return nil, domain.ErrMissingUserID
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domain.ErrEmptyContent
	}

	session, err := s.conversations.ResolveSession(ctx, input.OrgID, input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.conversations.AppendMessage(ctx, session.ID, domain.MessageRoleUser, message, domain.MessageMetadata{}); err != nil {
		span.SetError(err)
		return nil, err
	}

	// History and knowledge retrieval are independent reads.
	var history []*domain.ConversationMessage
	var matches []*domain.ChunkMatch

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.conversations.GetContext(gctx, session.ID)
		return err
	})
	g.Go(func() error {
		found, err := s.retrieval.Retrieve(gctx, RetrieveInput{
			OrgID: input.OrgID,
			Role:  input.Role,
			Query: message,
		})
		if err != nil {
			// Knowledge augmentation is best effort; a store outage must not
			// fail the turn.
			log.Printf("orchestrator: retrieval failed, answering without knowledge context: %v", err)
			return nil
		}
		matches = found
		return nil
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	model := s.selectModel(message)
	prompt := s.buildPrompt(history, matches, message)

	result, err := s.generator.Generate(ctx, openai.GenerationRequest{
		Model:    model,
		Messages: prompt,
		Tools:    s.toolSpecs(),
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "generation service unavailable", err)
	}

	toolResults := s.executeTools(ctx, input, session.ID, result.ToolCalls)

	// A pure tool turn has no text; run a follow-up pass so the assistant
	// narrates what happened.
	if len(toolResults) > 0 {
		followUp, err := s.generator.Generate(ctx, openai.GenerationRequest{
			Model:    model,
			Messages: append(prompt, toolOutcomeMessage(toolResults)),
		})
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "generation service unavailable", err)
		}
		result.Text = followUp.Text
		result.Tokens += followUp.Tokens
	}

	metadata := domain.MessageMetadata{
		Tokens:   result.Tokens,
		Model:    model,
		ChunkIDs: chunkIDs(matches),
	}
	for _, tr := range toolResults {
		status := "ok"
		if !tr.Success {
			status = "failed"
		}
		metadata.ToolResults = append(metadata.ToolResults, fmt.Sprintf("%s:%s", tr.Name, status))
	}

	assistantMsg, err := s.conversations.AppendMessage(ctx, session.ID, domain.MessageRoleAssistant, result.Text, metadata)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if s.learning != nil {
		s.learning.Record(input.OrgID, input.UserID, domain.EventTypeConversationCompleted, map[string]any{
			"session_id": session.ID,
			"message_id": assistantMsg.ID,
			"model":      model,
			"tokens":     result.Tokens,
			"chunks":     len(matches),
		})
	}

	return &ChatOutput{
		SessionID:   session.ID,
		MessageID:   assistantMsg.ID,
		Content:     result.Text,
		Model:       model,
		Sources:     sourceRefs(matches),
		ToolResults: toolResults,
	}, nil
}

func (s *OrchestratorService) executeTools(ctx context.Context, input ChatInput, sessionID string, calls []openai.ToolCallRequest) []ToolResult {
	if len(calls) == 0 || s.tools == nil {
		return nil
	}

	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		result := s.tools.Execute(ctx, input.OrgID, input.UserID, call)
		results = append(results, result)

		if s.learning != nil {
			s.learning.Record(input.OrgID, input.UserID, domain.EventTypeFunctionExecuted, domain.FunctionExecutedPayload{
				SessionID: sessionID,
				Tool:      result.Name,
				Success:   result.Success,
				Error:     result.Error,
			})
		}
	}
	return results
}

func (s *OrchestratorService) toolSpecs() []openai.ToolSpec {
	if s.tools == nil {
		return nil
	}
	return s.tools.Specs()
}

// deepQueryMarkers are phrases that signal analytical intent. Kazakh-market
// deployments speak Russian and English, so both are covered.
var deepQueryMarkers = []string{
	"analyze", "analysis", "compare", "explain why", "summarize", "report", "strategy", "forecast",
	"анализ", "сравни", "почему", "объясни", "отчет", "отчёт", "стратег", "прогноз",
}

// selectModel routes short lookup-style queries to the fast model and
// analytical or long queries to the deep one.
func (s *OrchestratorService) selectModel(message string) string {
	if len([]rune(message)) > 240 {
		return s.profiles.Deep
	}
	lower := strings.ToLower(message)
	for _, marker := range deepQueryMarkers {
		if strings.Contains(lower, marker) {
			return s.profiles.Deep
		}
	}
	return s.profiles.Fast
}

func (s *OrchestratorService) buildPrompt(history []*domain.ConversationMessage, matches []*domain.ChunkMatch, message string) []openai.ChatMessage {
	var system strings.Builder
	fmt.Fprintf(&system, "You are %s, an AI business assistant.", s.assistantName)
	if s.persona != "" {
		system.WriteString(" ")
		system.WriteString(s.persona)
	}

	if len(matches) > 0 {
		system.WriteString("\n\nUse the following knowledge base excerpts to answer. Cite sources by their number when relevant.\n")
		for i, m := range matches {
			fmt.Fprintf(&system, "\n[%d] %s\n%s\n", i+1, m.Title, m.Content)
		}
	} else {
		system.WriteString("\n\nNo knowledge base context is available for this question. Answer from general knowledge and say so when unsure.")
	}

	messages := make([]openai.ChatMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatMessage{Role: "system", Content: system.String()})

	for _, m := range history {
		// The current user turn is already in history after the append.
		messages = append(messages, openai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	if len(history) == 0 || history[len(history)-1].Content != message {
		messages = append(messages, openai.ChatMessage{Role: "user", Content: message})
	}
	return messages
}

func toolOutcomeMessage(results []ToolResult) openai.ChatMessage {
	var b strings.Builder
	b.WriteString("Tool execution results:\n")
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "- %s succeeded: %s\n", r.Name, r.Output)
		} else {
			fmt.Fprintf(&b, "- %s failed: %s\n", r.Name, r.Error)
		}
	}
	b.WriteString("Report the outcome to the user in a short, natural reply.")
	return openai.ChatMessage{Role: "system", Content: b.String()}
}

func chunkIDs(matches []*domain.ChunkMatch) []string {
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ChunkID)
	}
	return ids
}

func sourceRefs(matches []*domain.ChunkMatch) []SourceRef {
	if len(matches) == 0 {
		return nil
	}
	// One entry per document, keeping the best similarity.
	seen := map[string]int{}
	refs := make([]SourceRef, 0, len(matches))
	for _, m := range matches {
		if idx, ok := seen[m.DocumentID]; ok {
			if m.Similarity > refs[idx].Similarity {
				refs[idx].Similarity = m.Similarity
			}
			continue
		}
		seen[m.DocumentID] = len(refs)
		refs = append(refs, SourceRef{
			DocumentID: m.DocumentID,
			Title:      m.Title,
			SourceURL:  m.SourceURL,
			Similarity: m.Similarity,
		})
	}
	return refs
}
