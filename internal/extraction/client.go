// Package extraction asks a chat-completion model who owns a task and when it
// is due, given the task's thread.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

const (
	DefaultModel = "gpt-4o-mini"

	systemPrompt = "You extract task information from Slack threads. Always answer with a single JSON object."
)

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Location is the workspace timezone the model is told "now" in.
	Location *time.Location
}

// Client calls the chat-completions API.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
	loc     *time.Location
}

// NewClient returns a Client. SDK-level retries are disabled: a failed
// extraction fails the replan job, and the job queue owns redelivery.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		api:     openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		loc:     loc,
	}
}

// Extract sends the rendered thread and the current time to the model and
// parses its answer.
func (c *Client) Extract(ctx context.Context, thread string, now time.Time) (Result, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "extraction.extract")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(thread, now.In(c.loc))),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return Result{}, &domain.ExtractionError{Reason: "completion request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return Result{}, &domain.ExtractionError{Reason: "completion returned no choices"}
	}

	res, err := ParseResult(resp.Choices[0].Message.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable answer")
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Bool("extraction.has_assignee", res.Assignee != ""),
		attribute.Bool("extraction.has_due_date", res.DueDate != nil),
	)
	return res, nil
}

// BuildPrompt renders the user prompt for a thread.
func BuildPrompt(thread string, now time.Time) string {
	var b strings.Builder
	b.WriteString("Extract the assignee and the due date of the task discussed in the Slack thread below.\n")
	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format(time.RFC3339))
	b.WriteString("Thread:\n")
	b.WriteString(thread)
	b.WriteString("\n\nAnswer in this JSON format. Use null for anything the thread does not settle.\n")
	b.WriteString(`{
  "assignee": {"user_id": "U123456" or null, "rationale": "why (optional)"},
  "due_date": {"date": "2024-12-31" or null, "rationale": "why (optional)"}
}`)
	return b.String()
}
