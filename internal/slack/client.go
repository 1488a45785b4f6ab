// Package slack is the messaging gateway: a thin Web API client for the calls
// the task handlers make, plus inbound request verification.
package slack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

const defaultAPIRoot = "https://slack.com/api"

// Limiter throttles outbound calls. *redis.RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// Config configures a Client.
type Config struct {
	BotToken string
	// APIRoot overrides the Web API base URL. Tests point it at httptest.
	APIRoot string
	Timeout time.Duration
	// Limiter is optional. When set, every call takes a slot under the
	// "slack:<method>" key first.
	Limiter Limiter
}

// ThreadMessage is one message of a conversation thread.
type ThreadMessage struct {
	User string
	Text string
	TS   string
}

// Client calls the Slack Web API.
type Client struct {
	token   string
	apiRoot string
	http    *http.Client
	limiter Limiter
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	root := strings.TrimRight(strings.TrimSpace(cfg.APIRoot), "/")
	if root == "" {
		root = defaultAPIRoot
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		token:   cfg.BotToken,
		apiRoot: root,
		http:    &http.Client{Timeout: timeout},
		limiter: cfg.Limiter,
	}
}

// Permalink resolves the permanent URL of a message.
func (c *Client) Permalink(ctx context.Context, channel, ts string) (string, error) {
	body, err := c.call(ctx, "chat.getPermalink", url.Values{
		"channel":    {channel},
		"message_ts": {ts},
	})
	if err != nil {
		return "", err
	}
	link := gjson.GetBytes(body, "permalink").String()
	if link == "" {
		return "", &domain.GatewayError{Method: "chat.getPermalink", Code: "missing_permalink"}
	}
	return link, nil
}

// Reactors returns the users who reacted to a message with the named
// reaction, in the order the platform reports them.
func (c *Client) Reactors(ctx context.Context, channel, ts, reaction string) ([]string, error) {
	body, err := c.call(ctx, "reactions.get", url.Values{
		"channel":   {channel},
		"timestamp": {ts},
		"full":      {"true"},
	})
	if err != nil {
		return nil, err
	}
	users := []string{}
	for _, r := range gjson.GetBytes(body, "message.reactions").Array() {
		if r.Get("name").String() != reaction {
			continue
		}
		for _, u := range r.Get("users").Array() {
			users = append(users, u.String())
		}
		break
	}
	return users, nil
}

// PostMessage posts text to channel, as a thread reply when threadTS is set,
// and returns the new message's timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	form := url.Values{
		"channel": {channel},
		"text":    {text},
	}
	if threadTS != "" {
		form.Set("thread_ts", threadTS)
	}
	body, err := c.call(ctx, "chat.postMessage", form)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "ts").String(), nil
}

// AddReaction marks a message with a reaction. Adding a reaction that is
// already present succeeds.
func (c *Client) AddReaction(ctx context.Context, channel, ts, name string) error {
	_, err := c.call(ctx, "reactions.add", url.Values{
		"channel":   {channel},
		"timestamp": {ts},
		"name":      {name},
	})
	var ge *domain.GatewayError
	if errors.As(err, &ge) && ge.Code == "already_reacted" {
		return nil
	}
	return err
}

// Replies returns every message of the thread rooted at ts, parent first.
func (c *Client) Replies(ctx context.Context, channel, ts string) ([]ThreadMessage, error) {
	var out []ThreadMessage
	cursor := ""
	for {
		form := url.Values{
			"channel": {channel},
			"ts":      {ts},
			"limit":   {"200"},
		}
		if cursor != "" {
			form.Set("cursor", cursor)
		}
		body, err := c.call(ctx, "conversations.replies", form)
		if err != nil {
			return nil, err
		}
		for _, m := range gjson.GetBytes(body, "messages").Array() {
			out = append(out, ThreadMessage{
				User: m.Get("user").String(),
				Text: m.Get("text").String(),
				TS:   m.Get("ts").String(),
			})
		}
		cursor = gjson.GetBytes(body, "response_metadata.next_cursor").String()
		if cursor == "" {
			return out, nil
		}
	}
}

func (c *Client) call(ctx context.Context, method string, form url.Values) ([]byte, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "slack."+method)
	defer span.End()
	span.SetAttributes(attribute.String("slack.channel", form.Get("channel")))

	body, err := c.do(ctx, method, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method string, form url.Values) ([]byte, error) {
	if c.limiter != nil {
		key := "slack:" + method
		ok, err := c.limiter.Allow(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if !ok {
			return nil, &domain.RateLimitExceededError{Key: key, Limit: c.limiter.Limit()}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiRoot+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("slack %s: read body: %w", method, err)
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.GatewayError{Method: method, Code: fmt.Sprintf("http_%d", resp.StatusCode)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &domain.GatewayError{Method: method, Code: "invalid_response"}
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		code := gjson.GetBytes(body, "error").String()
		if code == "" {
			code = "unknown_error"
		}
		return nil, &domain.GatewayError{Method: method, Code: code}
	}
	return body, nil
}
