package classify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nhle/mail-triage/internal/model"
)

const (
	defaultModel      = "claude-sonnet-4-20250514"
	defaultMaxTokens  = 1024
	defaultMaxRetries = 3
	apiURL            = "https://api.anthropic.com/v1/messages"
	apiVersion        = "2023-06-01"
)

// systemPrompt asks for a single strict JSON verdict. The criteria
// mirror how an assistant triages a personal inbox: junk and bulk mail
// are filtered out, everything else gets a drafted reply.
const systemPrompt = `You are a high-level executive assistant. Your task is to triage one incoming email before any response is drafted.

Classify the email into exactly one category:
- "spam": unsolicited marketing, a newsletter the user did not sign up for, or suspicious phishing.
- "notification": automated mail that needs no response, such as mail from a noreply address or mail whose body says not to reply to it.
- "reply_needed": a real correspondent who expects an answer.
- "unclassified": only if you genuinely cannot tell.

Also assign a topic from [Inquiry, Complaint, Feedback, Other].

If and only if the category is "reply_needed", draft a professional reply in a concise, intellectually rigorous tone. Plain text only, no HTML, no subject line, no signature placeholder.

Respond with a single JSON object and nothing else:
{"category": "...", "topic": "...", "reply": "..."}
Leave "reply" empty unless the category is "reply_needed".`

// ClaudeClassifier classifies messages with the Claude Messages API.
// It retries on HTTP 429 with exponential backoff and polices the
// verdict so only well-formed results reach the caller.
type ClaudeClassifier struct {
	apiKey     string
	model      string
	maxTokens  int
	maxRetries int
	client     *http.Client
}

// NewClaude creates a classifier backed by the Claude API.
func NewClaude(apiKey string, modelName string, maxTokens int) *ClaudeClassifier {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &ClaudeClassifier{
		apiKey:     apiKey,
		model:      modelName,
		maxTokens:  maxTokens,
		maxRetries: defaultMaxRetries,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Classify sends one message to the model and decodes its verdict.
func (c *ClaudeClassifier) Classify(
	ctx context.Context,
	content *model.Content,
) (*Result, error) {
	resp, err := c.callAPI(ctx, content)
	if err != nil {
		return nil, &Error{Message: "calling model", Err: err}
	}

	var textParts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	raw := strings.TrimSpace(strings.Join(textParts, ""))
	if raw == "" {
		return nil, &Error{Message: "empty model response"}
	}

	return parseVerdict(raw)
}

// verdict is the JSON object the model is instructed to return.
type verdict struct {
	Category string `json:"category"`
	Topic    string `json:"topic"`
	Reply    string `json:"reply"`
}

// parseVerdict decodes and polices the model's raw text output.
func parseVerdict(raw string) (*Result, error) {
	var v verdict
	dec := json.NewDecoder(strings.NewReader(stripFences(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, &Error{Message: "decoding verdict", Err: err}
	}

	category := model.Category(v.Category)
	if !category.Valid() {
		return nil, &Error{
			Message: fmt.Sprintf("model returned unknown category %q", v.Category),
		}
	}

	topic := model.Topic(v.Topic)
	if !topic.Valid() {
		topic = model.TopicOther
	}

	draft := strings.TrimSpace(v.Reply)
	if category == model.CategoryReplyNeeded && draft == "" {
		return nil, &Error{Message: "reply_needed verdict without a draft"}
	}
	if category != model.CategoryReplyNeeded {
		// A stray draft on a no-reply category is discarded, not sent.
		draft = ""
	}

	return &Result{Category: category, Topic: topic, Draft: draft}, nil
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// callAPI makes a request to the Claude Messages API, retrying on 429.
func (c *ClaudeClassifier) callAPI(
	ctx context.Context,
	content *model.Content,
) (*apiResponse, error) {
	userPrompt := fmt.Sprintf(
		"Email from: %s\nSubject: %s\nEmail body:\n%s",
		content.Sender, content.Subject, content.Body,
	)

	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []apiMessage{
			{
				Role:    "user",
				Content: []apiContentBlock{{Type: "text", Text: userPrompt}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, apiURL, bytes.NewReader(bodyBytes),
		)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling Claude API: %w", err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) by Claude API")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiErrorResponse
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				return nil, fmt.Errorf(
					"API error (%d): %s", resp.StatusCode, apiErr.Error.Message,
				)
			}
			return nil, fmt.Errorf(
				"API error (%d): %s", resp.StatusCode, string(respBody),
			)
		}

		var result apiResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}

		return &result, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
