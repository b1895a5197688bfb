package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"accidentes-platform/pkg/logging"
)

// APICall is the constrained response format the language model must emit.
// The model's text is decoded strictly against this schema and validated
// before any request is made; it is never evaluated as code.
type APICall struct {
	Endpoint           string            `json:"endpoint"`
	Params             map[string]string `json:"params"`
	NeedsClarification bool              `json:"needs_clarification"`
	Clarification      string            `json:"clarification"`
}

var recordByIDPattern = regexp.MustCompile(`^/records/[0-9]+$`)

// ValidateEndpoint restricts a decoded call to the read-only surface of the
// accident API.
func ValidateEndpoint(endpoint string) error {
	switch {
	case endpoint == "/records", endpoint == "/search":
		return nil
	case recordByIDPattern.MatchString(endpoint):
		return nil
	default:
		return fmt.Errorf("model requested a disallowed endpoint: %q", endpoint)
	}
}

// DecodeAPICall strictly parses the model reply. Markdown code fences are
// tolerated; unknown fields, trailing data, and non-JSON text are not.
func DecodeAPICall(reply string) (*APICall, error) {
	reply = stripCodeFence(reply)

	dec := json.NewDecoder(strings.NewReader(reply))
	dec.DisallowUnknownFields()

	var call APICall
	if err := dec.Decode(&call); err != nil {
		return nil, fmt.Errorf("model reply is not a valid API call: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("model reply contains trailing data")
	}

	if call.NeedsClarification {
		return &call, nil
	}

	if err := ValidateEndpoint(call.Endpoint); err != nil {
		return nil, err
	}

	return &call, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

const systemPrompt = `You translate natural-language questions into REST calls.
Available endpoints:
- GET /records -> list records
- GET /records/{id} -> fetch one record by id
- GET /search?q=<keyword>&clasacc=<value> -> filtered search

Reply ONLY with a JSON object of this exact shape:
{"endpoint": "...", "params": {...}, "needs_clarification": false, "clarification": ""}
If the question is ambiguous, reply with:
{"endpoint": "", "params": {}, "needs_clarification": true, "clarification": "<what you need>"}`

// LLM is the language model dependency; satisfied by Client.
type LLM interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates an LLM client
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat sends one system+user exchange and returns the model text.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat request returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contains no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Agent answers natural-language questions by translating them into calls
// against the accident API and summarizing the results.
type Agent struct {
	apiBase    string
	llm        LLM
	httpClient *http.Client
	logger     *logging.StructuredLogger
}

// NewAgent creates an agent over the given API base URL and model client
func NewAgent(apiBase string, llm LLM, logger *logging.StructuredLogger) *Agent {
	return &Agent{
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		llm:        llm,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Query runs the full loop: interpret the question, call the API, summarize.
func (a *Agent) Query(ctx context.Context, question string) (string, error) {
	reply, err := a.llm.Chat(ctx, systemPrompt, question)
	if err != nil {
		return "", fmt.Errorf("failed to interpret question: %w", err)
	}

	call, err := DecodeAPICall(reply)
	if err != nil {
		return "", err
	}

	if call.NeedsClarification {
		return "Necesito más información: " + call.Clarification, nil
	}

	data, err := a.callAPI(ctx, call)
	if err != nil {
		return "", err
	}

	summary, err := a.llm.Chat(ctx,
		"You summarize accident query results clearly and briefly, in the language of the data.",
		fmt.Sprintf("Summarize these accident records (at most the first 5):\n%s", data))
	if err != nil {
		return "", fmt.Errorf("failed to summarize results: %w", err)
	}

	return strings.TrimSpace(summary), nil
}

func (a *Agent) callAPI(ctx context.Context, call *APICall) (string, error) {
	u, err := url.Parse(a.apiBase + call.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	for k, v := range call.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	a.logger.Debug(ctx, "[AGENT_CALL] Calling accident API", logging.Fields{
		"url": u.String(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, string(data))
	}

	return string(data), nil
}
