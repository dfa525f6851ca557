package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Request carries the assembled prompt material for one generation.
type Request struct {
	SystemMessage       string
	UserMessage         string
	Instructions        string
	MemoryContext       []string
	ConversationHistory []string
	MaxTokens           int
	Temperature         float64
	Model               string
}

// Response is the outcome of one generation call.
type Response struct {
	Text       string
	TokensUsed int
	LatencyMs  int64
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate performs exactly one completion call. Transport failures,
// timeouts and non-2xx statuses come back as errors; the caller decides
// how to surface them.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, fmt.Errorf("missing llm api key")
	}
	if c.baseURL == "" {
		return Response{}, fmt.Errorf("missing llm base url")
	}
	if req.Model == "" {
		return Response{}, fmt.Errorf("missing llm model")
	}

	body := completionRequest{
		Model:       req.Model,
		Messages:    buildMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("llm http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded completionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("empty choices in response")
	}

	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return Response{}, fmt.Errorf("empty content in response")
	}

	return Response{
		Text:       text,
		TokensUsed: decoded.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// buildMessages folds the prompt material into chat messages: one
// system message for persona and instructions, one system message for
// gathered context when present, then the user turn.
func buildMessages(req Request) []chatMessage {
	messages := make([]chatMessage, 0, 3)

	var persona strings.Builder
	persona.WriteString(strings.TrimSpace(req.SystemMessage))
	if inst := strings.TrimSpace(req.Instructions); inst != "" {
		if persona.Len() > 0 {
			persona.WriteString("\n\n")
		}
		persona.WriteString(inst)
	}
	if persona.Len() > 0 {
		messages = append(messages, chatMessage{Role: "system", Content: persona.String()})
	}

	var contextBlock strings.Builder
	if len(req.MemoryContext) > 0 {
		contextBlock.WriteString("[Relevant Memory]\n")
		for _, m := range req.MemoryContext {
			contextBlock.WriteString("- ")
			contextBlock.WriteString(m)
			contextBlock.WriteString("\n")
		}
	}
	if len(req.ConversationHistory) > 0 {
		if contextBlock.Len() > 0 {
			contextBlock.WriteString("\n")
		}
		contextBlock.WriteString("[Recent Conversation]\n")
		for _, line := range req.ConversationHistory {
			contextBlock.WriteString(line)
			contextBlock.WriteString("\n")
		}
	}
	if contextBlock.Len() > 0 {
		messages = append(messages, chatMessage{Role: "system", Content: strings.TrimRight(contextBlock.String(), "\n")})
	}

	messages = append(messages, chatMessage{Role: "user", Content: req.UserMessage})
	return messages
}
