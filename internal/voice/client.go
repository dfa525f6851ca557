package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// SynthesisRequest is one text-to-speech call.
type SynthesisRequest struct {
	VoiceID  string    `json:"-"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Style    string    `json:"style,omitempty"`
	Model    string    `json:"model"`
	Settings *Settings `json:"voice_settings,omitempty"`
}

// SynthesisResponse carries the synthesized audio or the failure reason.
type SynthesisResponse struct {
	Audio           []byte
	ContentType     string
	DurationSeconds float64
	Success         bool
	ErrorMessage    string
}

// Client calls the text-to-speech vendor. Audio comes back as the raw
// response body; duration arrives in the X-Audio-Length header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Synthesize performs one synthesis call. Transport and HTTP-level
// failures are returned as an unsuccessful response, not an error; err
// is reserved for request construction problems.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResponse, error) {
	if c.baseURL == "" {
		return SynthesisResponse{}, fmt.Errorf("missing tts base url")
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		return SynthesisResponse{}, fmt.Errorf("missing voice id")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return SynthesisResponse{}, fmt.Errorf("marshal tts request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return SynthesisResponse{}, fmt.Errorf("create tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SynthesisResponse{
			Success:      false,
			ErrorMessage: fmt.Sprintf("tts request failed: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SynthesisResponse{
			Success:      false,
			ErrorMessage: fmt.Sprintf("tts http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return SynthesisResponse{
			Success:      false,
			ErrorMessage: fmt.Sprintf("read tts response: %v", err),
		}, nil
	}

	out := SynthesisResponse{
		Audio:       audio,
		ContentType: resp.Header.Get("Content-Type"),
		Success:     true,
	}
	if h := resp.Header.Get("X-Audio-Length"); h != "" {
		if dur, err := strconv.ParseFloat(h, 64); err == nil {
			out.DurationSeconds = dur
		}
	}

	log.Printf("[voice] synthesized %d bytes (%.2fs) in %s", len(audio), out.DurationSeconds, time.Since(start).Round(time.Millisecond))
	return out, nil
}
