package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCatalogGet(t *testing.T) {
	c := DefaultCatalog()

	p, ok := c.Get("Haru")
	if !ok {
		t.Fatal("expected Haru in default catalog")
	}
	if p.VoiceID == "" || p.Model != DefaultModel {
		t.Errorf("profile = %+v", p)
	}

	if _, ok := c.Get("Nobody"); ok {
		t.Error("expected unknown voice to be absent")
	}
}

func TestCatalogGetIgnoresCase(t *testing.T) {
	c := DefaultCatalog()

	for _, name := range []string{"hyewon", "Hyewon", "HYEWON"} {
		p, ok := c.Get(name)
		if !ok {
			t.Errorf("Get(%q) missed", name)
			continue
		}
		if p.Name != "Hyewon" {
			t.Errorf("Get(%q) = %q, want Hyewon", name, p.Name)
		}
	}
}

func TestProfileSupportsStyle(t *testing.T) {
	p := Profile{SupportedStyles: []string{"Angry", "Neutral"}}

	if !p.SupportsStyle("Neutral") {
		t.Error("expected Neutral supported")
	}
	if !p.SupportsStyle("neutral") {
		t.Error("expected case-insensitive style match")
	}
	if p.SupportsStyle("Whisper") {
		t.Error("expected Whisper unsupported")
	}
}

func TestLanguageSupported(t *testing.T) {
	for _, lang := range []string{"ko", "en", "ja"} {
		if !LanguageSupported(lang) {
			t.Errorf("expected %q supported", lang)
		}
	}
	if LanguageSupported("fr") {
		t.Error("expected fr unsupported")
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["text"] != "hello" {
			t.Errorf("text = %v", body["text"])
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("X-Audio-Length", "1.75")
		w.Write(audio)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	resp, err := c.Synthesize(context.Background(), SynthesisRequest{
		VoiceID:  "voice-1",
		Text:     "hello",
		Language: "ko",
		Model:    DefaultModel,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.ErrorMessage)
	}
	if len(resp.Audio) != len(audio) {
		t.Errorf("audio = %d bytes, want %d", len(resp.Audio), len(audio))
	}
	if resp.ContentType != "audio/wav" {
		t.Errorf("content type = %q", resp.ContentType)
	}
	if resp.DurationSeconds != 1.75 {
		t.Errorf("duration = %v, want 1.75", resp.DurationSeconds)
	}
}

func TestSynthesizeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	resp, err := c.Synthesize(context.Background(), SynthesisRequest{VoiceID: "v", Text: "hi", Language: "ko"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if resp.Success {
		t.Error("expected failure response")
	}
	if !strings.Contains(resp.ErrorMessage, "429") {
		t.Errorf("error = %q, want status code surfaced", resp.ErrorMessage)
	}
}

func TestSynthesizeMissingVoiceID(t *testing.T) {
	c := NewClient("http://localhost:0", "")
	if _, err := c.Synthesize(context.Background(), SynthesisRequest{Text: "hi"}); err == nil {
		t.Error("expected error for missing voice id")
	}
}
