package wire

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestEncodeSessionID(t *testing.T) {
	data, err := EncodeSessionID("session_42")
	if err != nil {
		t.Fatalf("EncodeSessionID: %v", err)
	}

	var frame SessionIDFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != TypeSessionID {
		t.Errorf("type = %q, want %q", frame.Type, TypeSessionID)
	}
	if frame.SessionID != "session_42" {
		t.Errorf("session_id = %q, want session_42", frame.SessionID)
	}
}

func TestEncodeEnvelope(t *testing.T) {
	data, err := EncodeEnvelope(TypeChat, map[string]string{"message": "hi"})
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeChat || env.Data["message"] != "hi" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestIntegratedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  IntegratedMessage
	}{
		{"text and audio", IntegratedMessage{SessionID: "s1", Text: "hello", Audio: []byte{0xAA, 0xBB}, DurationSeconds: 1.25}},
		{"text only", IntegratedMessage{SessionID: "s1", Text: "hello"}},
		{"audio only", IntegratedMessage{SessionID: "sess", Audio: []byte{1, 2, 3, 4}, DurationSeconds: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeIntegrated(tt.msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeIntegrated(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.SessionID != tt.msg.SessionID || got.Text != tt.msg.Text {
				t.Errorf("got %+v, want %+v", got, tt.msg)
			}
			if !bytes.Equal(got.Audio, tt.msg.Audio) {
				t.Errorf("audio = %v, want %v", got.Audio, tt.msg.Audio)
			}
			if got.DurationSeconds != tt.msg.DurationSeconds {
				t.Errorf("duration = %v, want %v", got.DurationSeconds, tt.msg.DurationSeconds)
			}
		})
	}
}

func TestEncodeIntegratedEmptySessionID(t *testing.T) {
	if _, err := EncodeIntegrated(IntegratedMessage{}); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestDecodeIntegratedMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong type", []byte{0x01, 0, 0, 0, 0}},
		{"truncated length", []byte{0x03, 1, 0}},
		{"length past end", []byte{0x03, 0xFF, 0xFF, 0xFF, 0x7F, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeIntegrated(tt.data); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
