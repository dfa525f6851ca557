package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Envelope is the JSON shape of every text frame sent to a client.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	TypeSessionID = "session_id"
	TypeChat      = "chat"
	TypeError     = "error"
)

// SessionIDFrame is the handshake frame issued before any chat traffic.
type SessionIDFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// EncodeEnvelope serializes an envelope for a text frame.
func EncodeEnvelope(typ string, data any) ([]byte, error) {
	payload, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return payload, nil
}

// EncodeSessionID serializes the handshake frame.
func EncodeSessionID(sessionID string) ([]byte, error) {
	payload, err := json.Marshal(SessionIDFrame{Type: TypeSessionID, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal session id frame: %w", err)
	}
	return payload, nil
}

const (
	frameTypeIntegrated = 0x03

	frameHeaderSize = 1
	frameLenSize    = 4
)

// IntegratedMessage is the binary frame carrying a reply plus audio.
// Layout: [1-byte type 0x03][4-byte LE len + session id][4-byte LE len +
// text, len 0 when absent][4-byte LE len + audio, len 0 when absent]
// [4-byte LE float32 duration seconds].
type IntegratedMessage struct {
	SessionID       string
	Text            string
	Audio           []byte
	DurationSeconds float32
}

// EncodeIntegrated encodes an integrated audio frame.
func EncodeIntegrated(msg IntegratedMessage) ([]byte, error) {
	if msg.SessionID == "" {
		return nil, fmt.Errorf("encode integrated: empty session id")
	}

	sessionBytes := []byte(msg.SessionID)
	textBytes := []byte(msg.Text)

	size := frameHeaderSize +
		frameLenSize + len(sessionBytes) +
		frameLenSize + len(textBytes) +
		frameLenSize + len(msg.Audio) +
		frameLenSize

	buf := make([]byte, 0, size)
	buf = append(buf, frameTypeIntegrated)
	buf = appendChunk(buf, sessionBytes)
	buf = appendChunk(buf, textBytes)
	buf = appendChunk(buf, msg.Audio)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(msg.DurationSeconds))
	return buf, nil
}

// DecodeIntegrated decodes a frame created by EncodeIntegrated.
func DecodeIntegrated(data []byte) (IntegratedMessage, error) {
	var msg IntegratedMessage

	if len(data) < frameHeaderSize {
		return msg, fmt.Errorf("decode integrated: short frame: %d bytes", len(data))
	}
	if data[0] != frameTypeIntegrated {
		return msg, fmt.Errorf("decode integrated: unexpected frame type 0x%02x", data[0])
	}

	rest := data[frameHeaderSize:]
	sessionBytes, rest, err := readChunk(rest)
	if err != nil {
		return msg, fmt.Errorf("decode integrated: session id: %w", err)
	}
	if len(sessionBytes) == 0 {
		return msg, fmt.Errorf("decode integrated: empty session id")
	}

	textBytes, rest, err := readChunk(rest)
	if err != nil {
		return msg, fmt.Errorf("decode integrated: text: %w", err)
	}

	audio, rest, err := readChunk(rest)
	if err != nil {
		return msg, fmt.Errorf("decode integrated: audio: %w", err)
	}

	if len(rest) != frameLenSize {
		return msg, fmt.Errorf("decode integrated: trailing size %d, want %d", len(rest), frameLenSize)
	}

	msg.SessionID = string(sessionBytes)
	msg.Text = string(textBytes)
	if len(audio) > 0 {
		msg.Audio = audio
	}
	msg.DurationSeconds = math.Float32frombits(binary.LittleEndian.Uint32(rest))
	return msg, nil
}

func appendChunk(buf, chunk []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(chunk)))
	return append(buf, chunk...)
}

func readChunk(data []byte) (chunk, rest []byte, err error) {
	if len(data) < frameLenSize {
		return nil, nil, fmt.Errorf("short length prefix: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data[:frameLenSize]))
	data = data[frameLenSize:]
	if n < 0 || n > len(data) {
		return nil, nil, fmt.Errorf("chunk length %d exceeds remaining %d", n, len(data))
	}
	return data[:n], data[n:], nil
}
