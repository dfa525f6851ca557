package chat

import (
	"context"
	"log"

	"github.com/soluna-labs/talkgate/internal/wire"
)

// Transport pushes frames to a live session. Both methods report
// delivery as a boolean; an unregistered or closed session is a normal
// outcome, not an error.
type Transport interface {
	SendText(ctx context.Context, sessionID, text string) bool
	SendBinary(ctx context.Context, sessionID string, data []byte) bool
}

// DatagramPusher is the optional fire-and-forget fallback path.
type DatagramPusher interface {
	Push(sessionID string, payload []byte) bool
}

// Sender serializes the result and delivers it through the registry.
// Results carrying audio go out as a binary integrated frame, everything
// else as a JSON text envelope. When the live connection is gone and a
// datagram target is registered, the text form is pushed there instead.
type Sender struct {
	transport Transport
	datagram  DatagramPusher
}

func NewSender(transport Transport, datagram DatagramPusher) *Sender {
	return &Sender{transport: transport, datagram: datagram}
}

// Deliver sends the result to its session, best-effort. It reports
// whether any path accepted the frame.
func (s *Sender) Deliver(ctx context.Context, result Result) bool {
	if result.Audio != nil {
		frame, err := wire.EncodeIntegrated(wire.IntegratedMessage{
			SessionID:       result.SessionID,
			Text:            result.AIResponse,
			Audio:           result.Audio.Data,
			DurationSeconds: float32(result.Audio.DurationSeconds),
		})
		if err != nil {
			log.Printf("[chat] encode integrated frame: %v", err)
		} else if s.transport.SendBinary(ctx, result.SessionID, frame) {
			return true
		}
		// Fall through to the text form.
	}

	typ := wire.TypeChat
	if !result.IsSuccess {
		typ = wire.TypeError
	}
	payload, err := wire.EncodeEnvelope(typ, result)
	if err != nil {
		log.Printf("[chat] encode result envelope: %v", err)
		return false
	}
	if s.transport.SendText(ctx, result.SessionID, string(payload)) {
		return true
	}
	if s.datagram != nil && s.datagram.Push(result.SessionID, payload) {
		return true
	}
	log.Printf("[chat] result for session %s not delivered", result.SessionID)
	return false
}
