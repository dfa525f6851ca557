package chat

import (
	"context"
	"log"
	"sync"
)

// Pipeline states, logged as each request advances.
type State string

const (
	StateReceived         State = "received"
	StateValidated        State = "validated"
	StatePreprocessed     State = "preprocessed"
	StateGenerated        State = "generated"
	StateSynthesized      State = "synthesized"
	StateSynthesisSkipped State = "synthesis_skipped"
	StatePersisted        State = "persisted"
	StateDelivered        State = "delivered"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Orchestrator runs one request through the full pipeline. Its contract
// is that Handle always returns a Result; no stage failure escapes it.
type Orchestrator struct {
	validator *Validator
	pre       *Preprocessor
	llm       *LLMHandler
	tts       *TTSHandler
	persister *Persister
	sender    *Sender
}

func NewOrchestrator(v *Validator, pre *Preprocessor, llm *LLMHandler, tts *TTSHandler, persister *Persister, sender *Sender) *Orchestrator {
	return &Orchestrator{
		validator: v,
		pre:       pre,
		llm:       llm,
		tts:       tts,
		persister: persister,
		sender:    sender,
	}
}

// Handle processes one request end to end and returns its Result.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[chat] session %s: recovered: %v", req.SessionID, r)
			result = Result{
				SessionID:    req.SessionID,
				UserMessage:  req.Message,
				ErrorCode:    CodeInternal,
				ErrorMessage: "internal error",
			}
			o.sender.Deliver(ctx, result)
		}
	}()

	state := StateReceived

	if v := o.validator.Validate(ctx, req); !v.OK {
		state = StateFailed
		result = Result{
			SessionID:    req.SessionID,
			UserMessage:  req.Message,
			ErrorCode:    v.ErrorCode,
			ErrorMessage: v.Message,
		}
		// An unknown session has no connection to answer on; every
		// other validation failure is reported back to the client.
		if v.ErrorCode != CodeInvalidSession {
			o.sender.Deliver(ctx, result)
		}
		log.Printf("[chat] session %s: %s (%s)", req.SessionID, state, v.ErrorCode)
		return result
	}
	state = StateValidated

	cctx, voiceName := o.pre.Assemble(ctx, req)
	state = StatePreprocessed

	gen := o.llm.Generate(ctx, cctx)
	state = StateGenerated

	result = Result{
		SessionID:   req.SessionID,
		UserMessage: req.Message,
		AIResponse:  gen.Text,
		IsSuccess:   gen.Success,
		TokensUsed:  gen.TokensUsed,
	}
	if !gen.Success {
		result.ErrorCode = CodeGenerationFailed
		result.ErrorMessage = gen.ErrorMessage
	}

	if req.UseTTS && gen.Success && o.tts != nil {
		syn := o.tts.Synthesize(ctx, gen.Text, voiceName, req.Style, req.Language, req.Voice)
		if syn.Success {
			result.Audio = syn.Audio
			state = StateSynthesized
		} else {
			// Degrade to text-only, the reply itself still stands.
			log.Printf("[chat] session %s: synthesis degraded: %s", req.SessionID, syn.ErrorMessage)
			state = StateSynthesisSkipped
		}
	} else {
		state = StateSynthesisSkipped
	}

	// Persistence and delivery are independent once the result exists.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.persister.Persist(ctx, req.UserID, req.CharacterID, result)
	}()
	go func() {
		defer wg.Done()
		o.sender.Deliver(ctx, result)
	}()
	wg.Wait()
	state = StateDone

	log.Printf("[chat] session %s: %s success=%t tokens=%d latency=%dms",
		req.SessionID, state, result.IsSuccess, result.TokensUsed, gen.LatencyMs)
	return result
}
