package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
)

// ErrorKind classifies generation failures so callers can pick an
// appropriate user-facing fallback.
type ErrorKind string

const (
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindQuota     ErrorKind = "quota"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindProvider  ErrorKind = "provider"
)

// StreamEvent is one event on an answer stream. A stream carries zero or
// more ChunkEvents followed by exactly one terminal event, either EndEvent
// or ErrorEvent.
type StreamEvent interface {
	isStreamEvent()
}

// ChunkEvent carries an incremental piece of generated text.
type ChunkEvent struct {
	Text string
}

// EndEvent marks successful completion of the stream.
type EndEvent struct{}

// ErrorEvent terminates the stream with a classified failure.
type ErrorEvent struct {
	Kind ErrorKind
	Err  error
}

func (ChunkEvent) isStreamEvent() {}
func (EndEvent) isStreamEvent()   {}
func (ErrorEvent) isStreamEvent() {}

// ClassifyError maps a generation failure onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindProvider
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key") || strings.Contains(msg, "authentication"):
		return ErrorKindAuth
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "insufficient"):
		return ErrorKindQuota
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrorKindTimeout
	default:
		return ErrorKindProvider
	}
}

// StreamAnswer streams an answer for the prompt. Events arrive on the
// returned channel, which is closed after the terminal event. Cancelling the
// context aborts the provider call and ends the stream with ErrorEvent of
// kind cancelled.
func (s *Service) StreamAnswer(ctx context.Context, systemPrompt, prompt string) (<-chan StreamEvent, error) {
	provider := selectProvider(s.cfg, s.cfg.AnswerModel)
	if provider == nil {
		return nil, errors.New("no enabled AI provider")
	}

	model, err := buildLanguageModel(provider)
	if err != nil {
		return nil, err
	}

	streamResp, err := jetai.StreamText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(s.maxAnswerTokens()),
	)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		for event := range streamResp.Stream {
			switch evt := event.(type) {
			case *jetapi.TextDeltaEvent:
				if evt.TextDelta == "" {
					continue
				}
				select {
				case out <- ChunkEvent{Text: evt.TextDelta}:
				case <-ctx.Done():
					emitTerminal(out, ErrorEvent{Kind: ErrorKindCancelled, Err: ctx.Err()})
					return
				}
			case *jetapi.ErrorEvent:
				streamErr := fmt.Errorf("AI stream failed")
				if evt.Err != nil {
					streamErr = fmt.Errorf("%v", evt.Err)
				}
				emitTerminal(out, ErrorEvent{Kind: ClassifyError(streamErr), Err: streamErr})
				return
			}
		}
		if ctx.Err() != nil {
			emitTerminal(out, ErrorEvent{Kind: ErrorKindCancelled, Err: ctx.Err()})
		} else {
			emitTerminal(out, EndEvent{})
		}
	}()
	return out, nil
}

// emitTerminal delivers the terminal event without ever blocking. The
// consumer may have walked away mid-stream (a stop request), leaving the
// buffer full; in that case the event is dropped and the close of the
// channel is what the consumer observes.
func emitTerminal(out chan<- StreamEvent, evt StreamEvent) {
	select {
	case out <- evt:
	default:
	}
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}
