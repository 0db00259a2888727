package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitTerminalOnOpenChannel(t *testing.T) {
	out := make(chan StreamEvent, 1)
	emitTerminal(out, EndEvent{})

	require.Len(t, out, 1)
	_, ok := (<-out).(EndEvent)
	assert.True(t, ok)
}

func TestEmitTerminalDoesNotBlockOnFullChannel(t *testing.T) {
	out := make(chan StreamEvent, 16)
	for i := 0; i < cap(out); i++ {
		out <- ChunkEvent{Text: "x"}
	}

	// A reader-less, full channel must not wedge the producer.
	emitTerminal(out, ErrorEvent{Kind: ErrorKindCancelled, Err: context.Canceled})
	assert.Len(t, out, cap(out))
}
