// Package generate wraps the black-box LLM call behind a streaming
// interface with explicit producer/consumer cancellation semantics.
package generate

import (
	"context"

	"github.com/mementohq/memento-go/core"
)

// Request carries everything a generation needs: the system prompt with the
// assembled context, prior conversation turns oldest first, and the
// question itself.
type Request struct {
	System   string
	History  []core.Message
	Question string
}

// Result is the terminal outcome of a streamed generation. Exactly one
// Result is delivered per Stream, after the fragment channel is closed.
// On success Text is the concatenation of every emitted fragment.
type Result struct {
	Text string
	Err  error
}

// Stream delivers text fragments as they become available, then exactly one
// terminal Result. Consumers drain Fragments() (closed before the terminal
// result is sent) and then receive from Done().
type Stream struct {
	fragments chan string
	done      chan Result
}

// NewStream creates a stream for producer implementations.
func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		fragments: make(chan string, buffer),
		done:      make(chan Result, 1),
	}
}

// Fragments returns the fragment channel. It is closed once generation ends,
// whether successfully, with an error, or by cancellation.
func (s *Stream) Fragments() <-chan string {
	return s.fragments
}

// Done returns the terminal channel. Exactly one Result arrives on it.
func (s *Stream) Done() <-chan Result {
	return s.done
}

// Send delivers one fragment, giving up when ctx is cancelled. Producer side
// only. Returns false when the consumer is gone.
func (s *Stream) Send(ctx context.Context, fragment string) bool {
	select {
	case s.fragments <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}

// Finish closes the fragment channel and delivers the terminal result.
// Producer side only; must be called exactly once.
func (s *Stream) Finish(r Result) {
	close(s.fragments)
	s.done <- r
}

// Generator produces a streamed answer for a request. Cancelling ctx stops
// consumption of the underlying model stream promptly; the stream then
// terminates with ctx's error.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Stream, error)
}

// Collect drains a stream to completion and returns the terminal result.
// Convenience for non-streaming callers.
func Collect(s *Stream) Result {
	for range s.Fragments() {
	}
	return <-s.Done()
}
