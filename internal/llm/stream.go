package llm

import (
	"context"
	"strings"
)

// Stream is a sequence of text deltas produced by a streamed completion.
//
// Consumers range over Deltas until it is closed, then check Err. Close
// cancels the producer and may be called at any time.
type Stream struct {
	deltas chan string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Producer writes deltas through emit until the completion ends.
// emit returns false once the stream has been cancelled.
type Producer func(ctx context.Context, emit func(string) bool) error

// NewStream runs produce in its own goroutine and exposes its output as a Stream.
// The stream's lifetime is bound to ctx.
func NewStream(ctx context.Context, produce Producer) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		deltas: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	emit := func(delta string) bool {
		if delta == "" {
			return ctx.Err() == nil
		}
		select {
		case s.deltas <- delta:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(s.done)
		defer cancel()
		defer close(s.deltas)
		err := produce(ctx, emit)
		if err == nil {
			err = ctx.Err()
		}
		s.err = err
	}()

	return s
}

// Deltas returns the channel of text fragments
func (s *Stream) Deltas() <-chan string {
	return s.deltas
}

// Err reports why the stream ended. It blocks until the producer has finished
// and returns nil for a complete response.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Close cancels the stream and waits for the producer to stop
func (s *Stream) Close() {
	s.cancel()
	for range s.deltas {
	}
	<-s.done
}

// Collect drains the stream into a single string
func Collect(s *Stream) (string, error) {
	var b strings.Builder
	for delta := range s.Deltas() {
		b.WriteString(delta)
	}
	return b.String(), s.Err()
}
