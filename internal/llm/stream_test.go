package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_Collect(t *testing.T) {
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for _, d := range []string{"Hello", "", ", ", "world"} {
			if !emit(d) {
				return nil
			}
		}
		return nil
	})

	got, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got)
}

func TestStream_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		emit("partial")
		return boom
	})

	got, err := Collect(s)
	assert.Equal(t, "partial", got)
	assert.ErrorIs(t, err, boom)
}

func TestStream_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	produced := make(chan struct{})

	s := NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		defer close(produced)
		for emit("tick") {
		}
		return nil
	})

	<-s.Deltas()
	cancel()

	select {
	case <-produced:
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after cancellation")
	}
	for range s.Deltas() {
	}
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestStream_Close(t *testing.T) {
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for emit("x") {
		}
		return nil
	})

	<-s.Deltas()
	s.Close()
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestStream_ReleasesContextOnCompletion(t *testing.T) {
	var producerCtx context.Context
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		producerCtx = ctx
		emit("done")
		return nil
	})

	text, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	select {
	case <-producerCtx.Done():
	default:
		t.Fatal("producer context still live after the stream completed")
	}
}
