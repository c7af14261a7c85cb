package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

func TestAsk(t *testing.T) {
	f := newFixture(t, Config{})
	f.completer.reply = "A loop repeats statements."

	ans, err := f.orch.Ask(context.Background(), "What is a loop?")
	require.NoError(t, err)

	assert.Equal(t, "A loop repeats statements.", ans.Answer)
	assert.Equal(t, []string{"go.pdf", "book.pdf"}, ans.Sources)
	assert.Equal(t, 3, ans.ContextChunks)
	assert.Equal(t, []int{DefaultChatK}, f.retriever.limits)

	msgs := f.completer.lastMessages()
	assert.Contains(t, msgs[0].Content,
		"Loops repeat a block of statements.\n---\nA for loop has init, condition and post.\n---\nRange iterates over slices and maps.")
	assert.Equal(t, "What is a loop?", msgs[1].Content)
}

func TestAsk_NoContext(t *testing.T) {
	f := newFixture(t, Config{})
	f.retriever.results = []types.SearchResult{}
	f.completer.reply = "Not in your material, but..."

	ans, err := f.orch.Ask(context.Background(), "What is a monad?")
	require.NoError(t, err)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.Contains(t, f.completer.lastMessages()[0].Content, "not in the uploaded material")
}

func TestAsk_Errors(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.orch.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	f.completer.err = errors.New("rate limited")
	_, err = f.orch.Ask(context.Background(), "What is a loop?")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}
