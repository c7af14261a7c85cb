package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Answer is a grounded chat reply
type Answer struct {
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	ContextChunks int      `json:"contextChunks"`
}

// Ask answers a free-form question from the closest chunks. Retrieval errors
// degrade to an answer without context; generation errors are returned.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	if err := requireField("question", question); err != nil {
		return nil, err
	}
	if err := o.checkCredential(); err != nil {
		return nil, err
	}

	r := o.retrieve(ctx, question, o.cfg.ChatK, chatSep)
	reply, err := o.completer.Complete(ctx, chatMessages(question, r))
	o.metrics.GenerationCall("chat", err)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	o.logger.Debug("question answered",
		zap.Int("chunks", r.Chunks),
		zap.Strings("sources", r.Sources))
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	return &Answer{Answer: reply, Sources: sources, ContextChunks: r.Chunks}, nil
}
