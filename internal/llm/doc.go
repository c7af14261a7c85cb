// Package llm is the boundary to the text generation capability.
//
// Completer offers two modes. Complete blocks for the whole response;
// Stream returns a *Stream whose Deltas channel yields text fragments as
// they arrive:
//
//	s, err := completer.Stream(ctx, []llm.Message{
//	    llm.System("You are a tutor."),
//	    llm.User("Explain goroutines."),
//	})
//	if err != nil {
//	    return err // nothing was produced
//	}
//	for delta := range s.Deltas() {
//	    fmt.Print(delta)
//	}
//	if err := s.Err(); err != nil {
//	    // the stream broke after some output was delivered
//	}
//
// Cancelling the context passed to Stream, or calling Close, stops the
// producer; Err then reports context.Canceled.
//
// OpenAIProvider speaks the OpenAI chat completions API, including the
// server-sent-events stream format and the json_object response format.
// A provider without an API key fails every call with ErrMissingCredential,
// which wraps types.ErrConfiguration.
package llm
