// Package orchestrator produces lessons, quizzes and answers from retrieved
// course material.
//
// # Lesson Lifecycle
//
// Each (course ID, chapter title) key moves through
//
//	Uncached -> Retrieving context -> Generating -> Cached
//
// GenerateLesson and StreamLesson return the stored lesson straight away when
// one exists and ForceRegenerate is false. No embedding or completion call is
// made on that path. Otherwise the chapter title is used as the retrieval
// query, the top chunks become the prompt context and the completion is
// persisted as the new lesson for the key, replacing the old one.
//
// # Degraded Modes
//
//   - Retrieval failure: logged, generation continues with empty context
//   - Upstream failure: a labelled fallback lesson is returned and not persisted
//   - Missing credential: returned as an error wrapping types.ErrConfiguration
//
// # Streaming
//
//	ls, err := orch.StreamLesson(ctx, orchestrator.LessonRequest{CourseID: id, ChapterTitle: "Loops"})
//	if err != nil {
//	    return err
//	}
//	for delta := range ls.Deltas() {
//	    w.Write([]byte(delta))
//	    log.Printf("%.0f%%", ls.Progress()*100)
//	}
//	result, err := ls.Wait()
//
// The lesson is saved only after the upstream stream completes. Cancelling
// ctx or calling Close discards the partial text. A stream that breaks after
// output was delivered ends with MidStreamMarker and Wait returns
// ErrGenerationInterrupted.
//
// # Quizzes
//
// GenerateQuiz asks for exactly ten questions. Chapter quizzes retrieve with
// the chapter title; an empty title or "GENERAL" retrieves course-wide
// material with a wider K. Quizzes are kept in memory for the quiz TTL and
// are persisted to the registry only when Config.PersistQuizzes is set.
package orchestrator
