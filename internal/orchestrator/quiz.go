package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/llm"
	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// QuizRequest asks for a quiz on one chapter, or on the whole course when
// ChapterTitle is empty or types.GeneralChapter
type QuizRequest struct {
	CourseID     string `json:"courseId"`
	ChapterTitle string `json:"chapterTitle,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
}

// IsGeneral reports whether the request is for a course-wide quiz
func (r QuizRequest) IsGeneral() bool {
	return strings.TrimSpace(r.ChapterTitle) == "" || r.ChapterTitle == types.GeneralChapter
}

// GenerateQuiz retrieves context and asks for a multiple-choice quiz.
// There is no fallback: an upstream failure or an answer that does not match
// the quiz schema returns an error and no partial quiz.
func (o *Orchestrator) GenerateQuiz(ctx context.Context, req QuizRequest) (*types.Test, error) {
	if err := requireField("courseId", req.CourseID); err != nil {
		return nil, err
	}
	if req.Difficulty == "" {
		req.Difficulty = DefaultDifficulty
	}
	if err := o.checkCredential(); err != nil {
		return nil, err
	}

	query, k, target, chapter := req.ChapterTitle, o.cfg.ChapterQuizK, req.ChapterTitle, req.ChapterTitle
	if req.IsGeneral() {
		query, k, target, chapter = GeneralQuizQuery, o.cfg.GeneralQuizK, GeneralQuizTitle, types.GeneralChapter
	}
	logger := o.logger.With(zap.String("course_id", req.CourseID), zap.String("chapter", chapter))

	r := o.retrieve(ctx, query, k, lessonSep)
	raw, err := o.completer.Complete(ctx, quizMessages(target, req.Difficulty, r), llm.WithJSONResponse())
	if err != nil {
		o.metrics.GenerationCall("quiz", err)
		if isFatal(ctx, err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	questions, err := ParseQuiz(raw)
	o.metrics.GenerationCall("quiz", err)
	if err != nil {
		logger.Warn("quiz answer rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	test := &types.Test{
		ID:           uuid.NewString(),
		CourseID:     req.CourseID,
		ChapterTitle: chapter,
		Difficulty:   req.Difficulty,
		Questions:    questions,
		CreatedAt:    o.now().UTC(),
	}
	o.quizzes.Set(test.ID, *test, gocache.DefaultExpiration)

	if o.cfg.PersistQuizzes {
		if err := o.store.AddTest(*test); err != nil {
			logger.Warn("failed to persist quiz", zap.String("test_id", test.ID), zap.Error(err))
		}
	}

	logger.Info("quiz generated",
		zap.String("test_id", test.ID),
		zap.Int("chunks", r.Chunks),
		zap.String("difficulty", req.Difficulty))
	return test, nil
}

// GetQuiz returns a quiz generated within the quiz TTL
func (o *Orchestrator) GetQuiz(id string) (*types.Test, error) {
	v, ok := o.quizzes.Get(id)
	if !ok {
		o.metrics.CacheMiss(metrics.CacheQuiz)
		return nil, fmt.Errorf("quiz %q: %w", id, types.ErrNotFound)
	}
	o.metrics.CacheHit(metrics.CacheQuiz)
	test := v.(types.Test)
	return &test, nil
}

// QuizScore is the outcome of grading a submission
type QuizScore struct {
	TestID  string `json:"testId"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
	// Wrong lists the 0-based indexes of incorrectly answered questions
	Wrong []int `json:"wrong"`
}

// ScoreQuiz grades answers (one option index per question, -1 for unanswered)
func (o *Orchestrator) ScoreQuiz(id string, answers []int) (*QuizScore, error) {
	test, err := o.GetQuiz(id)
	if err != nil {
		return nil, err
	}
	if len(answers) != len(test.Questions) {
		return nil, fmt.Errorf("%w: got %d answers for %d questions", ErrInvalidRequest, len(answers), len(test.Questions))
	}

	score := &QuizScore{TestID: id, Total: len(test.Questions), Wrong: make([]int, 0)}
	for i, q := range test.Questions {
		if answers[i] == q.CorrectAnswer {
			score.Correct++
		} else {
			score.Wrong = append(score.Wrong, i)
		}
	}
	return score, nil
}

type rawQuestion struct {
	ID            json.RawMessage `json:"id"`
	Text          string          `json:"text"`
	Options       []string        `json:"options"`
	CorrectAnswer *int            `json:"correctAnswer"`
}

type rawQuiz struct {
	Title     string        `json:"title"`
	Questions []rawQuestion `json:"questions"`
}

// ParseQuiz validates a model answer against the quiz schema: a JSON object
// (optionally fenced) with exactly QuizQuestions questions, each with four
// non-empty options and an answer index in [0, 3]. Question IDs may be
// strings or numbers; missing or duplicate IDs are replaced.
func ParseQuiz(raw string) ([]types.Question, error) {
	cleaned := llm.StripCodeFence(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty quiz", types.ErrMalformedResponse)
	}

	var quiz rawQuiz
	if err := json.Unmarshal([]byte(cleaned), &quiz); err != nil {
		return nil, fmt.Errorf("%w: AI failed to generate valid JSON test: %v", types.ErrMalformedResponse, err)
	}
	if len(quiz.Questions) != QuizQuestions {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", types.ErrMalformedResponse, QuizQuestions, len(quiz.Questions))
	}

	seen := make(map[string]struct{}, len(quiz.Questions))
	out := make([]types.Question, len(quiz.Questions))
	for i, rq := range quiz.Questions {
		if rq.CorrectAnswer == nil {
			return nil, fmt.Errorf("%w: question %d has no correctAnswer", types.ErrMalformedResponse, i+1)
		}
		q := types.Question{
			ID:            questionID(rq.ID),
			Text:          strings.TrimSpace(rq.Text),
			Options:       rq.Options,
			CorrectAnswer: *rq.CorrectAnswer,
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", types.ErrMalformedResponse, i+1, err)
		}
		if _, dup := seen[q.ID]; q.ID == "" || dup {
			q.ID = uuid.NewString()
		}
		seen[q.ID] = struct{}{}
		out[i] = q
	}
	return out, nil
}

func questionID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
