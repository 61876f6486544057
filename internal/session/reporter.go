package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/client"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultSubmitter posts a session's selections.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, code string, selections model.Selections) (string, error)
}

// Reporter posts the final selections and turns the outcome into a Result.
type Reporter struct {
	api ResultSubmitter
	now func() time.Time
	log zerolog.Logger
}

// NewReporter creates a Reporter. now defaults to time.Now.
func NewReporter(api ResultSubmitter, now func() time.Time, log zerolog.Logger) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{api: api, now: now, log: log.With().Str("component", "result_reporter").Logger()}
}

// Report submits selections once. There is no retry: on failure the returned
// Result is marked undelivered and the error wraps ErrSubmitFailed.
func (r *Reporter) Report(ctx context.Context, code string, questions []model.Question, selections model.Selections) (model.Result, error) {
	result := model.Result{Total: len(questions), SubmittedAt: r.now()}

	_, err := r.api.SubmitResult(ctx, code, selections)
	if err != nil && !client.IsSuccessStatus(err) {
		r.log.Error().Err(err).Str("quiz_code", code).Msg("Submit failed")
		return result, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("quiz_code", code).Msg("Submit accepted with unreadable body")
	}

	result.Delivered = true
	result.Score = Score(questions, selections)
	r.log.Info().
		Str("quiz_code", code).
		Int("score", result.Score).
		Int("total", result.Total).
		Msg("Answers submitted")
	return result, nil
}

// Score counts MCQ questions whose selection equals the stored correct answer.
// It is an estimate for immediate display only.
func Score(questions []model.Question, selections model.Selections) int {
	score := 0
	for _, q := range questions {
		if q.Type != model.QuestionTypeMCQ || q.CorrectAnswer == "" {
			continue
		}
		if sel, ok := selections[q.ID.String()]; ok && sel == q.CorrectAnswer {
			score++
		}
	}
	return score
}
