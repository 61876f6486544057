package session

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/client"
	"github.com/stemsi/exstem-proctor/internal/response"
)

var (
	ErrInvalidCode          = errors.New("access code is required")
	ErrAlreadyLoaded        = errors.New("session already loaded")
	ErrNotLoaded            = errors.New("session not loaded")
	ErrNotRunning           = errors.New("session not running")
	ErrUnknownQuestion      = errors.New("question not in quiz")
	ErrSubmitCancelled      = errors.New("submission cancelled by user")
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrQuizDeactivated      = errors.New("quiz deactivated")
	ErrInvalidQuizData      = errors.New("invalid quiz data")
	ErrQuestionsUnavailable = errors.New("questions unavailable")
	ErrLoadFailed           = errors.New("quiz load failed")
	ErrSubmitFailed         = errors.New("submit failed")
)

// LoadError classifies a failed quiz lookup.
func LoadError(err error) error {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrQuizNotFound, err)
	case errors.Is(err, client.ErrForbidden):
		return fmt.Errorf("%w: %w", ErrQuizDeactivated, err)
	default:
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
}

// Code maps a session error to its user-facing code.
func Code(err error) response.ErrCode {
	switch {
	case errors.Is(err, ErrInvalidCode):
		return response.ErrInvalidCode
	case errors.Is(err, ErrQuizNotFound):
		return response.ErrQuizNotFound
	case errors.Is(err, ErrQuizDeactivated):
		// A 403 without the DEACTIVATED reason gets the broader wording.
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Reason != client.ReasonDeactivated {
			return response.ErrQuizForbidden
		}
		return response.ErrQuizDeactivated
	case errors.Is(err, ErrInvalidQuizData):
		return response.ErrInvalidQuizData
	case errors.Is(err, ErrQuestionsUnavailable):
		return response.ErrQuestionsUnavailable
	case errors.Is(err, ErrLoadFailed):
		return response.ErrLoadFailed
	case errors.Is(err, ErrSubmitFailed):
		return response.ErrSubmitFailed
	case errors.Is(err, ErrNotRunning):
		return response.ErrSessionNotRunning
	case errors.Is(err, ErrNotLoaded):
		return response.ErrSessionNotLoaded
	case errors.Is(err, ErrUnknownQuestion):
		return response.ErrUnknownQuestion
	default:
		return response.ErrInternal
	}
}

// NoticeFor builds the notice shown for err. A message sent by the API wins
// over the default wording, except for not-found and question failures.
func NoticeFor(err error) Notice {
	code := Code(err)
	n := Notice{Title: response.GetTitle(code), Message: response.GetMessage(code)}
	switch code {
	case response.ErrQuizForbidden, response.ErrLoadFailed:
		if msg := client.ServerMessage(err); msg != "" {
			n.Message = msg
		}
	}
	return n
}
