package response

// ErrCode is a typed error code enum for consistent error identification on the
// agent API, the WebSocket bridge and the notices shown to the exam taker.
type ErrCode string

const (
	// ─── Quiz loading ──────────────────────────────────────────────────
	ErrQuizNotFound         ErrCode = "QUIZ_NOT_FOUND"
	ErrQuizDeactivated      ErrCode = "QUIZ_DEACTIVATED"
	ErrQuizForbidden        ErrCode = "QUIZ_FORBIDDEN"
	ErrInvalidQuizData      ErrCode = "INVALID_QUIZ_DATA"
	ErrQuestionsUnavailable ErrCode = "QUESTIONS_UNAVAILABLE"
	ErrLoadFailed           ErrCode = "LOAD_FAILED"
	ErrInvalidCode          ErrCode = "INVALID_CODE"

	// ─── Submission ────────────────────────────────────────────────────
	ErrSubmitFailed        ErrCode = "SUBMIT_FAILED"
	ErrAutoSubmitTimeout   ErrCode = "AUTO_SUBMIT_TIMEOUT"
	ErrAutoSubmitViolation ErrCode = "AUTO_SUBMIT_VIOLATIONS"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotRunning ErrCode = "SESSION_NOT_RUNNING"
	ErrSessionNotLoaded  ErrCode = "SESSION_NOT_LOADED"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrUnknownAction     ErrCode = "UNKNOWN_ACTION"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetTitle returns the notice title shown with a code.
func GetTitle(code ErrCode) string {
	switch code {
	case ErrQuizNotFound:
		return "Not Found"
	case ErrQuizDeactivated, ErrQuizForbidden:
		return "Access Denied"
	case ErrAutoSubmitTimeout, ErrAutoSubmitViolation:
		return "Quiz Submitted"
	default:
		return "Error"
	}
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Quiz loading ──────────────────────────────────────────────────
	case ErrQuizNotFound:
		return "The quiz code is incorrect or the quiz has been deleted."
	case ErrQuizDeactivated:
		return "This quiz is currently deactivated by the instructor. Please contact your instructor."
	case ErrQuizForbidden:
		return "This quiz is not active or you are not permitted to access it."
	case ErrInvalidQuizData:
		return "Invalid quiz data returned from server."
	case ErrQuestionsUnavailable:
		return "Failed to load quiz questions."
	case ErrLoadFailed:
		return "Something went wrong. Please try again later."
	case ErrInvalidCode:
		return "A quiz access code is required."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrSubmitFailed:
		return "Failed to submit quiz. Please try again."
	case ErrAutoSubmitTimeout:
		return "Time expired. Quiz auto-submitted."
	case ErrAutoSubmitViolation:
		return "Quiz auto-submitted due to excessive proctoring violations."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionNotRunning:
		return "The quiz has not been started."
	case ErrSessionNotLoaded:
		return "The quiz has not been loaded."
	case ErrUnknownQuestion:
		return "The question does not belong to this quiz."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
