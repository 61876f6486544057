package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart      Action = "start"
	ActionSelect     Action = "select"
	ActionNavigate   Action = "navigate"
	ActionSubmit     Action = "submit"
	ActionConfirm    Action = "confirm"
	ActionVisibility Action = "visibility"
	ActionFullscreen Action = "fullscreen"
	ActionUnload     Action = "unload"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action" binding:"required"`
}

// SelectRequest records an answer for one question.
type SelectRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id" binding:"required,max=64"`
	Answer string `json:"ans" binding:"required,max=1024"`
}

// NavigateRequest moves to the previous or next question.
type NavigateRequest struct {
	Action Action `json:"action"`
	Dir    string `json:"dir" binding:"required,oneof=prev next"`
}

// ConfirmRequest answers the pending confirm prompt.
type ConfirmRequest struct {
	Action Action `json:"action"`
	OK     *bool  `json:"ok" binding:"required"`
}

// VisibilityRequest forwards a visibilitychange event.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden *bool  `json:"hidden" binding:"required"`
}

// FullscreenRequest forwards a fullscreenchange event.
type FullscreenRequest struct {
	Action Action `json:"action"`
	Active *bool  `json:"active" binding:"required"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventQuiz       Event = "quiz"
	EventState      Event = "state"
	EventTick       Event = "tick"
	EventNotice     Event = "notice"
	EventModal      Event = "modal"
	EventConfirm    Event = "confirm"
	EventFullscreen Event = "fullscreen"
	EventUnload     Event = "unload"
	EventResult     Event = "result"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

// Vendor-prefixed fullscreen methods, in the order the shim should try them.
var (
	RequestFullscreenMethods = []string{"requestFullscreen", "webkitRequestFullscreen", "mozRequestFullScreen", "msRequestFullscreen"}
	ExitFullscreenMethods    = []string{"exitFullscreen", "webkitExitFullscreen", "mozCancelFullScreen", "msExitFullscreen"}
)

// QuestionView is a question as rendered by the tab. The correct answer
// never leaves the agent.
type QuestionView struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Text    string   `json:"questionText"`
	Options []string `json:"options"`
}

type QuizResponse struct {
	Event     Event          `json:"event"`
	Quiz      model.Quiz     `json:"quiz"`
	Questions []QuestionView `json:"questions"`
}

type StateResponse struct {
	Event   Event                 `json:"event"`
	Session model.SessionSnapshot `json:"session"`
}

type TickResponse struct {
	Event     Event  `json:"event"`
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
}

type NoticeResponse struct {
	Event   Event  `json:"event"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type ModalResponse struct {
	Event   Event  `json:"event"`
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

type ConfirmResponse struct {
	Event  Event  `json:"event"`
	Prompt string `json:"prompt"`
}

type FullscreenResponse struct {
	Event   Event    `json:"event"`
	Enter   bool     `json:"enter"`
	Methods []string `json:"methods"`
}

// UnloadResponse answers an unload probe: warn tells the shim to keep its
// beforeunload prompt armed.
type UnloadResponse struct {
	Event Event `json:"event"`
	Warn  bool  `json:"warn"`
}

type ResultResponse struct {
	Event  Event        `json:"event"`
	Result model.Result `json:"result"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   response.ErrCode  `json:"code,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// NewQuestionViews strips grading data from questions.
func NewQuestionViews(questions []model.Question) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, QuestionView{
			ID:      q.ID.String(),
			Type:    string(q.Type),
			Text:    q.Text,
			Options: q.Options,
		})
	}
	return views
}
