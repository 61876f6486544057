package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler hosts one proctored exam session per WebSocket connection.
type WSHandler struct {
	api       session.QuizAPI
	incidents session.IncidentRecorder
	registry  *session.Registry
	policy    config.Policy
	sched     clock.Scheduler
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. incidents may be nil when no journal
// is configured.
func NewWSHandler(
	api session.QuizAPI,
	incidents session.IncidentRecorder,
	registry *session.Registry,
	policy config.Policy,
	sched clock.Scheduler,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	if sched == nil {
		sched = clock.Real{}
	}
	return &WSHandler{
		api:       api,
		incidents: incidents,
		registry:  registry,
		policy:    policy,
		sched:     sched,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// SessionWebSocket godoc
// WS /ws/v1/sessions/:code
// Loads the quiz for the access code and runs the session for this tab until
// the socket closes.
func (h *WSHandler) SessionWebSocket(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidCode)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	w := ws.NewWriter(conn)
	var inflight sync.WaitGroup
	defer inflight.Wait()

	id := uuid.New().String()
	wsLog := h.log.With().
		Str("session_id", id).
		Str("quiz_code", code).
		Str("request_id", response.RequestID(c)).
		Logger()

	br := newBridge(w, wsLog)
	defer br.close()

	ctrl := session.NewController(h.api, session.Environment{
		Signals:   br,
		Display:   br,
		Modals:    br,
		Notifier:  br,
		Confirmer: br,
		Incidents: h.incidents,
		Observer:  br,
	}, session.Options{
		ID:        id,
		Policy:    h.policy,
		Scheduler: h.sched,
		Logger:    h.log,
	})

	h.registry.Add(ctrl)
	defer h.registry.Remove(ctrl.ID())
	defer ctrl.Close()

	// Sessions outlive the upgrade request; their work is bounded by the API
	// client timeout instead.
	ctx := context.WithoutCancel(c.Request.Context())

	wsLog.Info().Msg("Tab connected")

	if err := ctrl.Load(ctx, code); err != nil {
		// The notice already went out through the bridge.
		_ = w.WriteError(session.Code(err), nil)
		return
	}
	_ = w.WriteTyped(ws.QuizResponse{
		Event:     ws.EventQuiz,
		Quiz:      *ctrl.Quiz(),
		Questions: ws.NewQuestionViews(ctrl.Questions()),
	})

	for {
		raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var env ws.RequestEnvelope
		if fields := validator.DecodeJSON(raw, &env); fields != nil {
			_ = w.WriteError(response.ErrInvalidPayload, fields)
			continue
		}

		switch env.Action {
		case ws.ActionStart:
			if err := ctrl.Start(ctx); err != nil {
				_ = w.WriteError(session.Code(err), nil)
			}
		case ws.ActionSelect:
			h.handleSelect(w, ctrl, raw)
		case ws.ActionNavigate:
			h.handleNavigate(w, ctrl, raw)
		case ws.ActionSubmit:
			// Confirmation is answered by a later frame on this loop, so the
			// manual submit cannot block it.
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				h.handleSubmit(ctx, w, wsLog, ctrl)
			}()
		case ws.ActionConfirm:
			var req ws.ConfirmRequest
			if fields := validator.DecodeJSON(raw, &req); fields != nil {
				_ = w.WriteError(response.ErrValidation, fields)
				continue
			}
			if !br.answer(*req.OK) {
				wsLog.Debug().Msg("Confirm reply without a pending prompt")
			}
		case ws.ActionVisibility:
			var req ws.VisibilityRequest
			if fields := validator.DecodeJSON(raw, &req); fields != nil {
				_ = w.WriteError(response.ErrValidation, fields)
				continue
			}
			br.emitVisibility(*req.Hidden)
		case ws.ActionFullscreen:
			var req ws.FullscreenRequest
			if fields := validator.DecodeJSON(raw, &req); fields != nil {
				_ = w.WriteError(response.ErrValidation, fields)
				continue
			}
			br.emitFullscreen(*req.Active)
		case ws.ActionUnload:
			_ = w.WriteTyped(ws.UnloadResponse{Event: ws.EventUnload, Warn: br.askUnload()})
		case ws.ActionPing:
			_ = w.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = w.WriteError(response.ErrUnknownAction, nil)
		}
	}
}

func (h *WSHandler) handleSelect(w *ws.Writer, ctrl *session.Controller, raw []byte) {
	var req ws.SelectRequest
	if fields := validator.DecodeJSON(raw, &req); fields != nil {
		_ = w.WriteError(response.ErrValidation, fields)
		return
	}
	if err := ctrl.Select(req.QID, req.Answer); err != nil {
		_ = w.WriteError(session.Code(err), nil)
		return
	}
	_ = w.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: ctrl.Snapshot()})
}

func (h *WSHandler) handleNavigate(w *ws.Writer, ctrl *session.Controller, raw []byte) {
	var req ws.NavigateRequest
	if fields := validator.DecodeJSON(raw, &req); fields != nil {
		_ = w.WriteError(response.ErrValidation, fields)
		return
	}
	dir := session.Next
	if req.Dir == "prev" {
		dir = session.Prev
	}
	ctrl.Navigate(dir)
	_ = w.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: ctrl.Snapshot()})
}

func (h *WSHandler) handleSubmit(ctx context.Context, w *ws.Writer, wsLog zerolog.Logger, ctrl *session.Controller) {
	err := ctrl.Submit(ctx, model.TriggerManual)
	switch {
	case err == nil, errors.Is(err, session.ErrSubmitFailed):
		// Outcome already reported through notices and state events.
	case errors.Is(err, session.ErrSubmitCancelled):
		wsLog.Debug().Msg("Submit cancelled by user")
	default:
		_ = w.WriteError(session.Code(err), nil)
	}
}
