package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/session"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
)

// MonitorHandler streams a quiz's proctoring incidents to a proctor over SSE.
type MonitorHandler struct {
	rdb      *redis.Client
	registry *session.Registry
	log      zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, registry *session.Registry, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		registry: registry,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorQuizSSE godoc
// GET /api/v1/quizzes/:code/monitor
// Sends a snapshot of the live sessions of the quiz, then every incident
// published on the quiz channel, with periodic session refreshes.
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidCode)
		return
	}
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSessions(c, "snapshot", code)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.QuizMonitorChannel(code))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("quiz_code", code).Msg("Proctor attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("quiz_code", code).Msg("Proctor disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly, no deserialization needed.
			writeSSE(c, []byte(msg.Payload))

		case <-refreshTicker.C:
			h.sendSessions(c, "refresh", code)

		case <-keepAliveTicker.C:
			writeSSE(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendSessions(c *gin.Context, kind, code string) {
	sessions := h.registry.Snapshots(code)
	stats := struct {
		Running   int `json:"running"`
		Submitted int `json:"submitted"`
		Flagged   int `json:"flagged"`
	}{}
	for _, s := range sessions {
		switch s.State {
		case model.SessionStateRunning:
			stats.Running++
		case model.SessionStateSubmitted:
			stats.Submitted++
		}
		if s.Violations > 0 {
			stats.Flagged++
		}
	}

	c.SSEvent("message", gin.H{
		"type":      kind,
		"quiz_code": code,
		"stats":     stats,
		"sessions":  sessions,
	})
	c.Writer.Flush()
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
