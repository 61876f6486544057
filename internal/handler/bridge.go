package handler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// bridge is the session environment of one browser tab. Signals arrive as
// WebSocket actions; display, modal, notice and confirm requests leave as
// events the shim renders.
type bridge struct {
	w   *ws.Writer
	log zerolog.Logger

	mu         sync.Mutex
	next       int
	visibility map[int]func(bool)
	fullscreen map[int]func(bool)
	unload     map[int]func() bool
	pending    chan bool
	resultSent bool
	done       chan struct{}
	closeOnce  sync.Once
}

func newBridge(w *ws.Writer, log zerolog.Logger) *bridge {
	return &bridge{
		w:          w,
		log:        log,
		visibility: make(map[int]func(bool)),
		fullscreen: make(map[int]func(bool)),
		unload:     make(map[int]func() bool),
		done:       make(chan struct{}),
	}
}

// close releases a pending confirm prompt as declined.
func (b *bridge) close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *bridge) write(v interface{}) {
	if err := b.w.WriteTyped(v); err != nil {
		b.log.Debug().Err(err).Msg("WebSocket write failed")
	}
}

// ─── session.Signals ────────────────────────────────────────────────

func (b *bridge) OnVisibilityChange(f func(bool)) func() {
	return subscribe(b, b.visibility, f)
}

func (b *bridge) OnFullscreenChange(f func(bool)) func() {
	return subscribe(b, b.fullscreen, f)
}

func (b *bridge) OnBeforeUnload(f func() bool) func() {
	return subscribe(b, b.unload, f)
}

func subscribe[F any](b *bridge, set map[int]F, f F) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	set[id] = f
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(set, id)
	}
}

func handlers[F any](b *bridge, set map[int]F) []F {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]F, 0, len(set))
	for _, f := range set {
		out = append(out, f)
	}
	return out
}

func (b *bridge) emitVisibility(hidden bool) {
	for _, f := range handlers(b, b.visibility) {
		f(hidden)
	}
}

func (b *bridge) emitFullscreen(active bool) {
	for _, f := range handlers(b, b.fullscreen) {
		f(active)
	}
}

// askUnload reports whether any guard wants the page to warn before leaving.
func (b *bridge) askUnload() bool {
	warn := false
	for _, g := range handlers(b, b.unload) {
		if g() {
			warn = true
		}
	}
	return warn
}

// ─── session.Display ────────────────────────────────────────────────

func (b *bridge) EnterFullscreen() error {
	return b.w.WriteTyped(ws.FullscreenResponse{Event: ws.EventFullscreen, Enter: true, Methods: ws.RequestFullscreenMethods})
}

func (b *bridge) ExitFullscreen() error {
	return b.w.WriteTyped(ws.FullscreenResponse{Event: ws.EventFullscreen, Enter: false, Methods: ws.ExitFullscreenMethods})
}

// ─── session.ModalPresenter / Notifier ──────────────────────────────

func (b *bridge) Show(id session.ModalID) {
	b.write(ws.ModalResponse{Event: ws.EventModal, ID: string(id), Visible: true})
}

func (b *bridge) Hide(id session.ModalID) {
	b.write(ws.ModalResponse{Event: ws.EventModal, ID: string(id), Visible: false})
}

func (b *bridge) Notify(n session.Notice) {
	b.write(ws.NoticeResponse{Event: ws.EventNotice, Title: n.Title, Message: n.Message})
}

// ─── session.Confirmer ──────────────────────────────────────────────

// Confirm sends the prompt and waits for the tab's answer. Only one prompt is
// outstanding at a time; a second caller is declined immediately.
func (b *bridge) Confirm(ctx context.Context, prompt string) bool {
	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return false
	}
	reply := make(chan bool, 1)
	b.pending = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending == reply {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	if err := b.w.WriteTyped(ws.ConfirmResponse{Event: ws.EventConfirm, Prompt: prompt}); err != nil {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
}

// answer delivers the tab's reply; it reports false when nothing was asked.
func (b *bridge) answer(ok bool) bool {
	b.mu.Lock()
	reply := b.pending
	b.pending = nil
	b.mu.Unlock()
	if reply == nil {
		return false
	}
	reply <- ok
	return true
}

// ─── session.Observer ───────────────────────────────────────────────

func (b *bridge) Tick(remaining int) {
	b.write(ws.TickResponse{Event: ws.EventTick, Remaining: remaining, Display: session.FormatTime(remaining)})
}

func (b *bridge) StateChanged(snap model.SessionSnapshot) {
	b.write(ws.StateResponse{Event: ws.EventState, Session: snap})

	if snap.Result == nil {
		return
	}
	b.mu.Lock()
	send := !b.resultSent
	b.resultSent = true
	b.mu.Unlock()
	if send {
		b.write(ws.ResultResponse{Event: ws.EventResult, Result: *snap.Result})
	}
}
