package session

import (
	"context"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Signals exposes the browser lockdown signals as cancellable subscriptions.
// Each On* call returns the function that removes that subscription.
type Signals interface {
	OnVisibilityChange(func(hidden bool)) (unsubscribe func())
	OnFullscreenChange(func(active bool)) (unsubscribe func())
	// OnBeforeUnload registers a guard asked whether leaving the page should warn.
	OnBeforeUnload(func() bool) (unsubscribe func())
}

// Display controls fullscreen. Both calls are best effort.
type Display interface {
	EnterFullscreen() error
	ExitFullscreen() error
}

// ModalID names a modal the presenter can show.
type ModalID string

const (
	ModalViolationWarning ModalID = "violation-warning"
	ModalResult           ModalID = "result"
)

// ModalPresenter shows and hides modals.
type ModalPresenter interface {
	Show(id ModalID)
	Hide(id ModalID)
}

// Notice is a user-visible message.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(Notice)
}

// Confirmer asks the user a yes/no question. A cancelled context counts as no.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// IncidentRecorder receives every proctoring event of a session.
type IncidentRecorder interface {
	Record(model.Incident)
}

// Environment bundles everything the session needs from the tab it runs in.
type Environment struct {
	Signals   Signals
	Display   Display
	Modals    ModalPresenter
	Notifier  Notifier
	Confirmer Confirmer
	Incidents IncidentRecorder
	Observer  Observer
}

// withDefaults fills nil capabilities with no-ops.
func (e Environment) withDefaults() Environment {
	if e.Signals == nil {
		e.Signals = nopSignals{}
	}
	if e.Display == nil {
		e.Display = nopDisplay{}
	}
	if e.Modals == nil {
		e.Modals = nopModals{}
	}
	if e.Notifier == nil {
		e.Notifier = nopNotifier{}
	}
	if e.Confirmer == nil {
		e.Confirmer = AutoConfirm(true)
	}
	if e.Incidents == nil {
		e.Incidents = nopRecorder{}
	}
	if e.Observer == nil {
		e.Observer = nopObserver{}
	}
	return e
}

// AutoConfirm answers every prompt with the same value.
type AutoConfirm bool

func (a AutoConfirm) Confirm(context.Context, string) bool { return bool(a) }

type nopSignals struct{}

func (nopSignals) OnVisibilityChange(func(bool)) func() { return func() {} }
func (nopSignals) OnFullscreenChange(func(bool)) func() { return func() {} }
func (nopSignals) OnBeforeUnload(func() bool) func()    { return func() {} }

type nopDisplay struct{}

func (nopDisplay) EnterFullscreen() error { return nil }
func (nopDisplay) ExitFullscreen() error  { return nil }

type nopModals struct{}

func (nopModals) Show(ModalID) {}
func (nopModals) Hide(ModalID) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

type nopRecorder struct{}

func (nopRecorder) Record(model.Incident) {}

// Observer is told about countdown ticks and state changes so the tab can re-render.
type Observer interface {
	Tick(remaining int)
	StateChanged(model.SessionSnapshot)
}

type nopObserver struct{}

func (nopObserver) Tick(int)                           {}
func (nopObserver) StateChanged(model.SessionSnapshot) {}
