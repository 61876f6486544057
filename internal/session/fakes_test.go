package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

type fakeSignals struct {
	mu         sync.Mutex
	visibility map[int]func(bool)
	fullscreen map[int]func(bool)
	unload     map[int]func() bool
	next       int
	subscribes int
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{
		visibility: map[int]func(bool){},
		fullscreen: map[int]func(bool){},
		unload:     map[int]func() bool{},
	}
}

func (s *fakeSignals) OnVisibilityChange(f func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.visibility[id] = f
	s.subscribes++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.visibility, id)
	}
}

func (s *fakeSignals) OnFullscreenChange(f func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.fullscreen[id] = f
	s.subscribes++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fullscreen, id)
	}
}

func (s *fakeSignals) OnBeforeUnload(f func() bool) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.unload[id] = f
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.unload, id)
	}
}

func (s *fakeSignals) hide() { s.emitVisibility(true) }
func (s *fakeSignals) show() { s.emitVisibility(false) }

func (s *fakeSignals) emitVisibility(hidden bool) {
	s.mu.Lock()
	handlers := make([]func(bool), 0, len(s.visibility))
	for _, h := range s.visibility {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(hidden)
	}
}

func (s *fakeSignals) emitFullscreen(active bool) {
	s.mu.Lock()
	handlers := make([]func(bool), 0, len(s.fullscreen))
	for _, h := range s.fullscreen {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(active)
	}
}

func (s *fakeSignals) listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visibility) + len(s.fullscreen)
}

func (s *fakeSignals) unloadGuards() []func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func() bool, 0, len(s.unload))
	for _, g := range s.unload {
		out = append(out, g)
	}
	return out
}

type fakeDisplay struct {
	mu      sync.Mutex
	enters  int
	exits   int
	exitErr error
}

func (d *fakeDisplay) EnterFullscreen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enters++
	return nil
}

func (d *fakeDisplay) ExitFullscreen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exits++
	return d.exitErr
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *fakeNotifier) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *fakeNotifier) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

type fakeModals struct {
	mu      sync.Mutex
	visible map[ModalID]bool
	shows   map[ModalID]int
}

func newFakeModals() *fakeModals {
	return &fakeModals{visible: map[ModalID]bool{}, shows: map[ModalID]int{}}
}

func (m *fakeModals) Show(id ModalID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible[id] = true
	m.shows[id]++
}

func (m *fakeModals) Hide(id ModalID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible[id] = false
}

func (m *fakeModals) isVisible(id ModalID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible[id]
}

type fakeRecorder struct {
	mu        sync.Mutex
	incidents []model.Incident
}

func (r *fakeRecorder) Record(in model.Incident) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, in)
}

func (r *fakeRecorder) kinds() []model.IncidentKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.IncidentKind, 0, len(r.incidents))
	for _, in := range r.incidents {
		out = append(out, in.Kind)
	}
	return out
}

// fakeAPI serves a fixed quiz and counts submissions.
type fakeAPI struct {
	mu         sync.Mutex
	quiz       *model.Quiz
	questions  []model.Question
	quizErr    error
	questErr   error
	submitErr  error
	submits    int
	lastSubmit model.Selections
	onSubmit   func()
}

func (a *fakeAPI) GetQuizByCode(context.Context, string) (*model.Quiz, error) {
	if a.quizErr != nil {
		return nil, a.quizErr
	}
	return a.quiz, nil
}

func (a *fakeAPI) GetQuestions(context.Context, model.ID) ([]model.Question, error) {
	if a.questErr != nil {
		return nil, a.questErr
	}
	return a.questions, nil
}

func (a *fakeAPI) SubmitResult(_ context.Context, _ string, sel model.Selections) (string, error) {
	a.mu.Lock()
	a.submits++
	a.lastSubmit = sel
	hook := a.onSubmit
	a.mu.Unlock()
	if hook != nil {
		hook()
	}
	if a.submitErr != nil {
		return "", a.submitErr
	}
	return "ok", nil
}

func (a *fakeAPI) submitCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submits
}

func sampleQuestions() []model.Question {
	return []model.Question{
		{ID: "1", Type: model.QuestionTypeMCQ, Options: []string{"A", "B"}, CorrectAnswer: "A"},
		{ID: "2", Type: model.QuestionTypeMCQ, Options: []string{"A", "B"}, CorrectAnswer: "B"},
		{ID: "3", Type: "TEXT", CorrectAnswer: "anything"},
	}
}

func minutes(n int) *int { return &n }

type harness struct {
	clock    *clock.Virtual
	signals  *fakeSignals
	display  *fakeDisplay
	notifier *fakeNotifier
	modals   *fakeModals
	recorder *fakeRecorder
	api      *fakeAPI
	ctrl     *Controller
}

func newHarness(quiz *model.Quiz, confirm Confirmer) *harness {
	h := &harness{
		clock:    clock.NewVirtual(epoch),
		signals:  newFakeSignals(),
		display:  &fakeDisplay{},
		notifier: &fakeNotifier{},
		modals:   newFakeModals(),
		recorder: &fakeRecorder{},
		api:      &fakeAPI{quiz: quiz, questions: sampleQuestions()},
	}
	if confirm == nil {
		confirm = AutoConfirm(true)
	}
	h.ctrl = NewController(h.api, Environment{
		Signals:   h.signals,
		Display:   h.display,
		Modals:    h.modals,
		Notifier:  h.notifier,
		Confirmer: confirm,
		Incidents: h.recorder,
	}, Options{
		ID:        "session-1",
		Policy:    config.DefaultPolicy(),
		Scheduler: h.clock,
		Logger:    zerolog.Nop(),
	})
	return h
}

func (h *harness) started(t interface {
	Helper()
	Fatalf(string, ...interface{})
}) *harness {
	t.Helper()
	ctx := context.Background()
	if err := h.ctrl.Load(ctx, "ABC123"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h
}
