package session

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stemsi/exstem-proctor/internal/client"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func activeQuiz(limit *int) *model.Quiz {
	return &model.Quiz{ID: "42", Title: "Algebra", Code: "ABC123", Active: true, QuestionsCount: 3, TimeLimit: limit}
}

func TestTimeoutSubmitsExactlyOnce(t *testing.T) {
	h := newHarness(activeQuiz(minutes(1)), nil).started(t)

	h.clock.Advance(59 * time.Second)
	if h.api.submitCount() != 0 {
		t.Fatalf("submitted before time ran out")
	}
	if got := h.ctrl.Snapshot().RemainingSeconds; got != 1 {
		t.Fatalf("remaining = %d, want 1", got)
	}

	h.clock.Advance(time.Second)
	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d, want 1", h.api.submitCount())
	}
	snap := h.ctrl.Snapshot()
	if snap.State != model.SessionStateSubmitted || snap.Result == nil || snap.Result.Trigger != model.TriggerTimeout {
		t.Fatalf("snapshot = %+v", snap)
	}
	notices := h.notifier.all()
	if len(notices) == 0 || notices[0].Message != "Time expired. Quiz auto-submitted." {
		t.Fatalf("notices = %v", notices)
	}

	h.clock.Advance(time.Hour)
	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("manual after submit: %v", err)
	}
	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d after more triggers", h.api.submitCount())
	}
}

func TestViolationLimitSubmitsOnce(t *testing.T) {
	h := newHarness(activeQuiz(minutes(30)), nil).started(t)

	for i := 0; i < 3; i++ {
		h.signals.hide()
		h.clock.Advance(5 * time.Second)
	}
	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d, want 1", h.api.submitCount())
	}
	snap := h.ctrl.Snapshot()
	if snap.Violations != 3 || snap.Result.Trigger != model.TriggerViolationLimit {
		t.Fatalf("snapshot = %+v", snap)
	}
	if h.signals.listeners() != 0 {
		t.Fatalf("listeners still attached after submit")
	}

	// A fourth signal arrives after the monitor stood down.
	h.signals.hide()
	h.clock.Advance(time.Hour)
	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d, want 1", h.api.submitCount())
	}
}

func TestCriticalFullscreenExitSubmitsImmediately(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	h.signals.emitFullscreen(false)
	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d, want 1", h.api.submitCount())
	}
	if h.ctrl.State() != model.SessionStateSubmitted {
		t.Fatalf("state = %s", h.ctrl.State())
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("timers still pending: %d", h.clock.Pending())
	}
	kinds := h.recorder.kinds()
	if kinds[0] != model.IncidentCriticalExit || kinds[len(kinds)-1] != model.IncidentSubmitted {
		t.Fatalf("incidents = %v", kinds)
	}
}

func TestManualSubmitRacingTimeout(t *testing.T) {
	h := newHarness(activeQuiz(minutes(1)), nil).started(t)
	h.clock.Advance(59 * time.Second)

	// The timeout fires while the manual submission is in flight.
	h.api.onSubmit = func() {
		h.api.onSubmit = nil
		h.clock.Advance(time.Second)
	}
	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d, want 1", h.api.submitCount())
	}
	if got := h.ctrl.Snapshot().Result.Trigger; got != model.TriggerManual {
		t.Fatalf("trigger = %s", got)
	}
}

func TestConcurrentTriggersSubmitOnce(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	var wg sync.WaitGroup
	triggers := []model.Trigger{model.TriggerManual, model.TriggerTimeout, model.TriggerViolationLimit}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(tr model.Trigger) {
			defer wg.Done()
			_ = h.ctrl.Submit(context.Background(), tr)
		}(triggers[i%len(triggers)])
	}
	wg.Wait()

	if h.api.submitCount() != 1 {
		t.Fatalf("submits = %d, want 1", h.api.submitCount())
	}
}

func TestCountdownFrozenOnceSubmitted(t *testing.T) {
	h := newHarness(activeQuiz(minutes(1)), nil).started(t)
	h.clock.Advance(10 * time.Second)

	ready := make(chan struct{})
	tickingAfterSubmit := make(chan bool, 1)
	go func() {
		close(ready)
		for h.ctrl.State() != model.SessionStateSubmitted {
			runtime.Gosched()
		}
		tickingAfterSubmit <- h.ctrl.countdown.Running()
	}()
	<-ready

	if err := h.ctrl.Submit(context.Background(), model.TriggerViolationLimit); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if <-tickingAfterSubmit {
		t.Fatalf("countdown still running after the session left Running")
	}

	before := h.ctrl.Snapshot().RemainingSeconds
	h.clock.Advance(5 * time.Second)
	if got := h.ctrl.Snapshot().RemainingSeconds; got != before || got != 50 {
		t.Fatalf("remaining = %d, want frozen at 50 (was %d)", got, before)
	}
}

func TestManualSubmitCancelled(t *testing.T) {
	h := newHarness(activeQuiz(minutes(1)), AutoConfirm(false)).started(t)

	err := h.ctrl.Submit(context.Background(), model.TriggerManual)
	if !errors.Is(err, ErrSubmitCancelled) {
		t.Fatalf("err = %v, want ErrSubmitCancelled", err)
	}
	if h.ctrl.State() != model.SessionStateRunning || h.api.submitCount() != 0 {
		t.Fatalf("cancelled submit changed state")
	}

	// Automatic triggers never ask.
	h.clock.Advance(time.Minute)
	if h.api.submitCount() != 1 {
		t.Fatalf("timeout did not submit after a cancelled manual attempt")
	}
}

func TestManualSubmitBeforeStart(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil)
	if err := h.ctrl.Load(context.Background(), "ABC123"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
	if err := h.ctrl.Submit(context.Background(), model.TriggerTimeout); err != nil {
		t.Fatalf("automatic trigger before start: %v", err)
	}
	if h.api.submitCount() != 0 {
		t.Fatalf("submitted before start")
	}
}

func TestSubmitFailureStillEndsSession(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil)
	h.api.submitErr = &client.APIError{Status: 500}
	h.started(t)

	err := h.ctrl.Submit(context.Background(), model.TriggerManual)
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("err = %v, want ErrSubmitFailed", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != model.SessionStateSubmitted || snap.Result.Delivered {
		t.Fatalf("snapshot = %+v", snap)
	}
	notices := h.notifier.all()
	if last := notices[len(notices)-1]; last.Message != "Failed to submit quiz. Please try again." {
		t.Fatalf("notice = %+v", last)
	}
	if h.modals.isVisible(ModalResult) {
		t.Fatalf("result modal shown for an undelivered submission")
	}

	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if h.api.submitCount() != 1 {
		t.Fatalf("submission retried")
	}
}

func TestSubmitSendsSelectionsAndScores(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	mustSelect(t, h.ctrl, "1", "B")
	mustSelect(t, h.ctrl, "1", "A")
	mustSelect(t, h.ctrl, "1", "A")
	mustSelect(t, h.ctrl, "2", "A")
	if err := h.ctrl.Select("99", "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}

	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.api.lastSubmit["1"] != "A" || h.api.lastSubmit["2"] != "A" || len(h.api.lastSubmit) != 2 {
		t.Fatalf("submitted = %v", h.api.lastSubmit)
	}
	res := h.ctrl.Snapshot().Result
	if res.Score != 1 || res.Total != 3 || !res.Delivered {
		t.Fatalf("result = %+v", res)
	}
	if !h.modals.isVisible(ModalResult) {
		t.Fatalf("result modal not shown")
	}

	// Selections are frozen once submitted.
	mustSelect(t, h.ctrl, "2", "B")
	if h.ctrl.Selections()["2"] != "A" {
		t.Fatalf("selection changed after submit")
	}
}

func mustSelect(t *testing.T, c *Controller, qid, opt string) {
	t.Helper()
	if err := c.Select(qid, opt); err != nil {
		t.Fatalf("select %s=%s: %v", qid, opt, err)
	}
}

func TestNavigateClamps(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	if got := h.ctrl.Navigate(Prev); got != 0 {
		t.Fatalf("prev at start = %d", got)
	}
	h.ctrl.Navigate(Next)
	h.ctrl.Navigate(Next)
	if got := h.ctrl.Navigate(Next); got != 2 {
		t.Fatalf("next past end = %d, want 2", got)
	}
	if got := h.ctrl.Navigate(Prev); got != 1 {
		t.Fatalf("prev = %d, want 1", got)
	}
}

func TestNavigateEmptyQuiz(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil)
	h.api.questions = []model.Question{}
	h.started(t)

	if got := h.ctrl.Navigate(Next); got != 0 {
		t.Fatalf("index = %d, want 0", got)
	}
	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("submit empty quiz: %v", err)
	}
	if res := h.ctrl.Snapshot().Result; res.Total != 0 || res.Score != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestStartArmsListenersOnce(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if h.signals.listeners() != 2 || len(h.signals.unloadGuards()) != 1 {
		t.Fatalf("listeners = %d guards = %d", h.signals.listeners(), len(h.signals.unloadGuards()))
	}
	if h.display.enters != 1 {
		t.Fatalf("fullscreen entered %d times", h.display.enters)
	}

	h.clock.Advance(3 * time.Second)
	if got := h.ctrl.Snapshot().RemainingSeconds; got != 3*180-3 {
		t.Fatalf("remaining = %d", got)
	}

	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.signals.listeners() != 0 || len(h.signals.unloadGuards()) != 0 {
		t.Fatalf("listeners not detached")
	}
	if h.display.exits != 1 {
		t.Fatalf("fullscreen exits = %d", h.display.exits)
	}
}

func TestStartRequiresLoad(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil)
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("err = %v, want ErrNotLoaded", err)
	}
}

func TestFullscreenExitFailureIgnored(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil)
	h.display.exitErr = errors.New("not in fullscreen")
	h.started(t)

	if err := h.ctrl.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.ctrl.State() != model.SessionStateSubmitted {
		t.Fatalf("state = %s", h.ctrl.State())
	}
}

func TestUnloadGuard(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	guards := h.signals.unloadGuards()
	if len(guards) != 1 || !guards[0]() {
		t.Fatalf("unload guard missing or not warning")
	}
	if !h.ctrl.WarnOnUnload() {
		t.Fatalf("running session should warn on unload")
	}

	_ = h.ctrl.Submit(context.Background(), model.TriggerManual)
	if h.ctrl.WarnOnUnload() {
		t.Fatalf("submitted session should not warn")
	}
}

func TestCloseStopsWithoutSubmitting(t *testing.T) {
	h := newHarness(activeQuiz(minutes(1)), nil).started(t)

	h.ctrl.Close()
	h.clock.Advance(time.Hour)
	h.signals.emitFullscreen(false)

	if h.api.submitCount() != 0 {
		t.Fatalf("closed session submitted")
	}
	if h.signals.listeners() != 0 || h.clock.Pending() != 0 {
		t.Fatalf("close left listeners or timers behind")
	}
}

func TestInitialSeconds(t *testing.T) {
	p := config.DefaultPolicy()
	cases := []struct {
		name string
		quiz *model.Quiz
		want int
	}{
		{"time limit", &model.Quiz{TimeLimit: minutes(20), QuestionsCount: 5}, 1200},
		{"per question", &model.Quiz{QuestionsCount: 5}, 900},
		{"zero limit falls through", &model.Quiz{TimeLimit: minutes(0), QuestionsCount: 2}, 360},
		{"default", &model.Quiz{}, 3600},
		{"nil quiz", nil, 3600},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InitialSeconds(tc.quiz, p); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	inactive := activeQuiz(nil)
	inactive.Active = false

	cases := []struct {
		name      string
		quiz      *model.Quiz
		quizErr   error
		questErr  error
		wantErr   error
		wantTitle string
		wantMsg   string
	}{
		{
			name:      "not found",
			quizErr:   &client.APIError{Status: 404},
			wantErr:   ErrQuizNotFound,
			wantTitle: "Not Found",
			wantMsg:   "The quiz code is incorrect or the quiz has been deleted.",
		},
		{
			name:      "deactivated reason",
			quizErr:   &client.APIError{Status: 403, Reason: client.ReasonDeactivated},
			wantErr:   ErrQuizDeactivated,
			wantTitle: "Access Denied",
			wantMsg:   "This quiz is currently deactivated by the instructor. Please contact your instructor.",
		},
		{
			name:      "forbidden with server message",
			quizErr:   &client.APIError{Status: 403, Message: "Quiz closed for your class"},
			wantErr:   ErrQuizDeactivated,
			wantTitle: "Access Denied",
			wantMsg:   "Quiz closed for your class",
		},
		{
			name:      "inactive flag",
			quiz:      inactive,
			wantErr:   ErrQuizDeactivated,
			wantTitle: "Access Denied",
		},
		{
			name:      "missing id",
			quiz:      &model.Quiz{Active: true},
			wantErr:   ErrInvalidQuizData,
			wantTitle: "Error",
			wantMsg:   "Invalid quiz data returned from server.",
		},
		{
			name:      "questions",
			quiz:      activeQuiz(nil),
			questErr:  errors.New("boom"),
			wantErr:   ErrQuestionsUnavailable,
			wantTitle: "Error",
			wantMsg:   "Failed to load quiz questions.",
		},
		{
			name:      "server error",
			quizErr:   &client.APIError{Status: 500},
			wantErr:   ErrLoadFailed,
			wantTitle: "Error",
			wantMsg:   "Something went wrong. Please try again later.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.quiz, nil)
			h.api.quizErr = tc.quizErr
			h.api.questErr = tc.questErr

			err := h.ctrl.Load(context.Background(), "ABC123")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			notices := h.notifier.all()
			if len(notices) != 1 {
				t.Fatalf("notices = %v", notices)
			}
			if notices[0].Title != tc.wantTitle {
				t.Fatalf("title = %q, want %q", notices[0].Title, tc.wantTitle)
			}
			if tc.wantMsg != "" && notices[0].Message != tc.wantMsg {
				t.Fatalf("message = %q, want %q", notices[0].Message, tc.wantMsg)
			}
			if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrNotLoaded) {
				t.Fatalf("start after failed load: %v", err)
			}
		})
	}
}

func TestLoadRejectsEmptyCodeAndReload(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil)
	if err := h.ctrl.Load(context.Background(), ""); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("err = %v, want ErrInvalidCode", err)
	}
	if err := h.ctrl.Load(context.Background(), "ABC123"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.ctrl.Load(context.Background(), "ABC123"); !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("err = %v, want ErrAlreadyLoaded", err)
	}
	snap := h.ctrl.Snapshot()
	if !snap.Loaded || snap.State != model.SessionStateNotStarted || snap.RemainingSeconds != 540 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestIncidentJournal(t *testing.T) {
	h := newHarness(activeQuiz(nil), nil).started(t)

	h.signals.hide()
	h.signals.show()
	h.signals.hide()
	h.clock.Advance(5 * time.Second)
	_ = h.ctrl.Submit(context.Background(), model.TriggerManual)

	want := []model.IncidentKind{
		model.IncidentGraceStarted,
		model.IncidentGraceCleared,
		model.IncidentGraceStarted,
		model.IncidentViolationConfirmed,
		model.IncidentSubmitted,
	}
	got := h.recorder.kinds()
	if len(got) != len(want) {
		t.Fatalf("incidents = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("incidents = %v, want %v", got, want)
		}
	}
	h.recorder.mu.Lock()
	last := h.recorder.incidents[len(h.recorder.incidents)-1]
	h.recorder.mu.Unlock()
	if last.SessionID != "session-1" || last.QuizCode != "ABC123" || last.Count != 1 || last.Trigger != model.TriggerManual {
		t.Fatalf("submitted incident = %+v", last)
	}
}
