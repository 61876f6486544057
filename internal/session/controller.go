// Package session runs one proctored exam attempt: it loads the quiz, runs the
// countdown and the violation monitor, and makes sure the answers are
// submitted at most once.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const confirmPrompt = "Are you sure you want to submit?"

// QuizAPI is the part of the quiz API a session needs.
type QuizAPI interface {
	GetQuizByCode(ctx context.Context, code string) (*model.Quiz, error)
	GetQuestions(ctx context.Context, quizID model.ID) ([]model.Question, error)
	ResultSubmitter
}

// Direction moves the current question index.
type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

// Options configures a Controller.
type Options struct {
	ID        string
	Policy    config.Policy
	Scheduler clock.Scheduler
	Logger    zerolog.Logger
}

// Controller owns the session state and is the only path to submission.
type Controller struct {
	id       string
	api      QuizAPI
	reporter *Reporter
	env      Environment
	policy   config.Policy
	sched    clock.Scheduler
	log      zerolog.Logger

	countdown *Countdown
	monitor   *Monitor

	mu         sync.Mutex
	state      model.SessionState
	ctx        context.Context
	code       string
	loading    bool
	loaded     bool
	quiz       *model.Quiz
	questions  []model.Question
	initial    int
	index      int
	selections model.Selections
	result     *model.Result
	unload     func()
	closed     bool
}

// NewController creates a session in NotStarted.
func NewController(api QuizAPI, env Environment, opts Options) *Controller {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real{}
	}
	if opts.Policy.MaxViolations == 0 && opts.Policy.DefaultDuration == 0 {
		opts.Policy = config.DefaultPolicy()
	}

	c := &Controller{
		id:         opts.ID,
		api:        api,
		env:        env.withDefaults(),
		policy:     opts.Policy,
		sched:      opts.Scheduler,
		log:        opts.Logger.With().Str("component", "session").Str("session_id", opts.ID).Logger(),
		state:      model.SessionStateNotStarted,
		ctx:        context.Background(),
		selections: make(model.Selections),
	}
	c.reporter = NewReporter(api, c.sched.Now, c.log)
	c.countdown = NewCountdown(c.sched, c.env.Observer.Tick, func() {
		_ = c.Submit(c.runCtx(), model.TriggerTimeout)
	})
	c.monitor = NewMonitor(MonitorDeps{
		Scheduler: c.sched,
		Signals:   c.env.Signals,
		Modals:    c.env.Modals,
		Policy:    c.policy,
		Logger:    c.log,
		OnLimit: func() {
			_ = c.Submit(c.runCtx(), model.TriggerViolationLimit)
		},
		OnRecord: func(kind model.IncidentKind, signal model.SignalKind, count int) {
			c.record(kind, signal, count, "")
			c.env.Observer.StateChanged(c.Snapshot())
		},
	})
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches the quiz by access code and then its questions. Every failure
// is shown to the user and is terminal for this session; there is no retry.
func (c *Controller) Load(ctx context.Context, code string) error {
	if code == "" {
		err := ErrInvalidCode
		c.env.Notifier.Notify(NoticeFor(err))
		return err
	}

	c.mu.Lock()
	if c.loading || c.loaded {
		c.mu.Unlock()
		return ErrAlreadyLoaded
	}
	c.loading = true
	c.code = code
	c.mu.Unlock()

	quiz, questions, err := c.fetch(ctx, code)

	c.mu.Lock()
	c.loading = false
	if err == nil {
		c.loaded = true
		c.quiz = quiz
		c.questions = questions
		c.initial = InitialSeconds(quiz, c.policy)
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Str("quiz_code", code).Msg("Quiz load failed")
		c.env.Notifier.Notify(NoticeFor(err))
		return err
	}

	c.log.Info().
		Str("quiz_code", code).
		Str("quiz_id", quiz.ID.String()).
		Int("questions", len(questions)).
		Int("seconds", InitialSeconds(quiz, c.policy)).
		Msg("Quiz loaded")
	c.env.Observer.StateChanged(c.Snapshot())
	return nil
}

func (c *Controller) fetch(ctx context.Context, code string) (*model.Quiz, []model.Question, error) {
	quiz, err := c.api.GetQuizByCode(ctx, code)
	switch {
	case err != nil:
		return nil, nil, LoadError(err)
	case quiz == nil:
		return nil, nil, ErrInvalidQuizData
	case !quiz.Active:
		return nil, nil, ErrQuizDeactivated
	case quiz.ID == "":
		return nil, nil, ErrInvalidQuizData
	}

	questions, err := c.api.GetQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrQuestionsUnavailable, err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return quiz, questions, nil
}

// InitialSeconds derives the exam budget: the quiz time limit, else a fixed
// allowance per question, else the default duration.
func InitialSeconds(quiz *model.Quiz, policy config.Policy) int {
	if quiz != nil && quiz.TimeLimit != nil && *quiz.TimeLimit > 0 {
		return *quiz.TimeLimit * 60
	}
	if quiz != nil && quiz.QuestionsCount > 0 {
		return quiz.QuestionsCount * policy.SecondsPerQuestion
	}
	return policy.DefaultDuration
}

// Start begins the exam: fullscreen, countdown, violation monitor and the
// unload guard. It is a no-op unless the session is NotStarted.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.state != model.SessionStateNotStarted || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state = model.SessionStateRunning
	c.ctx = context.WithoutCancel(ctx)
	initial := c.initial
	if initial <= 0 {
		initial = c.policy.DefaultDuration
	}

	// Timers and listeners are armed under the lock so a submit cannot slip
	// in between and leave them running on a finished session.
	c.countdown.Start(initial)
	c.monitor.Activate()
	c.unload = c.env.Signals.OnBeforeUnload(c.guardUnload)
	c.mu.Unlock()

	if err := c.env.Display.EnterFullscreen(); err != nil {
		c.log.Debug().Err(err).Msg("Fullscreen request failed")
	}

	c.log.Info().Int("seconds", initial).Msg("Quiz started")
	c.env.Observer.StateChanged(c.Snapshot())
	return nil
}

// Select records option for questionID. Last write wins; after submission it
// is a no-op.
func (c *Controller) Select(questionID, option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.SessionStateSubmitted {
		return nil
	}
	if !c.hasQuestionLocked(questionID) {
		return ErrUnknownQuestion
	}
	c.selections[questionID] = option
	return nil
}

func (c *Controller) hasQuestionLocked(id string) bool {
	for _, q := range c.questions {
		if q.ID.String() == id {
			return true
		}
	}
	return false
}

// Navigate moves the current question by one, clamped to the question range,
// and returns the new index.
func (c *Controller) Navigate(dir Direction) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.index
	switch {
	case dir > 0:
		next++
	case dir < 0:
		next--
	}
	if next > len(c.questions)-1 {
		next = len(c.questions) - 1
	}
	if next < 0 {
		next = 0
	}
	c.index = next
	return next
}

// Submit ends the session. It runs at most once: later calls from any trigger
// return nil without effect. A manual submit asks for confirmation first and
// is the only cancellable trigger. If posting the answers fails the session
// still ends Submitted and the user is told; nothing is retried.
func (c *Controller) Submit(ctx context.Context, trigger model.Trigger) error {
	switch c.State() {
	case model.SessionStateSubmitted:
		return nil
	case model.SessionStateNotStarted:
		if trigger == model.TriggerManual {
			return ErrNotRunning
		}
		return nil
	}

	if trigger == model.TriggerManual && !c.env.Confirmer.Confirm(ctx, confirmPrompt) {
		return ErrSubmitCancelled
	}

	c.mu.Lock()
	if c.state != model.SessionStateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = model.SessionStateSubmitted
	snapshot := c.selections.Clone()
	questions := c.questions
	code := c.code
	unload := c.unload
	c.unload = nil
	// The countdown freezes in the same critical section that leaves Running.
	c.countdown.Stop()
	c.mu.Unlock()

	c.monitor.Deactivate()
	if unload != nil {
		unload()
	}
	if err := c.env.Display.ExitFullscreen(); err != nil {
		c.log.Debug().Err(err).Msg("Fullscreen exit failed")
	}

	c.log.Info().
		Str("trigger", string(trigger)).
		Int("answered", len(snapshot)).
		Int("violations", c.monitor.Count()).
		Msg("Submitting quiz")

	switch trigger {
	case model.TriggerTimeout:
		c.env.Notifier.Notify(noticeOf(response.ErrAutoSubmitTimeout))
	case model.TriggerViolationLimit:
		c.env.Notifier.Notify(noticeOf(response.ErrAutoSubmitViolation))
	}

	result, err := c.reporter.Report(ctx, code, questions, snapshot)
	result.Trigger = trigger

	c.mu.Lock()
	c.result = &result
	c.mu.Unlock()

	c.record(model.IncidentSubmitted, "", c.monitor.Count(), trigger)
	if err != nil {
		c.env.Notifier.Notify(NoticeFor(err))
	} else {
		c.env.Modals.Show(ModalResult)
	}
	c.env.Observer.StateChanged(c.Snapshot())
	return err
}

// Close tears the session down when its tab goes away without submitting:
// timers and listeners stop, nothing is posted.
func (c *Controller) Close() {
	c.mu.Lock()
	unload := c.unload
	c.unload = nil
	c.closed = true
	running := c.state == model.SessionStateRunning
	c.mu.Unlock()

	c.countdown.Stop()
	c.monitor.Deactivate()
	if unload != nil {
		unload()
	}
	if running {
		if err := c.env.Display.ExitFullscreen(); err != nil {
			c.log.Debug().Err(err).Msg("Fullscreen exit failed")
		}
		c.log.Warn().Msg("Session closed while running; answers were not submitted")
	}
}

// WarnOnUnload reports whether leaving the page should prompt the user.
func (c *Controller) WarnOnUnload() bool {
	return c.State() == model.SessionStateRunning
}

func (c *Controller) guardUnload() bool {
	if !c.WarnOnUnload() {
		return false
	}
	c.record(model.IncidentUnloadAttempt, "", c.monitor.Count(), "")
	return true
}

// Questions returns the loaded question sequence.
func (c *Controller) Questions() []model.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// Quiz returns the loaded quiz metadata, or nil before a successful load.
func (c *Controller) Quiz() *model.Quiz {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quiz == nil {
		return nil
	}
	q := *c.quiz
	return &q
}

// Selections returns a copy of the current selections.
func (c *Controller) Selections() model.Selections {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selections.Clone()
}

// Snapshot returns a read-only view of the session.
func (c *Controller) Snapshot() model.SessionSnapshot {
	remaining := c.countdown.Remaining()
	countdownOn := c.countdown.Running()
	violations := c.monitor.Count()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.SessionStateNotStarted && !countdownOn {
		remaining = c.initial
	}
	snap := model.SessionSnapshot{
		ID:               c.id,
		QuizCode:         c.code,
		State:            c.state,
		Loaded:           c.loaded,
		CurrentIndex:     c.index,
		QuestionCount:    len(c.questions),
		RemainingSeconds: remaining,
		Violations:       violations,
		MaxViolations:    c.policy.MaxViolations,
		Answered:         len(c.selections),
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	return snap
}

func (c *Controller) runCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *Controller) record(kind model.IncidentKind, signal model.SignalKind, count int, trigger model.Trigger) {
	c.mu.Lock()
	code := c.code
	c.mu.Unlock()
	c.env.Incidents.Record(model.Incident{
		ID:         uuid.New(),
		SessionID:  c.id,
		QuizCode:   code,
		Kind:       kind,
		Signal:     signal,
		Count:      count,
		Trigger:    trigger,
		RecordedAt: c.sched.Now(),
	})
}

func noticeOf(code response.ErrCode) Notice {
	return Notice{Title: response.GetTitle(code), Message: response.GetMessage(code)}
}
