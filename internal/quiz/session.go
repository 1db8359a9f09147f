package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// State is the lifecycle position of a quiz session
type State int

const (
	Idle State = iota
	Loading
	Ready
	Submitting
	Scored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case Scored:
		return "scored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DropPolicy decides how answers dropped before submission affect the score
type DropPolicy string

const (
	// DropCountsAsZero keeps every built form entry in the denominator
	DropCountsAsZero DropPolicy = "zero"
	// DropExcluded scores only the answers the grading service returned marks for
	DropExcluded DropPolicy = "exclude"
)

// ParseDropPolicy converts a configuration string into a DropPolicy
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch DropPolicy(s) {
	case DropCountsAsZero, "":
		return DropCountsAsZero, nil
	case DropExcluded:
		return DropExcluded, nil
	default:
		return "", fmt.Errorf("unknown drop policy: %q", s)
	}
}

// GradingService is the transport collaborator that owns the tasks and
// their answer keys
type GradingService interface {
	FetchTasks(ctx context.Context) ([]Task, error)
	SubmitAnswers(ctx context.Context, answers []Answer) ([]Result, error)
}

// MarkLine pairs a result with the question it scored
type MarkLine struct {
	ID       string       `json:"_id"`
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Mark     float64      `json:"mark"`
}

// Outcome is everything a scored session produced
type Outcome struct {
	Score     Score
	Answers   []Answer
	Results   []Result
	Dropped   Diagnostics
	Breakdown []MarkLine
}

// Option configures a Controller
type Option func(*Controller)

// WithShuffle permutes the fetched tasks before the form is built
func WithShuffle(rng *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = rng
	}
}

// WithCodec sets the answer codec, and with it the protocol of built forms
func WithCodec(codec Codec) Option {
	return func(c *Controller) {
		c.codec = codec
	}
}

// WithRegistry sets the question type registry
func WithRegistry(r *Registry) Option {
	return func(c *Controller) {
		c.registry = r
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithTimeout bounds every call to the grading service. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithDropPolicy sets how dropped answers are scored
func WithDropPolicy(p DropPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// Controller drives one quiz attempt: fetch tasks, collect answers, submit
// them and aggregate the returned marks. Only one operation may run at a time.
type Controller struct {
	svc      GradingService
	rng      *rand.Rand
	codec    Codec
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	policy   DropPolicy

	mu      sync.Mutex
	busy    bool
	state   State
	tasks   []Task
	form    *FormModel
	built   Diagnostics
	encoded Diagnostics
	pending []Answer
	outcome *Outcome
}

// NewController creates a controller in the Idle state
func NewController(svc GradingService, opts ...Option) *Controller {
	c := &Controller{
		svc:    svc,
		policy: DropCountsAsZero,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.codec == nil {
		c.codec = NewDirectCodec(c.registry, c.logger)
	}
	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tasks returns the tasks in presentation order
func (c *Controller) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tasks)
}

// Form returns the form model, nil before tasks are loaded. The caller
// populates it while the session is Ready.
func (c *Controller) Form() *FormModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Diagnostics returns the failures contained while building the form
func (c *Controller) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.built)
}

// Outcome returns the scored outcome, nil until the session is Scored
func (c *Controller) Outcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Start fetches the tasks and builds the form. On failure the session stays
// in Loading and Start may be called again.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.begin("start", Idle, Loading); err != nil {
		return err
	}
	defer c.end()

	c.setState(Loading)

	callCtx, cancel := c.callContext(ctx)
	tasks, err := c.svc.FetchTasks(callCtx)
	cancel()
	if err != nil {
		f := c.transportFailure(FetchFailure, "fetch", err)
		c.logger.Error("failed to fetch tasks", "error", err, "kind", f.Kind)
		return f
	}

	if c.rng != nil {
		tasks = Shuffle(tasks, c.rng)
	}
	form, diags := NewBuilder(c.registry, c.codec.Protocol(), c.logger).Build(tasks)

	c.mu.Lock()
	c.tasks = tasks
	c.form = form
	c.built = diags
	c.state = Ready
	c.mu.Unlock()

	c.logger.Info("quiz loaded", "tasks", len(tasks), "entries", form.Len(), "skipped", len(diags))
	return nil
}

// Submit validates, encodes and submits the form. An invalid form keeps the
// session Ready. A transport failure keeps it Submitting; calling Submit
// again resends the same encoded answers.
func (c *Controller) Submit(ctx context.Context) (*Outcome, error) {
	if err := c.begin("submit", Ready, Submitting); err != nil {
		return nil, err
	}
	defer c.end()

	if c.State() == Ready {
		if err := c.prepare(); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := c.callContext(ctx)
	results, err := c.svc.SubmitAnswers(callCtx, c.pending)
	cancel()
	if err != nil {
		f := c.transportFailure(SubmitFailure, "submit", err)
		c.logger.Error("failed to submit answers", "error", err, "kind", f.Kind)
		return nil, f
	}

	outcome, err := c.score(results)

	c.mu.Lock()
	c.outcome = outcome
	c.state = Scored
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("quiz scored without marks", "error", err)
		return outcome, err
	}
	c.logger.Info("quiz scored", "score", outcome.Score.String(), "dropped", len(outcome.Dropped))
	return outcome, nil
}

// Reset returns a Scored session to Idle for a new attempt
func (c *Controller) Reset() error {
	if err := c.begin("reset", Scored); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	c.state = Idle
	c.tasks = nil
	c.form = nil
	c.built = nil
	c.encoded = nil
	c.pending = nil
	c.outcome = nil
	c.mu.Unlock()
	return nil
}

// prepare freezes the form and encodes the answers
func (c *Controller) prepare() error {
	if errs := c.form.freeze(); len(errs) > 0 {
		c.logger.Warn("form is incomplete", "errors", len(errs))
		return &Failure{Kind: ValidationFailure, Op: "submit", Index: -1, Err: errs}
	}

	answers, diags, err := c.codec.Encode(c.form, c.tasks)
	if err != nil {
		c.form.unlock()
		c.logger.Error("refusing submission", "error", err)
		return &Failure{Kind: DecodeFailure, Op: "encode", Index: -1, Err: err}
	}

	c.mu.Lock()
	c.pending = answers
	c.encoded = diags
	c.state = Submitting
	c.mu.Unlock()
	return nil
}

func (c *Controller) score(results []Result) (*Outcome, error) {
	dropped := slices.Concat(c.built, c.encoded)

	breakdown := make([]MarkLine, 0, len(results))
	for i, r := range results {
		task, ok := FindTask(c.tasks, r.ID)
		if !ok {
			c.logger.Warn("cannot find question", "id", r.ID)
			dropped.add(DecodeFailure, "breakdown", r.ID, i, fmt.Errorf("%w: %q", ErrUnresolvedTask, r.ID))
			breakdown = append(breakdown, MarkLine{ID: r.ID, Mark: r.Mark})
			continue
		}
		breakdown = append(breakdown, MarkLine{ID: r.ID, Type: task.Type, Question: task.Question.Value, Mark: r.Mark})
	}

	var score Score
	var err error
	if c.policy == DropExcluded {
		score, err = Aggregate(results)
	} else {
		score, err = AggregateOver(results, c.form.Len())
	}

	return &Outcome{
		Score:     score,
		Answers:   c.pending,
		Results:   results,
		Dropped:   dropped,
		Breakdown: breakdown,
	}, err
}

func (c *Controller) begin(op string, allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if !slices.Contains(allowed, c.state) {
		return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, c.state)
	}
	c.busy = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) transportFailure(kind FailureKind, op string, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = Timeout
	}
	return &Failure{Kind: kind, Op: op, Index: -1, Err: err}
}
