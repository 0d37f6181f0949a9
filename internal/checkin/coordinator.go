package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/attendance-api/internal/clientcache"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/jobs"
	"github.com/noah-isme/attendance-api/pkg/textutil"
)

// DefaultReconcileDelay is how long a check-in waits before resyncing with the server.
const DefaultReconcileDelay = 3 * time.Second

const reconcileJobType = "checkin.reconcile"

var (
	// ErrBusy is returned when a flow step is invoked out of order.
	ErrBusy = errors.New("check-in already in progress")
	// ErrNoPendingStudent is returned by SubmitDetails without a preceding NeedsDetails.
	ErrNoPendingStudent = errors.New("no student awaiting details")
	// ErrEmptyName rejects blank names before any request is made.
	ErrEmptyName = errors.New("student name is required")
)

// API is the subset of the HTTP client used by the flow.
type API interface {
	ListStudents(ctx context.Context, name string) ([]models.Student, error)
	CreateStudent(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error)
	MarkAttendance(ctx context.Context, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error)
}

// Notifier surfaces flow outcomes to the user.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Error(msg string)
}

// Cache is the local cache surface touched by reconciliation.
type Cache interface {
	Remove(ctx context.Context, keys ...string) error
}

// MetricsFetcher reloads the dashboard snapshot.
type MetricsFetcher interface {
	GetMetrics(ctx context.Context) (*models.MetricsSnapshot, error)
}

// HistoryFetcher reloads the history series.
type HistoryFetcher interface {
	GetHistory(ctx context.Context) ([]models.AttendanceHistoryPoint, error)
}

// NewStudentDetails completes a registration for a name that is not on the roster.
type NewStudentDetails struct {
	Age         int
	Gender      string
	PhoneNumber string
}

// DetailsPrompt describes the registration the caller must complete.
type DetailsPrompt struct {
	Name string
}

// Result is the outcome of a flow step.
type Result struct {
	State   State
	Student *models.Student
	Date    string
	Prompt  *DetailsPrompt
	Metrics models.MetricsSnapshot
}

// Config wires a Coordinator.
type Config struct {
	API            API
	Cache          Cache
	Metrics        MetricsFetcher
	History        HistoryFetcher
	Notifier       Notifier
	View           *MetricsView
	Clock          clockwork.Clock
	Logger         *zap.Logger
	ReconcileDelay time.Duration
}

type reconcileTask struct {
	StudentID string
	Date      string
}

// Coordinator runs one check-in at a time.
type Coordinator struct {
	api      API
	cache    Cache
	metrics  MetricsFetcher
	history  HistoryFetcher
	notifier Notifier
	view     *MetricsView
	clock    clockwork.Clock
	logger   *zap.Logger
	delay    time.Duration
	queue    *jobs.Queue

	mu      sync.Mutex
	state   State
	pending string
	inQueue sync.WaitGroup
}

// New builds a Coordinator. Start must be called before check-ins can schedule resyncs.
func New(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.View == nil {
		cfg.View = &MetricsView{}
	}
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = DefaultReconcileDelay
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}

	c := &Coordinator{
		api:      cfg.API,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		history:  cfg.History,
		notifier: cfg.Notifier,
		view:     cfg.View,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		delay:    cfg.ReconcileDelay,
	}
	c.queue = jobs.NewQueue("checkin-reconcile", c.handleReconcile, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: cfg.ReconcileDelay,
		Logger:     cfg.Logger,
		Clock:      cfg.Clock,
		OnDrop:     c.dropReconcile,
	})
	return c
}

// Start launches the resync worker.
func (c *Coordinator) Start(ctx context.Context) {
	c.queue.Start(ctx)
}

// Stop halts the worker. Resyncs not yet due are dropped and no longer block WaitIdle.
func (c *Coordinator) Stop() {
	c.queue.Stop()
}

// State reports the current step.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View exposes the metrics view patched by the flow.
func (c *Coordinator) View() *MetricsView {
	return c.view
}

// CheckIn looks name up and marks the student present. An unknown name parks the flow in
// NeedsDetails until SubmitDetails is called.
func (c *Coordinator) CheckIn(ctx context.Context, name string) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := c.transition([]State{Idle, Marked, AlreadyMarked, NeedsDetails}, Checking); err != nil {
		return nil, err
	}

	students, err := c.api.ListStudents(ctx, name)
	if err != nil {
		return nil, c.fail("look up student", err)
	}
	if student := matchName(students, name); student != nil {
		c.setState(Submitting)
		return c.mark(ctx, student, false)
	}

	c.mu.Lock()
	c.state = NeedsDetails
	c.pending = name
	c.mu.Unlock()
	return &Result{State: NeedsDetails, Prompt: &DetailsPrompt{Name: name}}, nil
}

// SubmitDetails registers the pending name and marks the new student present.
func (c *Coordinator) SubmitDetails(ctx context.Context, details NewStudentDetails) (*Result, error) {
	c.mu.Lock()
	if c.state != NeedsDetails || c.pending == "" {
		c.mu.Unlock()
		return nil, ErrNoPendingStudent
	}
	name := c.pending
	c.pending = ""
	c.state = Submitting
	c.mu.Unlock()

	student, err := c.api.CreateStudent(ctx, models.CreateStudentRequest{
		Name:        name,
		Age:         details.Age,
		Gender:      details.Gender,
		PhoneNumber: details.PhoneNumber,
	})
	if err != nil {
		return nil, c.fail("register student", err)
	}
	c.invalidate(ctx, clientcache.KeyStudents)
	return c.mark(ctx, student, true)
}

// Cancel abandons a pending registration.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.state == NeedsDetails {
		c.state = Idle
		c.pending = ""
	}
	c.mu.Unlock()
}

// WaitIdle blocks until every scheduled resync has run or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inQueue.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconcile drops the cached aggregates touched by a check-in and reloads the view from the
// server. Running it twice has the same effect as running it once.
func (c *Coordinator) Reconcile(ctx context.Context, studentID, date string) error {
	keys := []string{clientcache.KeyMetrics, clientcache.KeyAttendanceHistory}
	if date != "" {
		keys = append(keys, clientcache.DailyKey(date))
	}
	if studentID != "" {
		keys = append(keys, clientcache.TotalKey(studentID))
	}
	c.invalidate(ctx, keys...)
	if c.metrics == nil {
		return nil
	}

	var snapshot *models.MetricsSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = c.metrics.GetMetrics(gctx)
		return err
	})
	if c.history != nil {
		g.Go(func() error {
			_, err := c.history.GetHistory(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	c.view.Replace(*snapshot)
	return nil
}

func (c *Coordinator) mark(ctx context.Context, student *models.Student, created bool) (*Result, error) {
	res, err := c.api.MarkAttendance(ctx, models.MarkAttendanceRequest{StudentID: student.ID})
	if err != nil {
		return nil, c.fail("mark attendance", err)
	}

	date := res.Attendance.Date
	if res.Outcome == models.OutcomeAlreadyMarked {
		c.setState(AlreadyMarked)
		c.notifier.Info(fmt.Sprintf("%s is already checked in for %s", student.Name, date))
		if created {
			c.schedule(student.ID, date)
		}
		return &Result{State: AlreadyMarked, Student: student, Date: date, Metrics: c.view.Snapshot()}, nil
	}

	snapshot := c.view.Bump(created)
	c.setState(Marked)
	c.notifier.Success(fmt.Sprintf("%s checked in for %s", student.Name, date))
	c.schedule(student.ID, date)
	return &Result{State: Marked, Student: student, Date: date, Metrics: snapshot}, nil
}

func (c *Coordinator) invalidate(ctx context.Context, keys ...string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Remove(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *Coordinator) schedule(studentID, date string) {
	c.inQueue.Add(1)
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    reconcileJobType,
		Payload: reconcileTask{StudentID: studentID, Date: date},
	}
	if err := c.queue.EnqueueAfter(job, c.delay); err != nil {
		c.inQueue.Done()
		c.logger.Warn("reconcile not scheduled", zap.Error(err))
	}
}

// handleReconcile returns reconcile errors so the queue retries once. Every scheduled job
// ends in exactly one inQueue.Done: here on success, or in dropReconcile.
func (c *Coordinator) handleReconcile(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(reconcileTask)
	if !ok {
		c.inQueue.Done()
		return nil
	}
	if err := c.Reconcile(ctx, task.StudentID, task.Date); err != nil {
		c.logger.Warn("reconcile failed", zap.String("student_id", task.StudentID), zap.Int("attempt", job.Attempt+1), zap.Error(err))
		return err
	}
	c.inQueue.Done()
	return nil
}

func (c *Coordinator) dropReconcile(job jobs.Job) {
	c.logger.Warn("reconcile abandoned", zap.String("job_id", job.ID))
	c.inQueue.Done()
}

func (c *Coordinator) transition(from []State, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range from {
		if c.state == s {
			c.state = to
			c.pending = ""
			return nil
		}
	}
	return ErrBusy
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) fail(step string, err error) error {
	c.setState(Idle)
	c.notifier.Error(fmt.Sprintf("failed to %s: %v", step, err))
	return fmt.Errorf("%s: %w", step, err)
}

func matchName(students []models.Student, name string) *models.Student {
	want := textutil.NormalizeName(name)
	for i := range students {
		if textutil.NormalizeName(students[i].Name) == want {
			return &students[i]
		}
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Info(string)    {}
func (nopNotifier) Error(string)   {}

var _ MetricsFetcher = (*clientcache.MetricsService)(nil)
var _ HistoryFetcher = (*clientcache.AttendanceHistoryService)(nil)
