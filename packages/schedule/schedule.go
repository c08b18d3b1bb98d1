package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether spec is a usable schedule
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler wraps a cron instance whose jobs never overlap
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger used for schedule events
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates a scheduler
func New(opts ...Option) *Scheduler {
	s := &Scheduler{log: zap.NewNop(), ctx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.log.Sugar()}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Add registers job under spec and returns its entry id
func (s *Scheduler) Add(spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { job(s.ctx) })
	if err != nil {
		s.log.Error("Adding scheduled job failed", zap.String("spec", spec), zap.Error(err))
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return id, nil
}

// Next returns the next activation time of an entry, or zero when the
// scheduler is not running.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Run starts the scheduler and blocks until ctx is done. Jobs receive ctx
// and Run waits for running jobs to return before it does.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()

	for _, e := range s.cron.Entries() {
		s.log.Info("Scheduled", zap.Int("entry", int(e.ID)), zap.Time("next", e.Next))
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
