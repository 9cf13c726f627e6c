// Package schedule runs container callbacks on cron expressions, in the manner
// of Laravel's task scheduler.
//
//	// Laravel: $schedule->call('ReportController@daily')->dailyAt('02:00');
//	s.Call("0 2 * * *", "ReportController@Daily", nil)
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/km-arc/go-laravel-container/framework/container"
)

// Event is a callback scheduled on a cron expression. Callback is anything
// Container.Call accepts.
type Event struct {
	Spec        string
	Callback    any
	Params      container.Parameters
	Description string

	id       cron.EntryID
	schedule *Schedule
}

// Describe sets the description used in logs.
func (e *Event) Describe(description string) *Event {
	e.Description = description
	return e
}

// Next returns the next activation time, or the zero time while the scheduler
// is stopped.
func (e *Event) Next() time.Time {
	return e.schedule.cron.Entry(e.id).Next
}

// Run implements cron.Job.
func (e *Event) Run() {
	start := time.Now()
	if _, err := e.schedule.RunEvent(e); err != nil {
		e.schedule.log.Error("scheduled event failed", zap.String("event", e.String()), zap.Error(err))
		return
	}
	e.schedule.log.Debug("scheduled event ran", zap.String("event", e.String()), zap.Duration("duration", time.Since(start)))
}

func (e *Event) String() string {
	if e.Description != "" {
		return e.Description
	}
	if name, ok := e.Callback.(string); ok {
		return name
	}
	return fmt.Sprintf("%T", e.Callback)
}

// Schedule owns the cron runner and the events registered on it.
type Schedule struct {
	cron   *cron.Cron
	app    *container.Container
	log    *zap.Logger
	events []*Event
}

// New creates a stopped scheduler whose events are called through app. Standard
// five-field expressions and descriptors such as "@hourly" or "@every 5m" are
// accepted. An event still running at its next activation is skipped.
func New(app *container.Container) *Schedule {
	log := app.Logger().Named("schedule")
	logger := cronLogger{log.Sugar()}
	return &Schedule{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		app: app,
		log: log,
	}
}

// Call schedules callback with params on spec.
func (s *Schedule) Call(spec string, callback any, params container.Parameters) (*Event, error) {
	e := &Event{Spec: spec, Callback: callback, Params: params, schedule: s}
	id, err := s.cron.AddJob(spec, e)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid expression %q: %w", spec, err)
	}
	e.id = id
	s.events = append(s.events, e)
	return e, nil
}

// RunEvent calls e now. It holds the container lock for the duration of the call
// and forgets scoped instances afterwards.
func (s *Schedule) RunEvent(e *Event) (any, error) {
	s.app.Lock()
	defer s.app.Unlock()
	defer s.app.ForgetScopedInstances()

	return s.app.Call(e.Callback, e.Params)
}

// Events returns the registered events in registration order.
func (s *Schedule) Events() []*Event { return s.events }

// Start runs the scheduler in its own goroutine.
func (s *Schedule) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("events", len(s.events)))
}

// Stop halts the scheduler. The returned context is done once running events
// have finished.
func (s *Schedule) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
