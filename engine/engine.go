// Package engine runs the periodic schedule-driven decision loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ecoheat/devicestate"
	"ecoheat/metrics"
	"ecoheat/models"
	"ecoheat/repositories/base"
)

var (
	ErrInvalidSettings = errors.New("invalid decision engine settings")
	ErrAlreadyRunning  = errors.New("decision engine already running")
)

const stopTimeout = 2 * time.Second

type RoomLister interface {
	ListRoomIDs(ctx context.Context) ([]uint, error)
}

type StateReader interface {
	GetOrCreate(ctx context.Context, roomID uint) (devicestate.DeviceState, error)
}

// ReadingSource returns the most recent reading of a room, or found=false.
type ReadingSource interface {
	LatestReading(ctx context.Context, roomID uint) (*models.SensorReading, bool, error)
}

// ScheduleResolver reports missing data as base.EntityNotFoundError.
type ScheduleResolver interface {
	GetActiveSchedule(ctx context.Context, roomID uint) (*models.RoomSchedule, error)
	FindTimeSlot(ctx context.Context, scheduleID uint, dayOfWeek int, clock string) (*models.TimeSlot, error)
}

type Actuators interface {
	SetValve(ctx context.Context, roomID uint, open bool) error
	SetFan(ctx context.Context, roomID uint, on bool) error
}

type Settings struct {
	CheckInterval        time.Duration
	TemperatureThreshold float64
}

func (s Settings) Validate() error {
	if s.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive, got %v", ErrInvalidSettings, s.CheckInterval)
	}
	if s.TemperatureThreshold < 0 {
		return fmt.Errorf("%w: temperature threshold must not be negative, got %v", ErrInvalidSettings, s.TemperatureThreshold)
	}
	return nil
}

// Deps are the collaborators of the engine.
type Deps struct {
	Rooms     RoomLister
	State     StateReader
	Readings  ReadingSource
	Schedules ScheduleResolver
	Actuators Actuators
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// Location is the zone time slots are written in. Nil means time.Local.
	Location *time.Location
}

type Engine struct {
	deps   Deps
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu       sync.Mutex
	settings Settings
	// cancel is set while the loop is wanted; done stays set until the loop
	// goroutine has returned, even after Stop gave up waiting.
	cancel      context.CancelFunc
	done        chan struct{}
	stopTimeout time.Duration
}

func New(deps Deps, settings Settings) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		deps:     deps,
		logger:   deps.Logger.With("component", "decision_engine"),
		loc:      loc,
		now:      time.Now,
		settings: settings,

		stopTimeout: stopTimeout,
	}, nil
}

func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings replaces the settings. A new interval applies from the next
// wait of a running loop.
func (e *Engine) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.logger.Info("Decision engine settings updated",
		"check_interval", s.CheckInterval.String(), "temperature_threshold", s.TemperatureThreshold)
	return nil
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Start launches the loop. The first cycle runs immediately. A loop that is
// still finishing after a timed-out Stop counts as running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrAlreadyRunning
	}
	if e.done != nil {
		return fmt.Errorf("%w: previous loop is still stopping", ErrAlreadyRunning)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done

	go e.loop(loopCtx, done)
	e.logger.Info("Decision engine started", "check_interval", e.settings.CheckInterval.String())
	return nil
}

// Stop cancels the loop and waits up to two seconds for the room in flight
// to finish. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
		e.logger.Info("Decision engine stopped")
	case <-time.After(e.stopTimeout):
		e.logger.Warn("Decision engine did not stop in time", "timeout", e.stopTimeout.String())
	}
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.done == done {
			if e.cancel != nil {
				e.cancel()
			}
			e.cancel, e.done = nil, nil
		}
		e.mu.Unlock()
		close(done)
	}()
	for {
		e.RunCycle(ctx)

		timer := time.NewTimer(e.Settings().CheckInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CycleReport summarizes one pass over all rooms.
type CycleReport struct {
	Rooms    int
	Applied  int
	Skipped  map[SkipReason]int
	Failures int
}

// RunCycle evaluates and applies every room once. A failing room is logged
// and counted, never fatal. Cancelling ctx stops after the current room.
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	defer e.deps.Metrics.ObserveCycle(start)

	report := CycleReport{Skipped: make(map[SkipReason]int)}
	ids, err := e.deps.Rooms.ListRoomIDs(ctx)
	if err != nil {
		e.logger.Error("Failed to list rooms", slog.Any("error", err))
		return report
	}

	e.logger.Debug("Decision cycle", "rooms", len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		report.Rooms++
		d, err := e.processRoom(ctx, id)
		switch {
		case err != nil:
			report.Failures++
			e.deps.Metrics.RoomErrors.Inc()
			e.logger.Error("Room decision failed", "room_id", id, slog.Any("error", err))
		case d.Skipped():
			report.Skipped[d.Skip]++
		case d.Valve != nil || d.Fan != nil:
			report.Applied++
		}
	}
	return report
}

// processRoom isolates panics of a single room.
func (e *Engine) processRoom(ctx context.Context, roomID uint) (d Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing room %d: %v", roomID, r)
		}
	}()

	d, err = e.Evaluate(ctx, roomID)
	if err != nil {
		return d, err
	}
	e.deps.Metrics.DecisionsTotal.WithLabelValues(d.Outcome()).Inc()
	if d.Skipped() {
		return d, nil
	}
	return d, e.apply(ctx, roomID, d)
}

// Evaluate reads the room's inputs and returns its decision without acting on
// it.
func (e *Engine) Evaluate(ctx context.Context, roomID uint) (Decision, error) {
	logger := e.logger.With("room_id", roomID)

	st, err := e.deps.State.GetOrCreate(ctx, roomID)
	if err != nil {
		return Decision{}, err
	}
	if st.BothManual() {
		logger.Debug("Both actuators under manual control, skipping")
		return Skip(SkipManualMode), nil
	}

	reading, found, err := e.deps.Readings.LatestReading(ctx, roomID)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		logger.Warn("No sensor reading for room, skipping")
		return Skip(SkipNoReading), nil
	}

	assignment, err := e.deps.Schedules.GetActiveSchedule(ctx, roomID)
	if base.IsEntityNotFound(err) {
		logger.Warn("No active schedule for room, skipping")
		return Skip(SkipNoActiveSchedule), nil
	}
	if err != nil {
		return Decision{}, err
	}

	now := e.now().In(e.loc)
	day, clock := models.ISODayOfWeek(now), now.Format(models.ClockLayout)
	slot, err := e.deps.Schedules.FindTimeSlot(ctx, assignment.ScheduleID, day, clock)
	if base.IsEntityNotFound(err) {
		logger.Warn("No time slot covers now, skipping", "schedule_id", assignment.ScheduleID, "day", day, "time", clock)
		return Skip(SkipNoTimeSlot), nil
	}
	if err != nil {
		return Decision{}, err
	}

	d := Decide(st, reading.Temperature, *slot, e.Settings().TemperatureThreshold)
	logger.Info("Room evaluated",
		"temperature", reading.Temperature, "desired", slot.DesiredTemperature,
		"heating_active", slot.IsHeatingActive, "fan_active", slot.IsFanActive,
		"valve_on", st.ValveOn, "fan_on", st.FanOn, "outcome", d.Outcome())
	return d, nil
}

func (e *Engine) apply(ctx context.Context, roomID uint, d Decision) error {
	var errs []error
	if d.Valve != nil {
		if err := e.deps.Actuators.SetValve(ctx, roomID, *d.Valve); err != nil {
			errs = append(errs, fmt.Errorf("valve: %w", err))
		}
	}
	if d.Fan != nil {
		if err := e.deps.Actuators.SetFan(ctx, roomID, *d.Fan); err != nil {
			errs = append(errs, fmt.Errorf("fan: %w", err))
		}
	}
	return errors.Join(errs...)
}
