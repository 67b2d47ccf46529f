// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/enviro_monitor/internal/cadence"
	"github.com/relabs-tech/enviro_monitor/internal/compensate"
	"github.com/relabs-tech/enviro_monitor/internal/display"
	"github.com/relabs-tech/enviro_monitor/internal/reading"
	"github.com/relabs-tech/enviro_monitor/internal/sample"
	"github.com/relabs-tech/enviro_monitor/internal/sensors"
	"github.com/relabs-tech/enviro_monitor/internal/sink"
)

// tickFraction is how much of the sampling interval each idle tick sleeps.
// Ticks stay much shorter than the interval so proximity triggers and the
// progress bar remain responsive between samples.
const tickFraction = 0.05

// CPUReader reads the SoC temperature.
type CPUReader interface {
	Read() (float64, error)
}

// Sensors is the set of acquisition sources the loop polls. A nil source is
// a disabled measurement group, not an error.
type Sensors struct {
	Climate     sensors.ClimateReader
	Particulate sensors.ParticulateReader
	Gas         sensors.GasReader
	Proximity   sensors.ProximityReader
	CPU         CPUReader
}

// Loop is the monitor's single owner of time and sensor access. One
// goroutine runs it; everything it touches is touched by it alone.
type Loop struct {
	Logger  *zap.Logger
	Sensors Sensors
	Options compensate.Options

	Dispatcher *sink.Dispatcher
	Status     *Status // optional; fed after every sample

	// PerMinute and AlignMinutes configure the cadence; Start builds the
	// controller once the start gate has passed.
	PerMinute    float64
	AlignMinutes int // 0 starts immediately

	Scenes   *display.SceneState
	Renderer *display.Renderer
	Device   display.Device // nil when the panel is disabled

	// Now and Sleep default to the real clock; tests fix them.
	Now   func() time.Time
	Sleep func(time.Duration)

	cadence *cadence.Controller
	last    reading.Reading
	lastCPU float64
	failed  bool
}

// TickOutcome reports what one pass of the loop did.
type TickOutcome struct {
	Sampled    bool
	Reading    reading.Reading
	Outcomes   []sink.Outcome
	AcquireErr error
}

// Run drives the loop until ctx is cancelled: welcome scene, start gate,
// then sample ticks forever.
func (l *Loop) Run(ctx context.Context) error {
	l.defaults()

	if l.Device != nil {
		if err := l.Device.SetBacklight(true); err != nil {
			return fmt.Errorf("backlight on: %w", err)
		}
		if err := l.Device.Draw(l.Renderer.Welcome(l.Now())); err != nil {
			return fmt.Errorf("welcome frame: %w", err)
		}
	}

	if err := l.waitForStart(ctx); err != nil {
		return err
	}
	if err := l.Start(l.Now()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Tick(ctx, l.Now())
		l.Sleep(time.Duration(float64(l.cadence.Interval()) * tickFraction))
	}
}

// Start fixes the cadence reference at now. Run calls it after the start
// gate; tests call it directly.
func (l *Loop) Start(now time.Time) error {
	l.defaults()
	c, err := cadence.New(l.PerMinute, now)
	if err != nil {
		return err
	}
	l.cadence = c
	l.Logger.Info("sampling started",
		zap.Time("start", now),
		zap.Duration("interval", c.Interval()))
	return nil
}

// Tick runs one pass: feed the proximity trigger, sample if one is due,
// repaint the panel.
func (l *Loop) Tick(ctx context.Context, now time.Time) TickOutcome {
	var out TickOutcome

	if l.Sensors.Proximity != nil && l.Scenes != nil {
		p, err := l.Sensors.Proximity.ReadProximity()
		if err != nil {
			l.Logger.Warn("proximity read failed", zap.Error(err))
		} else if l.Scenes.Advance(p) {
			l.Logger.Debug("scene advanced", zap.Int("scene", l.Scenes.Scene()))
		}
	}

	if l.cadence.ShouldSample(now) {
		out.Sampled = true

		raw, err := l.acquire(now)
		out.AcquireErr = err
		if err != nil {
			l.failed = true
			l.Logger.Warn("acquisition incomplete", zap.Error(err))
		}

		r := compensate.Compensate(raw, l.Options)
		l.last = r
		out.Reading = r
		if l.Status != nil {
			l.Status.Set(r)
		}
		l.logReading(r)

		out.Outcomes = l.Dispatcher.Dispatch(ctx, r)
		for _, o := range out.Outcomes {
			if !o.OK() {
				l.failed = true
			}
		}
	}

	l.render(now)
	return out
}

// acquire polls every enabled sensor group once. Groups are independent: a
// failed group is reported and left absent while the others still land in
// the sample. A transient particulate fault earns one in-place reset and
// one retry before the cycle gives up on it.
func (l *Loop) acquire(now time.Time) (sample.Raw, error) {
	raw := sample.Raw{Time: now}
	var errs []error

	if l.Sensors.CPU != nil {
		cpu, err := l.Sensors.CPU.Read()
		if err != nil {
			// Compensation still needs a CPU figure; the previous one is
			// closer to the truth than zero.
			cpu = l.lastCPU
			errs = append(errs, fmt.Errorf("cpu temperature: %w", err))
		}
		l.lastCPU = cpu
		raw.CPUTemperature = cpu
	}

	if l.Sensors.Climate != nil {
		c, err := l.Sensors.Climate.ReadClimate()
		if err != nil {
			errs = append(errs, fmt.Errorf("climate: %w", err))
		} else {
			raw.Climate = &c
		}
	}

	if l.Sensors.Particulate != nil {
		p, err := l.readParticulate()
		if err != nil {
			errs = append(errs, fmt.Errorf("particulate: %w", err))
		} else {
			raw.Particulate = &p
		}
	}

	if l.Sensors.Gas != nil {
		g, err := l.Sensors.Gas.ReadGas()
		if err != nil {
			errs = append(errs, fmt.Errorf("gas: %w", err))
		} else {
			raw.Gas = &g
		}
	}

	return raw, errors.Join(errs...)
}

func (l *Loop) readParticulate() (sample.Particulate, error) {
	p, err := l.Sensors.Particulate.ReadParticulate()
	if err == nil || !sensors.IsTransient(err) {
		return p, err
	}

	r, ok := l.Sensors.Particulate.(sensors.Resetter)
	if !ok {
		return p, err
	}

	l.Logger.Warn("transient particulate fault, resetting sensor", zap.Error(err))
	if rerr := r.Reset(); rerr != nil {
		return sample.Particulate{}, errors.Join(err, fmt.Errorf("reset: %w", rerr))
	}
	return l.Sensors.Particulate.ReadParticulate()
}

func (l *Loop) render(now time.Time) {
	if l.Device == nil {
		return
	}
	f := display.Frame{
		Reading:  l.last,
		Progress: l.cadence.Progress(now),
		Healthy:  !l.failed,
	}
	if l.Scenes != nil {
		f.Scene = l.Scenes.Scene()
	}
	if err := l.Device.Draw(l.Renderer.Status(f)); err != nil {
		l.Logger.Warn("frame draw failed", zap.Error(err))
	}
}

// waitForStart blocks until the wall-clock minute is a multiple of
// AlignMinutes, repainting the welcome scene while waiting.
func (l *Loop) waitForStart(ctx context.Context) error {
	target := cadence.NextAligned(l.Now(), l.AlignMinutes)
	if !target.After(l.Now()) {
		return nil
	}
	l.Logger.Info("waiting for aligned start", zap.Time("startAt", target))

	for {
		now := l.Now()
		if !now.Before(target) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d := target.Sub(now)
		if d > time.Second {
			d = time.Second
		}
		l.Sleep(d)
	}
}

func (l *Loop) logReading(r reading.Reading) {
	fields := make([]zap.Field, 0, 10)
	fields = append(fields, zap.Time("timestamp", r.Timestamp))
	for _, f := range r.Fields() {
		fields = append(fields, zap.Float64(f.Column, f.Value))
	}
	l.Logger.Info("reading", fields...)
}

// Shutdown switches the panel off. Sinks and buses are closed by the
// caller, after this, in the reverse order they were opened.
func (l *Loop) Shutdown() {
	if l.Device == nil {
		return
	}
	if err := l.Device.SetBacklight(false); err != nil {
		l.Logger.Warn("backlight off failed", zap.Error(err))
	}
}

func (l *Loop) defaults() {
	if l.Now == nil {
		l.Now = time.Now
	}
	if l.Sleep == nil {
		l.Sleep = time.Sleep
	}
	if l.Logger == nil {
		l.Logger = zap.NewNop()
	}
}
