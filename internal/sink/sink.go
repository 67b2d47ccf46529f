package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

// Class tags a sink failure so the caller can log it meaningfully without
// unpacking transport-specific errors. Failures are never retried within a
// cycle; the next scheduled cycle is the retry.
type Class int

const (
	ClassTransient Class = iota // connection, bus or disk I/O
	ClassTimeout
	ClassBadResponse
	ClassConfigMismatch
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassTimeout:
		return "timeout"
	case ClassBadResponse:
		return "bad response"
	case ClassConfigMismatch:
		return "configuration mismatch"
	default:
		return "unknown"
	}
}

// Error is a classified sink failure.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail wraps err with a failure class.
func Fail(class Class, err error) *Error {
	return &Error{Class: class, Err: err}
}

// ClassOf extracts the failure class from err, defaulting to transient.
func ClassOf(err error) Class {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	return ClassTransient
}

// Outcome is the result of offering one reading to one sink. Outcomes are
// reported per sink and never folded into a single boolean across sinks.
type Outcome struct {
	Sink string
	Err  error
}

// OK reports whether the sink accepted the reading.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Sink is a destination for calibrated readings.
type Sink interface {
	Name() string
	Store(ctx context.Context, r reading.Reading) error
}

// Dispatcher fans a reading out to every configured sink. Each sink is
// attempted regardless of what happened to the ones before it: a remote
// outage must never stop local persistence, and vice versa.
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Dispatch offers r to every sink in order and returns one Outcome per sink.
func (d *Dispatcher) Dispatch(ctx context.Context, r reading.Reading) []Outcome {
	outcomes := make([]Outcome, 0, len(d.sinks))
	for _, s := range d.sinks {
		err := s.Store(ctx, r)
		if err != nil {
			d.logger.Warn("sink rejected reading",
				zap.String("sink", s.Name()),
				zap.String("class", ClassOf(err).String()),
				zap.Error(err))
		} else {
			d.logger.Debug("sink accepted reading", zap.String("sink", s.Name()))
		}
		outcomes = append(outcomes, Outcome{Sink: s.Name(), Err: err})
	}
	return outcomes
}
