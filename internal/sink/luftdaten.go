package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

// Category pins defined by the sensor.community push protocol: particulate
// readings and climate readings are separate submissions, each tagged with
// the sensor category it claims to come from.
const (
	pinParticulate = "1"
	pinClimate     = "11"
)

// DefaultTimeout bounds a single push so one slow remote call cannot starve
// the rest of the tick.
const DefaultTimeout = 5 * time.Second

// Luftdaten pushes readings to a sensor.community-compatible aggregation
// API. The reading is split into a particulate group and a climate group; a
// POST is attempted per non-empty group, and the sink succeeds only if every
// attempted POST succeeds. A group with nothing in it is skipped outright —
// skipping is not failure. Nothing is retried here: the next cycle is the
// retry.
type Luftdaten struct {
	apiURL          string
	sensorID        string
	softwareVersion string
	client          *http.Client
	logger          *zap.Logger
}

type sensorDataValue struct {
	ValueType string `json:"value_type"`
	Value     string `json:"value"`
}

type pushBody struct {
	SoftwareVersion  string            `json:"software_version"`
	SensorDataValues []sensorDataValue `json:"sensordatavalues"`
}

func NewLuftdaten(logger *zap.Logger, apiURL, sensorID, softwareVersion string, timeout time.Duration) *Luftdaten {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Luftdaten{
		apiURL:          apiURL,
		sensorID:        sensorID,
		softwareVersion: softwareVersion,
		client:          &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

func (l *Luftdaten) Name() string {
	return "luftdaten"
}

// Store splits r into its two protocol groups and pushes each one that has
// content. Both groups are attempted even if the first fails, then the
// failures (if any) are combined into the sink's single outcome.
func (l *Luftdaten) Store(ctx context.Context, r reading.Reading) error {
	var pm, climate []sensorDataValue
	for _, f := range r.Fields() {
		v := sensorDataValue{
			ValueType: f.Name,
			Value:     strconv.FormatFloat(f.Value, 'f', -1, 64),
		}
		if f.Particulate {
			pm = append(pm, v)
		} else {
			climate = append(climate, v)
		}
	}

	var errs []error
	if len(pm) > 0 {
		if err := l.push(ctx, pinParticulate, pm); err != nil {
			l.logger.Warn("particulate push failed",
				zap.String("class", ClassOf(err).String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("particulate: %w", err))
		}
	}
	if len(climate) > 0 {
		if err := l.push(ctx, pinClimate, climate); err != nil {
			l.logger.Warn("climate push failed",
				zap.String("class", ClassOf(err).String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("climate: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (l *Luftdaten) push(ctx context.Context, pin string, values []sensorDataValue) error {
	payload, err := json.Marshal(pushBody{
		SoftwareVersion:  l.softwareVersion,
		SensorDataValues: values,
	})
	if err != nil {
		return Fail(ClassConfigMismatch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Fail(ClassConfigMismatch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PIN", pin)
	req.Header.Set("X-Sensor", l.sensorID)

	resp, err := l.client.Do(req)
	if err != nil {
		return Fail(classifyTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Fail(ClassBadResponse, fmt.Errorf("status %s", resp.Status))
	}
	return nil
}

func classifyTransport(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return ClassTimeout
	}
	return ClassTransient
}
