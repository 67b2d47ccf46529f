package compensate

import (
	"math"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
	"github.com/relabs-tech/enviro_monitor/internal/sample"
)

// DefaultFactor is the CPU-heat bleed-through ratio fitted on the reference
// unit. It is a site-specific calibration constant, not a physical law:
// units mounted differently need their own value.
const DefaultFactor = 2.25

// Options selects which measurements make it into the calibrated record and
// how they are corrected. Built once from configuration at startup.
type Options struct {
	Temperature    bool
	Humidity       bool
	Pressure       bool
	PM25           bool
	PM10           bool
	Gases          bool
	CPUTemperature bool

	// CompensateTemperature subtracts the CPU self-heating bias:
	// compensated = raw - (cpu - raw) / Factor.
	CompensateTemperature bool
	Factor                float64

	// Precision is the number of decimal places every value is rounded to
	// before it leaves this package. Rounding happens here and only here,
	// so stored and transmitted values are stable under re-serialization.
	Precision int
}

// Columns returns the store column names implied by the enabled set, in
// the canonical reading.Fields order. The local store builds its schema
// from this exactly once at startup.
func (o Options) Columns() []string {
	cols := make([]string, 0, 9)
	if o.Temperature {
		cols = append(cols, "temperature")
	}
	if o.Humidity {
		cols = append(cols, "humidity")
	}
	if o.Pressure {
		cols = append(cols, "pressure")
	}
	if o.CPUTemperature {
		cols = append(cols, "cpu_temperature")
	}
	if o.PM25 {
		cols = append(cols, "pm2_5")
	}
	if o.PM10 {
		cols = append(cols, "pm10")
	}
	if o.Gases {
		cols = append(cols, "oxidising", "reducing", "nh3")
	}
	return cols
}

// Compensate turns a raw acquisition pass into the calibrated Reading for
// this cycle. Pure: same inputs, same Reading. Measurements that are
// disabled, or whose sensor group is absent from raw, stay absent in the
// result rather than becoming zero.
func Compensate(raw sample.Raw, opts Options) reading.Reading {
	r := reading.Reading{Timestamp: raw.Time}

	if raw.Climate != nil {
		if opts.Temperature {
			t := raw.Climate.Temperature
			if opts.CompensateTemperature {
				t = t - (raw.CPUTemperature-t)/opts.Factor
			}
			r.Temperature = reading.Float(Round(t, opts.Precision))
		}
		if opts.Humidity {
			r.Humidity = reading.Float(Round(raw.Climate.Humidity, opts.Precision))
		}
		if opts.Pressure {
			r.Pressure = reading.Float(Round(raw.Climate.Pressure, opts.Precision))
		}
	}

	if raw.Particulate != nil {
		if opts.PM25 {
			r.PM25 = reading.Float(Round(raw.Particulate.PM25, opts.Precision))
		}
		if opts.PM10 {
			r.PM10 = reading.Float(Round(raw.Particulate.PM10, opts.Precision))
		}
	}

	if raw.Gas != nil && opts.Gases {
		// Gas channels arrive in ohms, the record carries kΩ.
		r.Oxidising = reading.Float(Round(raw.Gas.Oxidising/1000, opts.Precision))
		r.Reducing = reading.Float(Round(raw.Gas.Reducing/1000, opts.Precision))
		r.NH3 = reading.Float(Round(raw.Gas.NH3/1000, opts.Precision))
	}

	if opts.CPUTemperature {
		r.CPUTemperature = reading.Float(Round(raw.CPUTemperature, opts.Precision))
	}

	return r
}

// Round rounds v to dp decimal places, half away from zero.
func Round(v float64, dp int) float64 {
	p := math.Pow10(dp)
	return math.Round(v*p) / p
}
