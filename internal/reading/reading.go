package reading

import "time"

// Reading is a single calibrated snapshot of the monitor's sensors.
// Optional fields are pointers so a disabled measurement stays absent
// instead of collapsing to zero. A Reading is never mutated after
// construction; every cycle builds a fresh one.
type Reading struct {
	Temperature    *float64 `json:"temperature,omitempty"`     // °C
	Humidity       *float64 `json:"humidity,omitempty"`        // %
	Pressure       *float64 `json:"pressure,omitempty"`        // hPa
	CPUTemperature *float64 `json:"cpu_temperature,omitempty"` // °C
	PM25           *float64 `json:"pm2_5,omitempty"`           // µg/m³
	PM10           *float64 `json:"pm10,omitempty"`            // µg/m³
	Oxidising      *float64 `json:"oxidising,omitempty"`       // kΩ
	Reducing       *float64 `json:"reducing,omitempty"`        // kΩ
	NH3            *float64 `json:"nh3,omitempty"`             // kΩ

	Timestamp time.Time `json:"timestamp"`
}

// Field is one populated measurement of a Reading, carrying the names it
// goes by on every egress path: Name is the aggregation API value type
// ("P1", "P2", "temperature", ...), Column the local store column.
type Field struct {
	Name        string
	Column      string
	Particulate bool
	Value       float64
}

// Fields returns the populated fields in canonical order. The same
// enumeration drives the store schema, the remote payload and the log
// line, so the three can never disagree about which measurements exist.
func (r Reading) Fields() []Field {
	out := make([]Field, 0, 9)
	add := func(v *float64, name, column string, pm bool) {
		if v != nil {
			out = append(out, Field{Name: name, Column: column, Particulate: pm, Value: *v})
		}
	}

	add(r.Temperature, "temperature", "temperature", false)
	add(r.Humidity, "humidity", "humidity", false)
	add(r.Pressure, "pressure", "pressure", false)
	add(r.CPUTemperature, "cpu_temperature", "cpu_temperature", false)
	add(r.PM25, "P2", "pm2_5", true)
	add(r.PM10, "P1", "pm10", true)
	add(r.Oxidising, "oxidising", "oxidising", false)
	add(r.Reducing, "reducing", "reducing", false)
	add(r.NH3, "nh3", "nh3", false)

	return out
}

// HasParticulate reports whether any particulate field is populated.
func (r Reading) HasParticulate() bool {
	return r.PM25 != nil || r.PM10 != nil
}

// Float returns a pointer to v, for building Readings field by field.
func Float(v float64) *float64 {
	return &v
}
