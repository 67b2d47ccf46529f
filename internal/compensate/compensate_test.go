package compensate

import (
	"testing"
	"time"

	"github.com/relabs-tech/enviro_monitor/internal/sample"
)

func allEnabled() Options {
	return Options{
		Temperature:           true,
		Humidity:              true,
		Pressure:              true,
		PM25:                  true,
		PM10:                  true,
		Gases:                 true,
		CompensateTemperature: true,
		Factor:                DefaultFactor,
		Precision:             2,
	}
}

func TestTemperatureCompensation(t *testing.T) {
	tests := []struct {
		name    string
		rawTemp float64
		cpuTemp float64
		factor  float64
		want    float64
	}{
		// 22 - (45-22)/2.25 = 11.7777... -> 11.78
		{"reference unit", 22.0, 45.0, 2.25, 11.78},
		// 25 - (47.5-25)/2.25 = 25 - 10 = 15
		{"exact division", 25.0, 47.5, 2.25, 15.00},
		// CPU colder than ambient pushes the estimate up.
		{"cpu cooler", 20.0, 15.5, 2.25, 22.00},
		{"custom factor", 22.0, 45.0, 4.6, 17.00},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := allEnabled()
			opts.Factor = tc.factor

			raw := sample.Raw{
				Climate:        &sample.Climate{Temperature: tc.rawTemp},
				CPUTemperature: tc.cpuTemp,
			}

			r := Compensate(raw, opts)
			if r.Temperature == nil {
				t.Fatal("expected temperature to be populated")
			}
			if *r.Temperature != tc.want {
				t.Errorf("compensated temperature = %v, want %v", *r.Temperature, tc.want)
			}
		})
	}
}

func TestCompensationDisabledKeepsRawTemperature(t *testing.T) {
	opts := allEnabled()
	opts.CompensateTemperature = false

	raw := sample.Raw{
		Climate:        &sample.Climate{Temperature: 22.456},
		CPUTemperature: 45.0,
	}

	r := Compensate(raw, opts)
	if r.Temperature == nil {
		t.Fatal("expected temperature to be populated")
	}
	if *r.Temperature != 22.46 {
		t.Errorf("temperature = %v, want 22.46 (rounded raw)", *r.Temperature)
	}
}

func TestDisabledMeasurementsStayAbsent(t *testing.T) {
	opts := allEnabled()
	opts.Humidity = false
	opts.PM10 = false
	opts.Gases = false

	raw := sample.Raw{
		Climate:     &sample.Climate{Temperature: 20, Pressure: 1013.25, Humidity: 40},
		Particulate: &sample.Particulate{PM25: 4, PM10: 7},
		Gas:         &sample.Gas{Oxidising: 12000, Reducing: 34000, NH3: 56000},
	}

	r := Compensate(raw, opts)
	if r.Humidity != nil {
		t.Errorf("humidity disabled but populated: %v", *r.Humidity)
	}
	if r.PM10 != nil {
		t.Errorf("pm10 disabled but populated: %v", *r.PM10)
	}
	if r.Oxidising != nil || r.Reducing != nil || r.NH3 != nil {
		t.Error("gases disabled but populated")
	}
	if r.PM25 == nil || *r.PM25 != 4 {
		t.Errorf("pm2.5 should still be populated, got %v", r.PM25)
	}
}

func TestAbsentSensorGroupsStayAbsent(t *testing.T) {
	r := Compensate(sample.Raw{CPUTemperature: 45}, allEnabled())

	if r.Temperature != nil || r.Pressure != nil || r.Humidity != nil {
		t.Error("climate group absent but climate fields populated")
	}
	if r.PM25 != nil || r.PM10 != nil {
		t.Error("particulate group absent but PM fields populated")
	}
	if r.CPUTemperature != nil {
		t.Error("cpu temperature not enabled but populated")
	}
}

func TestGasConvertedToKiloohms(t *testing.T) {
	opts := allEnabled()
	raw := sample.Raw{Gas: &sample.Gas{Oxidising: 12345, Reducing: 451239, NH3: 120900}}

	r := Compensate(raw, opts)
	if *r.Oxidising != 12.35 {
		t.Errorf("oxidising = %v, want 12.35", *r.Oxidising)
	}
	if *r.Reducing != 451.24 {
		t.Errorf("reducing = %v, want 451.24", *r.Reducing)
	}
	if *r.NH3 != 120.9 {
		t.Errorf("nh3 = %v, want 120.9", *r.NH3)
	}
}

func TestRoundIdempotent(t *testing.T) {
	values := []float64{11.78, 0, -3.555, 1013.2488, 99.999}
	for _, v := range values {
		once := Round(v, 2)
		twice := Round(once, 2)
		if once != twice {
			t.Errorf("Round not idempotent at %v: %v != %v", v, once, twice)
		}
	}
}

func TestRecompensatingRoundedReadingIsStable(t *testing.T) {
	opts := allEnabled()
	raw := sample.Raw{
		Climate:        &sample.Climate{Temperature: 22.0, Pressure: 1013.2488, Humidity: 41.333},
		CPUTemperature: 45.0,
		Time:           time.Unix(1700000000, 0),
	}

	first := Compensate(raw, opts)

	// Feed the already-rounded values back through: nothing may move.
	again := sample.Raw{
		Climate: &sample.Climate{
			Pressure: *first.Pressure,
			Humidity: *first.Humidity,
		},
		Time: raw.Time,
	}
	opts.Temperature = false
	opts.CompensateTemperature = false

	second := Compensate(again, opts)
	if *second.Pressure != *first.Pressure {
		t.Errorf("pressure drifted on re-rounding: %v -> %v", *first.Pressure, *second.Pressure)
	}
	if *second.Humidity != *first.Humidity {
		t.Errorf("humidity drifted on re-rounding: %v -> %v", *first.Humidity, *second.Humidity)
	}
}
