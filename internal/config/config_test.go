package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
)

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)

	cfg, err := Load("")
	is.NoErr(err)

	is.Equal(cfg.MeasurementsPerMinute, 2.0)
	is.Equal(cfg.Precision, 2)
	is.Equal(cfg.StartAtMultipleOf, 5)
	is.Equal(cfg.Compensation.Factor, 2.25)
	is.True(cfg.Compensation.Enabled)
	is.True(cfg.Store.Enabled)
	is.True(!cfg.Luftdaten.Enabled)
	is.Equal(cfg.Hardware.BME280Addr, uint16(0x76))
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "monitor.yaml")
	err := os.WriteFile(path, []byte(`
name: bedroom
measurementsPerMinute: 6
compensation:
  factor: 1.8
`), 0o644)
	is.NoErr(err)

	t.Setenv("TEMP_COMPENSATION_FACTOR", "3.5")

	cfg, err := Load(path)
	is.NoErr(err)
	is.Equal(cfg.Name, "bedroom")
	is.Equal(cfg.MeasurementsPerMinute, 6.0)
	is.Equal(cfg.Compensation.Factor, 3.5) // environment wins over file
}

func TestValidateRejectsBadValues(t *testing.T) {
	is := is.New(t)

	cfg, err := Load("")
	is.NoErr(err)

	bad := *cfg
	bad.MeasurementsPerMinute = 0
	is.True(bad.Validate() != nil)

	bad = *cfg
	bad.Precision = -1
	is.True(bad.Validate() != nil)

	bad = *cfg
	bad.Compensation.Factor = 0
	is.True(bad.Validate() != nil)

	bad = *cfg
	bad.Measure = Measure{}
	is.True(bad.Validate() != nil)

	bad = *cfg
	bad.Store.Path = ""
	is.True(bad.Validate() != nil)

	bad = *cfg
	bad.Luftdaten.Enabled = true
	bad.Luftdaten.URL = "not a url"
	is.True(bad.Validate() != nil)
}

func TestCompensateOptionsColumns(t *testing.T) {
	is := is.New(t)

	cfg, err := Load("")
	is.NoErr(err)

	opts := cfg.CompensateOptions()
	is.True(opts.CompensateTemperature)
	is.Equal(opts.Factor, 2.25)
	is.Equal(opts.Columns(), []string{
		"temperature", "humidity", "pressure", "pm2_5", "pm10",
		"oxidising", "reducing", "nh3",
	})
}
