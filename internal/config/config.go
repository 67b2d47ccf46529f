package config

import (
	"fmt"
	"net/url"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relabs-tech/enviro_monitor/internal/compensate"
)

// Config holds all application configuration values. It is loaded once at
// startup and handed down explicitly; nothing reads configuration through
// a global.
type Config struct {
	Name string `yaml:"name" env:"MONITOR_NAME" env-default:"Enviro Monitor"`

	Measure      Measure      `yaml:"measure"`
	Compensation Compensation `yaml:"compensation"`

	// Precision is the number of decimal places every recorded value is
	// rounded to.
	Precision int `yaml:"precision" env:"PRECISION" env-default:"2"`

	// MeasurementsPerMinute sets the sampling cadence.
	MeasurementsPerMinute float64 `yaml:"measurementsPerMinute" env:"MEASUREMENTS_PER_MINUTE" env-default:"2"`

	// StartAtMultipleOf delays the first sample until the wall-clock minute
	// is a multiple of this value, so concurrent units line up on the same
	// boundaries. InstantStart skips the gate.
	StartAtMultipleOf int  `yaml:"startAtMultipleOf" env:"START_AT_MULTIPLE_OF" env-default:"5"`
	InstantStart      bool `yaml:"instantStart" env:"INSTANT_START" env-default:"false"`

	// ConfirmStart waits for the operator to press enter before sampling
	// begins.
	ConfirmStart bool `yaml:"confirmStart" env:"CONFIRM_START" env-default:"false"`

	Store     Store     `yaml:"store"`
	Luftdaten Luftdaten `yaml:"luftdaten"`
	MQTT      MQTT      `yaml:"mqtt"`
	Display   Display   `yaml:"display"`
	Hardware  Hardware  `yaml:"hardware"`

	// StatusAddr enables the JSON status endpoint when non-empty,
	// e.g. ":8080".
	StatusAddr string `yaml:"statusAddr" env:"STATUS_ADDR" env-default:""`

	Logging Logging `yaml:"logging"`
}

// Measure selects which measurements are acquired and recorded. A disabled
// measurement is absent everywhere downstream, never zero.
type Measure struct {
	Temperature    bool `yaml:"temperature" env:"MEASURE_TEMPERATURE" env-default:"true"`
	Humidity       bool `yaml:"humidity" env:"MEASURE_HUMIDITY" env-default:"true"`
	Pressure       bool `yaml:"pressure" env:"MEASURE_PRESSURE" env-default:"true"`
	PM25           bool `yaml:"pm25" env:"MEASURE_PM25" env-default:"true"`
	PM10           bool `yaml:"pm10" env:"MEASURE_PM10" env-default:"true"`
	Gases          bool `yaml:"gases" env:"MEASURE_GASES" env-default:"true"`
	CPUTemperature bool `yaml:"cpuTemperature" env:"MEASURE_CPU_TEMPERATURE" env-default:"false"`
}

type Compensation struct {
	Enabled bool `yaml:"enabled" env:"COMPENSATE_TEMPERATURE" env-default:"true"`
	// Factor is the CPU-heat bleed-through ratio. Site-specific; refit it
	// when the unit is mounted differently than the reference build.
	Factor float64 `yaml:"factor" env:"TEMP_COMPENSATION_FACTOR" env-default:"2.25"`
}

type Store struct {
	Enabled bool   `yaml:"enabled" env:"STORE_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"STORE_PATH" env-default:"./enviro_data.db"`
}

type Luftdaten struct {
	Enabled         bool   `yaml:"enabled" env:"LUFTDATEN_ENABLED" env-default:"false"`
	URL             string `yaml:"url" env:"LUFTDATEN_URL" env-default:"https://api.sensor.community/v1/push-sensor-data/"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds" env:"LUFTDATEN_TIMEOUT_SECONDS" env-default:"5"`
	SoftwareVersion string `yaml:"softwareVersion" env:"LUFTDATEN_SOFTWARE_VERSION" env-default:"enviro-monitor 1.0.0"`
}

type MQTT struct {
	Enabled        bool   `yaml:"enabled" env:"MQTT_ENABLED" env-default:"false"`
	Broker         string `yaml:"broker" env:"MQTT_BROKER" env-default:"tcp://localhost:1883"`
	ClientID       string `yaml:"clientId" env:"MQTT_CLIENT_ID" env-default:"enviro-monitor"`
	Topic          string `yaml:"topic" env:"MQTT_TOPIC" env-default:"enviro/readings"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"MQTT_TIMEOUT_SECONDS" env-default:"5"`
}

type Display struct {
	Enabled            bool    `yaml:"enabled" env:"DISPLAY_ENABLED" env-default:"true"`
	SPIPort            string  `yaml:"spiPort" env:"DISPLAY_SPI_PORT" env-default:"SPI0.1"`
	DCPin              string  `yaml:"dcPin" env:"DISPLAY_DC_PIN" env-default:"GPIO9"`
	BacklightPin       string  `yaml:"backlightPin" env:"DISPLAY_BACKLIGHT_PIN" env-default:"GPIO12"`
	ProximityThreshold float64 `yaml:"proximityThreshold" env:"PROXIMITY_THRESHOLD" env-default:"1500"`
}

type Hardware struct {
	// I2CBus is the periph bus name; empty selects the first available bus.
	I2CBus       string `yaml:"i2cBus" env:"I2C_BUS" env-default:""`
	BME280Addr   uint16 `yaml:"bme280Addr" env:"BME280_ADDR" env-default:"118"` // 0x76
	PMSDevice    string `yaml:"pmsDevice" env:"PMS_DEVICE" env-default:"/dev/ttyAMA0"`
	PMSEnablePin string `yaml:"pmsEnablePin" env:"PMS_ENABLE_PIN" env-default:""`
}

type Logging struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// Load reads configuration from path with environment overrides. An empty
// path means environment variables and defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MeasurementsPerMinute <= 0 {
		return fmt.Errorf("measurementsPerMinute must be positive, got %v", c.MeasurementsPerMinute)
	}
	if c.Precision < 0 {
		return fmt.Errorf("precision must not be negative, got %d", c.Precision)
	}
	if c.StartAtMultipleOf < 0 || c.StartAtMultipleOf > 60 {
		return fmt.Errorf("startAtMultipleOf must be within 0..60, got %d", c.StartAtMultipleOf)
	}
	if c.Compensation.Enabled && c.Compensation.Factor == 0 {
		return fmt.Errorf("compensation factor must not be zero")
	}
	if !c.anyMeasurementEnabled() {
		return fmt.Errorf("no measurements enabled")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store path is required when the store is enabled")
	}
	if c.Luftdaten.Enabled {
		if _, err := url.ParseRequestURI(c.Luftdaten.URL); err != nil {
			return fmt.Errorf("invalid luftdaten url: %w", err)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}
	if c.Display.Enabled && (c.Display.DCPin == "" || c.Display.BacklightPin == "") {
		return fmt.Errorf("display pins are required when the display is enabled")
	}
	return nil
}

func (c *Config) anyMeasurementEnabled() bool {
	m := c.Measure
	return m.Temperature || m.Humidity || m.Pressure || m.PM25 || m.PM10 || m.Gases || m.CPUTemperature
}

// CompensateOptions maps the configuration onto the compensation engine's
// option set.
func (c *Config) CompensateOptions() compensate.Options {
	return compensate.Options{
		Temperature:           c.Measure.Temperature,
		Humidity:              c.Measure.Humidity,
		Pressure:              c.Measure.Pressure,
		PM25:                  c.Measure.PM25,
		PM10:                  c.Measure.PM10,
		Gases:                 c.Measure.Gases,
		CPUTemperature:        c.Measure.CPUTemperature,
		CompensateTemperature: c.Compensation.Enabled,
		Factor:                c.Compensation.Factor,
		Precision:             c.Precision,
	}
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}

	var zcfg zap.Config
	if c.Logging.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
