package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/relabs-tech/enviro_monitor/internal/sample"
)

// DefaultBME280Addr is where the breakout sits on the I2C bus.
const DefaultBME280Addr = 0x76

// BME280 reads temperature, pressure and humidity from the combined
// climate sensor.
type BME280 struct {
	dev *bmxx80.Dev
}

func NewBME280(bus i2c.Bus, addr uint16) (*BME280, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("BME280 init at 0x%02X: %w", addr, err)
	}
	return &BME280{dev: dev}, nil
}

func (b *BME280) ReadClimate() (sample.Climate, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return sample.Climate{}, fmt.Errorf("BME280 sense: %w", err)
	}

	return sample.Climate{
		Temperature: e.Temperature.Celsius(),
		Pressure:    float64(e.Pressure) / float64(physic.Pascal) / 100.0, // Pa -> hPa
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
	}, nil
}

func (b *BME280) Halt() error {
	return b.dev.Halt()
}
