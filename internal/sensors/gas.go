package sensors

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"

	"github.com/relabs-tech/enviro_monitor/internal/sample"
)

// The MICS-6814 has no digital interface; its three resistive channels are
// read through an ADS1015 ADC, each forming a divider against a 56 kΩ
// pull-up off the 3.3 V rail.
const (
	gasVRef      = 3.3
	gasPullupOhm = 56000.0
)

type MICS6814 struct {
	oxidising ads1x15.PinADC
	reducing  ads1x15.PinADC
	nh3       ads1x15.PinADC
}

func NewMICS6814(bus i2c.Bus) (*MICS6814, error) {
	adc, err := ads1x15.NewADS1015(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("gas ADC init: %w", err)
	}

	pin := func(ch ads1x15.Channel) (ads1x15.PinADC, error) {
		return adc.PinForChannel(ch, 6144*physic.MilliVolt, 1600*physic.Hertz, ads1x15.SaveEnergy)
	}

	m := &MICS6814{}
	if m.oxidising, err = pin(ads1x15.Channel0); err != nil {
		return nil, fmt.Errorf("gas oxidising channel: %w", err)
	}
	if m.reducing, err = pin(ads1x15.Channel1); err != nil {
		return nil, fmt.Errorf("gas reducing channel: %w", err)
	}
	if m.nh3, err = pin(ads1x15.Channel2); err != nil {
		return nil, fmt.Errorf("gas NH3 channel: %w", err)
	}
	return m, nil
}

// ReadGas samples all three channels and converts each to the sense
// resistance in ohms.
func (m *MICS6814) ReadGas() (sample.Gas, error) {
	ox, err := readResistance(m.oxidising)
	if err != nil {
		return sample.Gas{}, fmt.Errorf("gas oxidising read: %w", err)
	}
	red, err := readResistance(m.reducing)
	if err != nil {
		return sample.Gas{}, fmt.Errorf("gas reducing read: %w", err)
	}
	nh3, err := readResistance(m.nh3)
	if err != nil {
		return sample.Gas{}, fmt.Errorf("gas NH3 read: %w", err)
	}

	return sample.Gas{Oxidising: ox, Reducing: red, NH3: nh3}, nil
}

func readResistance(pin ads1x15.PinADC) (float64, error) {
	s, err := pin.Read()
	if err != nil {
		return 0, err
	}
	v := float64(s.V) / float64(physic.Volt)
	return dividerResistance(v), nil
}

// dividerResistance solves the pull-up divider for the sensor-side
// resistance. A reading at or above the rail means the channel is
// floating; report it as unmeasurably high rather than dividing by zero.
func dividerResistance(v float64) float64 {
	if v >= gasVRef {
		return math.Inf(1)
	}
	if v <= 0 {
		return 0
	}
	return v / (gasVRef - v) * gasPullupOhm
}

func (m *MICS6814) Halt() error {
	for _, p := range []ads1x15.PinADC{m.oxidising, m.reducing, m.nh3} {
		if err := p.Halt(); err != nil {
			return err
		}
	}
	return nil
}
