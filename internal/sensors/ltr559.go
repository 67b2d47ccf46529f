package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// LTR-559 registers. There is no periph driver for this part; the handful
// of registers the monitor needs are driven directly.
const (
	ltr559Addr = 0x23

	regALSControl = 0x80
	regPSControl  = 0x81
	regPSLED      = 0x82
	regPSPulses   = 0x83
	regPSMeasRate = 0x84
	regPartID     = 0x86
	regPSData0    = 0x8D

	ltr559PartID = 0x92 // part 0x09, revision 0x02
)

// LTR559 reads the proximity channel of the light/proximity sensor. The
// proximity count is what cycles the display scenes.
type LTR559 struct {
	dev i2c.Dev
}

func NewLTR559(bus i2c.Bus) (*LTR559, error) {
	l := &LTR559{dev: i2c.Dev{Bus: bus, Addr: ltr559Addr}}

	id, err := l.readReg(regPartID)
	if err != nil {
		return nil, fmt.Errorf("LTR559 probe: %w", err)
	}
	if id != ltr559PartID {
		return nil, fmt.Errorf("LTR559 probe: unexpected part id 0x%02X", id)
	}

	init := []struct{ reg, val byte }{
		{regPSLED, 0x7B},      // 30 kHz pulse, 100% duty, 50 mA
		{regPSPulses, 0x01},
		{regPSMeasRate, 0x02}, // 100 ms repeat rate
		{regPSControl, 0x03},  // active mode
		{regALSControl, 0x01}, // ALS active, gain 1x
	}
	for _, s := range init {
		if err := l.writeReg(s.reg, s.val); err != nil {
			return nil, fmt.Errorf("LTR559 init reg 0x%02X: %w", s.reg, err)
		}
	}
	return l, nil
}

// ReadProximity returns the raw 11-bit proximity count; bigger means
// closer.
func (l *LTR559) ReadProximity() (float64, error) {
	var buf [2]byte
	if err := l.dev.Tx([]byte{regPSData0}, buf[:]); err != nil {
		return 0, fmt.Errorf("LTR559 proximity read: %w", err)
	}
	ps := uint16(buf[1]&0x07)<<8 | uint16(buf[0])
	return float64(ps), nil
}

func (l *LTR559) readReg(reg byte) (byte, error) {
	var buf [1]byte
	if err := l.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (l *LTR559) writeReg(reg, val byte) error {
	return l.dev.Tx([]byte{reg, val}, nil)
}
