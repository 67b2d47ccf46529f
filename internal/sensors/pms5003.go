package sensors

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/enviro_monitor/internal/sample"
)

// PMS5003 frame layout: two magic bytes, a 16-bit payload length, thirteen
// big-endian words, a 16-bit checksum over everything before it.
const (
	pmsMagic1   = 0x42
	pmsMagic2   = 0x4D
	pmsFrameLen = 32
)

// ErrChecksum marks a corrupted frame. It is transient: a reset and a
// fresh read usually clear it.
var ErrChecksum = errors.New("PMS5003 frame checksum mismatch")

// IsTransient reports whether a particulate read fault is worth one
// reset-and-retry before the cycle gives up on it.
func IsTransient(err error) bool {
	if errors.Is(err, ErrChecksum) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// PMS5003 reads the particulate sensor over its UART.
type PMS5003 struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	enable gpio.PinOut // nil when no enable line is wired
}

// NewPMS5003 opens the sensor's serial device. enablePin may be empty; when
// set it must name the GPIO driving the sensor's enable line, which Reset
// pulses to power-cycle the sensor in place.
func NewPMS5003(device, enablePin string) (*PMS5003, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("PMS5003 serial open %s: %w", device, err)
	}

	p := &PMS5003{port: port, reader: bufio.NewReader(port)}

	if enablePin != "" {
		pin := gpioreg.ByName(enablePin)
		if pin == nil {
			port.Close()
			return nil, fmt.Errorf("PMS5003 enable pin %q not found", enablePin)
		}
		if err := pin.Out(gpio.High); err != nil {
			port.Close()
			return nil, fmt.Errorf("PMS5003 enable: %w", err)
		}
		p.enable = pin
	}

	return p, nil
}

// ReadParticulate returns the next standard (CF=1) PM2.5/PM10 pair.
func (p *PMS5003) ReadParticulate() (sample.Particulate, error) {
	frame, err := p.readFrame()
	if err != nil {
		return sample.Particulate{}, err
	}
	return decodeFrame(frame)
}

// readFrame scans the stream for the frame magic, then pulls the rest of
// the fixed-size frame.
func (p *PMS5003) readFrame() ([]byte, error) {
	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("PMS5003 read: %w", err)
		}
		if b != pmsMagic1 {
			continue
		}
		b, err = p.reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("PMS5003 read: %w", err)
		}
		if b != pmsMagic2 {
			continue
		}

		frame := make([]byte, pmsFrameLen)
		frame[0], frame[1] = pmsMagic1, pmsMagic2
		if _, err := io.ReadFull(p.reader, frame[2:]); err != nil {
			return nil, fmt.Errorf("PMS5003 read frame body: %w", err)
		}
		return frame, nil
	}
}

func decodeFrame(frame []byte) (sample.Particulate, error) {
	if len(frame) != pmsFrameLen {
		return sample.Particulate{}, fmt.Errorf("PMS5003 frame length %d", len(frame))
	}

	var sum uint16
	for _, b := range frame[:pmsFrameLen-2] {
		sum += uint16(b)
	}
	if sum != binary.BigEndian.Uint16(frame[pmsFrameLen-2:]) {
		return sample.Particulate{}, ErrChecksum
	}

	// Words 0..2 after the length are PM1.0/PM2.5/PM10 at CF=1.
	return sample.Particulate{
		PM25: float64(binary.BigEndian.Uint16(frame[6:8])),
		PM10: float64(binary.BigEndian.Uint16(frame[8:10])),
	}, nil
}

// Reset power-cycles the sensor via its enable line and drops whatever is
// left in the serial buffer, so the next read starts on a clean stream.
func (p *PMS5003) Reset() error {
	if p.enable != nil {
		if err := p.enable.Out(gpio.Low); err != nil {
			return fmt.Errorf("PMS5003 reset: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
		if err := p.enable.Out(gpio.High); err != nil {
			return fmt.Errorf("PMS5003 reset: %w", err)
		}
	}
	p.reader.Reset(p.port)
	return nil
}

func (p *PMS5003) Close() error {
	return p.port.Close()
}
