package display

import (
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// ST7735 command set (the subset this panel needs).
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdINVON   = 0x21
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A
)

// The 0.96" 160x80 panel maps into the controller's RAM with an offset.
const (
	st7735Width     = 160
	st7735Height    = 80
	st7735ColOffset = 1
	st7735RowOffset = 26
)

// Raw SPI writes are capped; frames are pushed in chunks.
const spiChunk = 4096

// ST7735 drives the 160x80 SPI LCD. Register-level: there is no driver for
// this controller in periph's device tree, so the init sequence and frame
// push live here.
type ST7735 struct {
	port      spi.PortCloser
	conn      spi.Conn
	dc        gpio.PinOut
	backlight gpio.PinOut
	buf       []byte
}

// NewST7735 opens the SPI port and brings the panel out of reset. dcPin
// selects command vs data; backlightPin gates the LED rail.
func NewST7735(spiPort, dcPin, backlightPin string) (*ST7735, error) {
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("display SPI open %s: %w", spiPort, err)
	}

	conn, err := port.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("display SPI connect: %w", err)
	}

	dc := gpioreg.ByName(dcPin)
	if dc == nil {
		port.Close()
		return nil, fmt.Errorf("display DC pin %q not found", dcPin)
	}
	bl := gpioreg.ByName(backlightPin)
	if bl == nil {
		port.Close()
		return nil, fmt.Errorf("display backlight pin %q not found", backlightPin)
	}

	d := &ST7735{
		port:      port,
		conn:      conn,
		dc:        dc,
		backlight: bl,
		buf:       make([]byte, st7735Width*st7735Height*2),
	}

	if err := d.init(); err != nil {
		port.Close()
		return nil, err
	}
	if err := d.SetBacklight(true); err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func (d *ST7735) init() error {
	steps := []struct {
		cmd   byte
		data  []byte
		delay time.Duration
	}{
		{cmd: cmdSWRESET, delay: 150 * time.Millisecond},
		{cmd: cmdSLPOUT, delay: 500 * time.Millisecond},
		{cmd: cmdCOLMOD, data: []byte{0x05}}, // 16-bit RGB565
		{cmd: cmdMADCTL, data: []byte{0x68}}, // landscape, BGR order
		{cmd: cmdINVON},                      // this panel ships inverted
		{cmd: cmdDISPON, delay: 100 * time.Millisecond},
	}

	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return fmt.Errorf("display init (cmd 0x%02X): %w", s.cmd, err)
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
	}
	return nil
}

func (d *ST7735) Bounds() image.Rectangle {
	return image.Rect(0, 0, st7735Width, st7735Height)
}

// Draw converts img to RGB565 and pushes the full frame.
func (d *ST7735) Draw(img image.Image) error {
	b := d.Bounds()
	i := 0
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			px := uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(bl>>11)
			d.buf[i] = byte(px >> 8)
			d.buf[i+1] = byte(px)
			i += 2
		}
	}

	if err := d.setWindow(); err != nil {
		return err
	}
	if err := d.command(cmdRAMWR); err != nil {
		return err
	}
	return d.data(d.buf)
}

func (d *ST7735) setWindow() error {
	x0 := uint16(st7735RowOffset)
	x1 := uint16(st7735RowOffset + st7735Width - 1)
	y0 := uint16(st7735ColOffset)
	y1 := uint16(st7735ColOffset + st7735Height - 1)

	if err := d.command(cmdCASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return d.command(cmdRASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
}

func (d *ST7735) SetBacklight(on bool) error {
	return d.backlight.Out(gpio.Level(on))
}

func (d *ST7735) command(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("display command 0x%02X: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	return d.data(data)
}

func (d *ST7735) data(p []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(p) > 0 {
		n := len(p)
		if n > spiChunk {
			n = spiChunk
		}
		if err := d.conn.Tx(p[:n], nil); err != nil {
			return fmt.Errorf("display data write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

func (d *ST7735) Close() error {
	return d.port.Close()
}
