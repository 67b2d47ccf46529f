package sensors

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildFrame assembles a valid 32-byte PMS5003 frame from 13 data words.
func buildFrame(words [13]uint16) []byte {
	frame := make([]byte, pmsFrameLen)
	frame[0], frame[1] = pmsMagic1, pmsMagic2
	binary.BigEndian.PutUint16(frame[2:], 28)
	for i, w := range words {
		binary.BigEndian.PutUint16(frame[4+2*i:], w)
	}
	var sum uint16
	for _, b := range frame[:pmsFrameLen-2] {
		sum += uint16(b)
	}
	binary.BigEndian.PutUint16(frame[pmsFrameLen-2:], sum)
	return frame
}

func TestDecodeFrame(t *testing.T) {
	var words [13]uint16
	words[0] = 3 // PM1.0 (unused)
	words[1] = 4 // PM2.5
	words[2] = 7 // PM10

	got, err := decodeFrame(buildFrame(words))
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if got.PM25 != 4 {
		t.Errorf("PM2.5 = %v, want 4", got.PM25)
	}
	if got.PM10 != 7 {
		t.Errorf("PM10 = %v, want 7", got.PM10)
	}
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	frame := buildFrame([13]uint16{0: 1, 1: 2, 2: 3})
	frame[6] ^= 0xFF // corrupt a data byte, keep the stored checksum

	_, err := decodeFrame(frame)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("err = %v, want ErrChecksum", err)
	}
	if !IsTransient(err) {
		t.Error("checksum faults must be transient (reset-and-retry-able)")
	}
}

func TestDecodeFrameWrongLength(t *testing.T) {
	if _, err := decodeFrame(make([]byte, 10)); err == nil {
		t.Error("expected error for truncated frame")
	}
}

func TestIsTransientPlainError(t *testing.T) {
	if IsTransient(errors.New("device gone")) {
		t.Error("arbitrary errors are not transient")
	}
}

func TestParseSerial(t *testing.T) {
	cpuinfo := strings.NewReader(`processor	: 0
model name	: ARMv7 Processor rev 4 (v7l)
Hardware	: BCM2835
Revision	: a020d3
Serial		: 00000000abcdef01
Model		: Raspberry Pi 3 Model B Plus Rev 1.3
`)
	id, err := parseSerial(cpuinfo)
	if err != nil {
		t.Fatalf("parseSerial: %v", err)
	}
	if id != "raspi-00000000abcdef01" {
		t.Errorf("id = %q", id)
	}
}

func TestParseSerialMissing(t *testing.T) {
	if _, err := parseSerial(strings.NewReader("processor : 0\n")); err == nil {
		t.Error("expected error when no serial line present")
	}
}

func TestCPUTempRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(path, []byte("48312\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &CPUTemp{path: path}
	got, err := c.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 48.312 {
		t.Errorf("cpu temp = %v, want 48.312", got)
	}
}

func TestDividerResistance(t *testing.T) {
	// Mid-rail reading: v/(vref-v) = 1, so the sensor matches the pull-up.
	if got := dividerResistance(1.65); got != gasPullupOhm {
		t.Errorf("mid-rail resistance = %v, want %v", got, gasPullupOhm)
	}
	if got := dividerResistance(0); got != 0 {
		t.Errorf("zero volts -> %v, want 0", got)
	}
	if got := dividerResistance(3.4); !math.IsInf(got, 1) {
		t.Errorf("above-rail reading = %v, want +Inf", got)
	}
}
