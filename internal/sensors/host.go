package sensors

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	thermalZonePath = "/sys/class/thermal/thermal_zone0/temp"
	cpuInfoPath     = "/proc/cpuinfo"

	// The aggregation protocol expects Raspberry Pi identifiers with this
	// prefix in front of the hardware serial.
	deviceIDPrefix = "raspi-"
)

// CPUTemp reads the SoC temperature the compensation model needs.
type CPUTemp struct {
	path string
}

func NewCPUTemp() *CPUTemp {
	return &CPUTemp{path: thermalZonePath}
}

// Read returns the CPU temperature in °C.
func (c *CPUTemp) Read() (float64, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("cpu temperature: %w", err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("cpu temperature parse %q: %w", strings.TrimSpace(string(raw)), err)
	}
	return float64(milli) / 1000.0, nil
}

// DeviceID derives the remote sensor identifier from the platform serial
// number.
func DeviceID() (string, error) {
	f, err := os.Open(cpuInfoPath)
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	defer f.Close()
	return parseSerial(f)
}

func parseSerial(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Serial") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		serial := strings.TrimSpace(value)
		if serial == "" {
			continue
		}
		return deviceIDPrefix + serial, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	return "", fmt.Errorf("device id: no serial number found")
}
