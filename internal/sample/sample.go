package sample

import "time"

// Climate is one uncalibrated reading from the climate sensor.
type Climate struct {
	Temperature float64 `json:"temp_c"`       // °C
	Pressure    float64 `json:"pressure_hpa"` // hPa
	Humidity    float64 `json:"humidity_pct"` // %
}

// Particulate is one uncalibrated reading from the particulate sensor.
type Particulate struct {
	PM25 float64 `json:"pm2_5"` // µg/m³
	PM10 float64 `json:"pm10"`  // µg/m³
}

// Gas holds the three gas-resistance channels in ohms.
type Gas struct {
	Oxidising float64 `json:"oxidising"`
	Reducing  float64 `json:"reducing"`
	NH3       float64 `json:"nh3"`
}

// Raw bundles everything one acquisition pass collected. A nil group means
// the sensor was not read this cycle (disabled or failed).
type Raw struct {
	Climate     *Climate
	Particulate *Particulate
	Gas         *Gas

	CPUTemperature float64 // °C
	Time           time.Time
}
