package sensors

import "github.com/relabs-tech/enviro_monitor/internal/sample"

// The pipeline depends on these capability interfaces only; the concrete
// types in this package are one set of providers (BME280, PMS5003,
// MICS-6814 behind an ADS1015, LTR-559), tests bring their own.

type ClimateReader interface {
	ReadClimate() (sample.Climate, error)
}

type ParticulateReader interface {
	ReadParticulate() (sample.Particulate, error)
}

type GasReader interface {
	ReadGas() (sample.Gas, error)
}

type ProximityReader interface {
	ReadProximity() (float64, error)
}

// Resetter is implemented by sensors that can be power-cycled in place.
// After a transient read fault the acquirer resets once and retries once.
type Resetter interface {
	Reset() error
}
