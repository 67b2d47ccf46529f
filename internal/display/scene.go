package display

// SceneCount is the number of scenes the display cycles through:
// particulate/temperature, humidity/pressure, gases.
const SceneCount = 3

// DefaultProximityThreshold is the raw LTR-559 proximity count above which
// a hand is considered to be over the sensor.
const DefaultProximityThreshold = 1500

// SceneState cycles the current scene on discrete proximity triggers. It
// starts at scene 0 and lives for the whole process; only the main loop
// touches it. There is no time-based auto-advance.
type SceneState struct {
	scene     int
	count     int
	threshold float64
	held      bool
}

func NewSceneState(count int, threshold float64) *SceneState {
	if count <= 0 {
		count = SceneCount
	}
	if threshold <= 0 {
		threshold = DefaultProximityThreshold
	}
	return &SceneState{count: count, threshold: threshold}
}

// Advance feeds one proximity measurement into the state machine and
// reports whether the scene changed. A value above the threshold advances
// exactly one scene, wrapping after the last; the trigger must release
// (drop below the threshold) before it can fire again, so holding a hand
// over the sensor does not spin through scenes every tick.
func (s *SceneState) Advance(proximity float64) bool {
	if proximity <= s.threshold {
		s.held = false
		return false
	}
	if s.held {
		return false
	}
	s.held = true
	s.scene = (s.scene + 1) % s.count
	return true
}

// Scene returns the current scene index in [0, count).
func (s *SceneState) Scene() int {
	return s.scene
}
