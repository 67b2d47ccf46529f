package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"go.uber.org/zap"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

type recordedPush struct {
	pin    string
	sensor string
	body   pushBody
}

// pushRecorder collects every submission and lets individual pins fail.
type pushRecorder struct {
	mu       sync.Mutex
	pushes   []recordedPush
	failPins map[string]int // pin -> status code to return
}

func (p *pushRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pushBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad push body: %v", err)
		}

		p.mu.Lock()
		p.pushes = append(p.pushes, recordedPush{
			pin:    r.Header.Get("X-PIN"),
			sensor: r.Header.Get("X-Sensor"),
			body:   body,
		})
		code, fail := p.failPins[r.Header.Get("X-PIN")]
		p.mu.Unlock()

		if fail {
			w.WriteHeader(code)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func newTestLuftdaten(url string) *Luftdaten {
	return NewLuftdaten(zap.NewNop(), url, "raspi-00000000abcdef01", "enviro-monitor 1.0", time.Second)
}

func TestPushBothGroups(t *testing.T) {
	is := is.New(t)

	rec := &pushRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	r := reading.Reading{
		Temperature: reading.Float(11.78),
		Humidity:    reading.Float(40.5),
		PM25:        reading.Float(4),
		PM10:        reading.Float(7),
	}

	err := newTestLuftdaten(srv.URL).Store(context.Background(), r)
	is.NoErr(err)
	is.Equal(len(rec.pushes), 2) // one submission per non-empty group

	is.Equal(rec.pushes[0].pin, "1")
	is.Equal(rec.pushes[1].pin, "11")
	for _, p := range rec.pushes {
		is.Equal(p.sensor, "raspi-00000000abcdef01")
		is.Equal(p.body.SoftwareVersion, "enviro-monitor 1.0")
	}

	is.Equal(rec.pushes[0].body.SensorDataValues, []sensorDataValue{
		{ValueType: "P2", Value: "4"},
		{ValueType: "P1", Value: "7"},
	})
	is.Equal(rec.pushes[1].body.SensorDataValues, []sensorDataValue{
		{ValueType: "temperature", Value: "11.78"},
		{ValueType: "humidity", Value: "40.5"},
	})
}

func TestPushParticulateOnly(t *testing.T) {
	is := is.New(t)

	rec := &pushRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	r := reading.Reading{PM25: reading.Float(4), PM10: reading.Float(7)}

	err := newTestLuftdaten(srv.URL).Store(context.Background(), r)
	is.NoErr(err)
	is.Equal(len(rec.pushes), 1) // empty climate group is skipped, not failed
	is.Equal(rec.pushes[0].pin, "1")
}

func TestPushEmptyReading(t *testing.T) {
	is := is.New(t)

	rec := &pushRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	err := newTestLuftdaten(srv.URL).Store(context.Background(), reading.Reading{})
	is.NoErr(err) // nothing to submit is vacuous success
	is.Equal(len(rec.pushes), 0)
}

func TestFailedClimatePushFailsTheSink(t *testing.T) {
	is := is.New(t)

	// Particulate succeeds, climate is rejected. Climate content was
	// present, so the sink as a whole must fail: the climate group is
	// optional for success only when it is entirely absent.
	rec := &pushRecorder{failPins: map[string]int{"11": http.StatusBadGateway}}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	r := reading.Reading{
		Temperature: reading.Float(11.78),
		PM25:        reading.Float(4),
		PM10:        reading.Float(7),
	}

	err := newTestLuftdaten(srv.URL).Store(context.Background(), r)
	is.True(err != nil)
	is.Equal(ClassOf(err), ClassBadResponse)
	is.Equal(len(rec.pushes), 2) // both groups were still attempted
}

func TestFailedParticulatePushStillAttemptsClimate(t *testing.T) {
	is := is.New(t)

	rec := &pushRecorder{failPins: map[string]int{"1": http.StatusInternalServerError}}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	r := reading.Reading{
		Temperature: reading.Float(20),
		PM25:        reading.Float(4),
	}

	err := newTestLuftdaten(srv.URL).Store(context.Background(), r)
	is.True(err != nil)
	is.Equal(len(rec.pushes), 2)
}

func TestPushTimeoutClassified(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	l := NewLuftdaten(zap.NewNop(), srv.URL, "raspi-1", "v", 20*time.Millisecond)
	err := l.Store(context.Background(), reading.Reading{PM25: reading.Float(1)})
	is.True(err != nil)
	is.Equal(ClassOf(err), ClassTimeout)
}

func TestPushConnectionFailureClassified(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nobody listening

	err := newTestLuftdaten(srv.URL).Store(context.Background(), reading.Reading{PM10: reading.Float(1)})
	is.True(err != nil)
	is.Equal(ClassOf(err), ClassTransient)
}
