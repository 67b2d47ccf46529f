package monitor

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

// Status holds the latest reading for the JSON endpoint. The loop writes
// it after every sample; HTTP handlers only ever read a snapshot, so a
// slow client can never stall sampling.
type Status struct {
	mu   sync.RWMutex
	last reading.Reading
	have bool
}

func NewStatus() *Status {
	return &Status{}
}

// Set publishes r as the latest reading.
func (s *Status) Set(r reading.Reading) {
	s.mu.Lock()
	s.last = r
	s.have = true
	s.mu.Unlock()
}

// Handler serves the latest reading at /api/reading.
func (s *Status) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reading", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		last, have := s.last, s.have
		s.mu.RUnlock()

		if !have {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		// An encode error here means the client went away mid-write.
		_ = json.NewEncoder(w).Encode(last)
	})
	return mux
}

// Serve runs the endpoint on addr. Meant for a goroutine; it only returns
// on listener failure.
func (s *Status) Serve(logger *zap.Logger, addr string) error {
	logger.Info("status endpoint listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}
