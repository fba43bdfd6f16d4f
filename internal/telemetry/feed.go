package telemetry

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the watcher feed's live-dashboard payload (§4.6 "Watcher
// feed"): a point-in-time view of one run's progress.
type Snapshot struct {
	RunID                string    `json:"run_id"`
	Best                 float64   `json:"best"`
	Current              float64   `json:"current"`
	Rolling              float64   `json:"rolling"`
	Temperature          float64   `json:"temp"`
	DeltaBest            float64   `json:"delta_best"`
	Runtime              float64   `json:"runtime"`
	CumulativeAcceptance float64   `json:"cumulative_acceptance"`
	WindowedAcceptance   float64   `json:"windowed_acceptance"`
	HistorySparkline     []float64 `json:"history_sparkline"`
}

// Feed is the bounded in-process broadcast hub behind the watcher feed,
// grounded directly on the teacher's EarningsHub (internal/api/engagement.go):
// a set of client channels, a non-blocking Broadcast, and a Subscribe
// that returns an unsubscribe func. One Feed serves one run id; a
// FeedServer keeps a Feed per active run.
type Feed struct {
	clients map[chan []byte]struct{}
}

// NewFeed creates an empty broadcast hub for one run.
func NewFeed() *Feed {
	return &Feed{clients: make(map[chan []byte]struct{})}
}

// Broadcast marshals snap and fans it out to every subscriber. A
// client whose buffer is full is skipped rather than blocking the
// solver that is driving the feed.
func (f *Feed) Broadcast(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	for ch := range f.clients {
		select {
		case ch <- data:
		default:
			// client too slow — drop this snapshot
		}
	}
}

// Subscribe registers a new client and returns its channel plus an
// unsubscribe func.
func (f *Feed) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	f.clients[ch] = struct{}{}
	return ch, func() {
		delete(f.clients, ch)
		close(ch)
	}
}

// ClientCount reports the number of currently subscribed clients.
func (f *Feed) ClientCount() int { return len(f.clients) }

// HandleSSE serves the feed over Server-Sent Events, mirroring
// EarningsHub.HandleEarningsSSE.
func (f *Feed) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, unsub := f.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// FeedServer wraps a chi router exposing one SSE route per active run
// plus /metrics, the concrete transport for §3.7 "rendering is out of
// scope": FHOPS emits the feed, nothing in this module renders it.
type FeedServer struct {
	feeds map[string]*Feed
}

// NewFeedServer creates an empty server; runs register themselves with
// RegisterRun as they start.
func NewFeedServer() *FeedServer {
	return &FeedServer{feeds: make(map[string]*Feed)}
}

// RegisterRun creates (or returns the existing) feed for runID.
func (s *FeedServer) RegisterRun(runID string) *Feed {
	if f, ok := s.feeds[runID]; ok {
		return f
	}
	f := NewFeed()
	s.feeds[runID] = f
	return f
}

// UnregisterRun drops the feed for runID once the run is complete.
func (s *FeedServer) UnregisterRun(runID string) {
	delete(s.feeds, runID)
}

// Handler builds the chi router: request-id/recover middleware per the
// teacher's Server.Handler, GET /watch/{run_id} streaming Snapshot JSON
// lines over SSE, and GET /metrics via promhttp.
func (s *FeedServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/watch/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		f, ok := s.feeds[runID]
		if !ok {
			http.Error(w, "unknown run_id", http.StatusNotFound)
			return
		}
		f.HandleSSE(w, r)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
