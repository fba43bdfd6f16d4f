// Package telemetry is the append-only JSONL log, the bounded watcher
// feed, and the SSE transport for live dashboards (C6). The JSONL log
// is canonical (§4.6); the sqlite mirror and watcher feed are
// best-effort conveniences layered on top.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
)

// SchemaVersion is embedded in every telemetry record so a reader can
// tell old and new record shapes apart (§4.6).
const SchemaVersion = 1

// RunRecord is one append to the run log (§4.6 "Run records").
type RunRecord struct {
	SchemaVersion   int             `json:"schema_version"`
	Timestamp       string          `json:"timestamp"`
	Source          string          `json:"source"`
	Scenario        string          `json:"scenario"`
	Solver          string          `json:"solver"`
	Seed            int64           `json:"seed"`
	Iterations      int             `json:"iterations"`
	Config          json.RawMessage `json:"config"`
	Objective       float64         `json:"objective"`
	KPIs            json.RawMessage `json:"kpis"`
	OperatorsConfig json.RawMessage `json:"operators_config"`
	OperatorsStats  json.RawMessage `json:"operators_stats"`
	TimeLimitReached bool           `json:"time_limit_reached"`
	RepairUsageAlert bool           `json:"repair_usage_alert"`
}

// StepRecord is one append to a run's sibling step log (§4.6 "Step
// records"). Lines within one run appear in monotonically
// non-decreasing iteration order (§5 ordering guarantee).
type StepRecord struct {
	SchemaVersion    int     `json:"schema_version"`
	RunID            string  `json:"run_id"`
	Iteration        int     `json:"iteration"`
	Best             float64 `json:"best"`
	Current          float64 `json:"current"`
	RollingMean      float64 `json:"rolling_mean"`
	Temperature      float64 `json:"temperature"`
	DeltaBest        float64 `json:"delta_best"`
	AcceptanceWindow float64 `json:"acceptance_window"`
	Operator         string  `json:"operator"`
}

// SummaryRecord is a sweep-level aggregate (§4.6 "Summary records").
type SummaryRecord struct {
	SchemaVersion int     `json:"schema_version"`
	Algorithm     string  `json:"algorithm"`
	Scenario      string  `json:"scenario"`
	BestObjective float64 `json:"best_objective"`
	Runs          int     `json:"runs"`
}

// Writer owns one append-only JSONL file. Per §5 "telemetry writers
// serialise at file granularity", records are submitted through a
// buffered channel drained by a single goroutine that flushes after
// every line, so concurrent solvers never interleave partial writes.
type Writer struct {
	logger *log.Logger

	mu     sync.Mutex
	f      *os.File
	bw     *bufio.Writer
	submit chan any
	done   chan struct{}
}

// NewWriter opens (creating/appending to) path and starts the writer
// goroutine. logger defaults to log.Default() when nil.
func NewWriter(path string, logger *log.Logger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &Writer{
		logger: logger,
		f:      f,
		bw:     bufio.NewWriter(f),
		submit: make(chan any, 256),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Writer) run() {
	defer close(w.done)
	for rec := range w.submit {
		w.writeLine(rec)
	}
}

func (w *Writer) writeLine(rec any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(rec)
	if err != nil {
		w.logger.Printf("[telemetry] write failed: %v", err)
		return
	}
	if _, err := w.bw.Write(data); err != nil {
		w.logger.Printf("[telemetry] write failed: %v", err)
		return
	}
	if _, err := w.bw.WriteString("\n"); err != nil {
		w.logger.Printf("[telemetry] write failed: %v", err)
		return
	}
	if err := w.bw.Flush(); err != nil {
		w.logger.Printf("[telemetry] write failed: %v", err)
	}
}

// Submit enqueues rec for append. Best-effort: a full buffer drops the
// record with a logged warning rather than blocking the solver (§7,
// §1.2 "Telemetry writes are best-effort").
func (w *Writer) Submit(rec any) {
	select {
	case w.submit <- rec:
	default:
		w.logger.Printf("[telemetry] write failed: buffer full, dropping record")
	}
}

// Close drains pending submissions and closes the underlying file.
func (w *Writer) Close() error {
	close(w.submit)
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}
