package cyrelog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// LokiConfig configures the Loki HTTP batch sink.
type LokiConfig struct {
	Endpoint      string
	Labels        map[string]string
	BatchSize     int
	FlushInterval time.Duration
}

// LokiWriter batches log lines and pushes them to a Loki endpoint on a
// timer or when the batch fills, mirroring the teacher's push-API batching
// in internal/log/loki.go.
type LokiWriter struct {
	cfg    LokiConfig
	client *http.Client

	mu    sync.Mutex
	batch []logEntry

	closeCh chan struct{}
	wg      sync.WaitGroup
}

type logEntry struct {
	ts   time.Time
	line string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

// NewLokiWriter starts the background flush loop and returns a writer ready
// to be layered into a MultiWriter.
func NewLokiWriter(cfg LokiConfig) (*LokiWriter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("cyrelog: loki endpoint required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}

	w := &LokiWriter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 5 * time.Second},
		closeCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Write implements io.Writer; each call is one queued log line.
func (w *LokiWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.batch = append(w.batch, logEntry{ts: time.Now(), line: string(p)})
	full := len(w.batch) >= w.cfg.BatchSize
	w.mu.Unlock()

	if full {
		w.flush()
	}
	return len(p), nil
}

func (w *LokiWriter) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flush()
		case <-w.closeCh:
			w.flush()
			return
		}
	}
}

func (w *LokiWriter) flush() {
	w.mu.Lock()
	if len(w.batch) == 0 {
		w.mu.Unlock()
		return
	}
	entries := w.batch
	w.batch = nil
	w.mu.Unlock()

	values := make([][2]string, len(entries))
	for i, e := range entries {
		values[i] = [2]string{fmt.Sprintf("%d", e.ts.UnixNano()), e.line}
	}

	req := lokiPushRequest{Streams: []lokiStream{{Stream: w.cfg.Labels, Values: values}}}
	body, err := json.Marshal(req)
	if err != nil {
		return
	}

	resp, err := w.client.Post(w.cfg.Endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Close stops the flush loop after a final flush.
func (w *LokiWriter) Close() error {
	close(w.closeCh)
	w.wg.Wait()
	return nil
}
