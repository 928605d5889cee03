// Package loki ships log lines to Loki's push API in the background so the
// hot path never blocks on log delivery.
package loki

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	batchSize     = 20
	flushInterval = time.Second
	pushPath      = "/loki/api/v1/push"
)

type pushPayload struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Writer implements io.Writer. Lines are buffered and pushed either when the
// batch fills up or on the flush ticker, whichever comes first.
type Writer struct {
	url    string
	job    string
	client *http.Client

	mu      sync.Mutex
	pending [][2]string

	done chan struct{}
}

// NewWriter returns nil when url or job is empty, which callers treat as
// "Loki disabled".
func NewWriter(url, job string) *Writer {
	if url == "" || job == "" {
		return nil
	}
	w := &Writer{
		url:     strings.TrimSuffix(url, "/") + pushPath,
		job:     job,
		client:  &http.Client{Timeout: 5 * time.Second},
		pending: make([][2]string, 0, batchSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	full := false
	w.mu.Lock()
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.pending = append(w.pending, [2]string{now, string(line)})
	}
	full = len(w.pending) >= batchSize
	w.mu.Unlock()
	if full {
		w.flush()
	}
	return len(p), nil
}

func (w *Writer) run() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	values := w.pending
	w.pending = make([][2]string, 0, batchSize)
	w.mu.Unlock()

	payload := pushPayload{Streams: []stream{{
		Stream: map[string]string{"job": w.job},
		Values: values,
	}}}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Close stops the background flusher and drains what is still buffered.
func (w *Writer) Close() error {
	close(w.done)
	w.flush()
	return nil
}
