// Package logwatch follows the proxy's JSON access log and broadcasts
// parsed entries on the event bus for live request views.
package logwatch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hpcloud/tail"
	"github.com/sitedock/sitedock/pkg/events"
)

// AccessEntry is one request handled by the proxy, as logged by the
// embedded Caddy engine.
type AccessEntry struct {
	Level    string  `json:"level"`
	Ts       float64 `json:"ts"`
	Msg      string  `json:"msg"`
	Status   int     `json:"status"`
	Size     int     `json:"size"`
	Duration float64 `json:"duration"`
	Request  struct {
		RemoteIP string `json:"remote_ip"`
		Proto    string `json:"proto"`
		Method   string `json:"method"`
		Host     string `json:"host"`
		URI      string `json:"uri"`
	} `json:"request"`
}

type Watcher struct {
	LogPath string
	Bus     *events.Bus
	Tail    *tail.Tail
}

func New(bus *events.Bus, logPath string) *Watcher {
	return &Watcher{
		LogPath: logPath,
		Bus:     bus,
	}
}

// Start begins following the access log from its current end. The log
// may be rotated by the proxy; the watcher re-opens it transparently.
func (w *Watcher) Start() error {
	// Ensure the file exists so tail doesn't error before the proxy's
	// first request.
	if _, err := os.Stat(w.LogPath); os.IsNotExist(err) {
		os.WriteFile(w.LogPath, []byte(""), 0644)
	}

	t, err := tail.TailFile(w.LogPath, tail.Config{
		Follow: true,
		ReOpen: true,
		Poll:   true,
		Location: &tail.SeekInfo{
			Offset: 0,
			Whence: io.SeekEnd,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to tail access log: %w", err)
	}

	w.Tail = t

	go func() {
		for line := range t.Lines {
			if line.Text == "" {
				continue
			}

			var entry AccessEntry
			if err := json.Unmarshal([]byte(line.Text), &entry); err != nil {
				continue
			}

			w.Bus.Publish(events.Event{
				Type:    events.AccessLogEntry,
				Payload: entry,
			})
		}
	}()

	return nil
}

func (w *Watcher) Stop() {
	if w.Tail != nil {
		w.Tail.Stop()
		w.Tail.Cleanup()
	}
}
