package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cbodonnell/duelsync/pkg/log"
)

// maxLineSize bounds a single captured message when reading a capture back.
const maxLineSize = 1 << 20

// Entry is one captured inbound message.
type Entry struct {
	Timestamp int64  `json:"ts"`
	Topic     string `json:"topic"`
	Payload   string `json:"payload"`
}

// Recorder writes inbound broker traffic as zstd compressed JSON lines.
type Recorder struct {
	lock    sync.Mutex
	closer  io.Closer
	encoder *zstd.Encoder
	json    *json.Encoder
	now     func() time.Time
	closed  bool
}

// New writes a capture to w. Close must be called to flush it.
func New(w io.Writer) (*Recorder, error) {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	return &Recorder{
		encoder: encoder,
		json:    json.NewEncoder(encoder),
		now:     time.Now,
	}, nil
}

// Create writes a capture to a new file at path.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %v", err)
	}
	r, err := New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Capture records a message. Errors are logged; capture never fails routing.
func (r *Recorder) Capture(topic string, payload []byte) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	entry := &Entry{
		Timestamp: r.now().UnixMilli(),
		Topic:     topic,
		Payload:   string(payload),
	}
	if err := r.json.Encode(entry); err != nil {
		log.Error("Failed to capture message on %s: %v", topic, err)
	}
}

func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush capture: %v", err)
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Replay reads a capture and calls route for every entry in order.
// It returns the number of entries replayed.
func Replay(r io.Reader, route func(topic string, payload []byte)) (int, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer decoder.Close()

	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		entry := &Entry{}
		if err := json.Unmarshal(scanner.Bytes(), entry); err != nil {
			return n, fmt.Errorf("failed to decode capture entry %d: %v", n+1, err)
		}
		route(entry.Topic, []byte(entry.Payload))
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("failed to read capture: %v", err)
	}
	return n, nil
}

// ReplayFile replays the capture at path.
func ReplayFile(path string, route func(topic string, payload []byte)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open capture file: %v", err)
	}
	defer f.Close()
	return Replay(f, route)
}
