// Package transcript records a session (chat, commands, world events) as
// hourly zstd-compressed JSONL files.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// segment is one open hour file.
type segment struct {
	hour string
	path string
	f    *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	// Appending to an existing hour file adds a new zstd frame; readers decode concatenated frames.
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, path: path, f: f, zw: zw, buf: bufio.NewWriterSize(zw, 32*1024)}, nil
}

func (s *segment) writeLine(b []byte) error {
	b = append(b, '\n')
	if _, err := s.buf.Write(b); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.zw.Flush()
}

func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.zw.Close(), s.f.Close())
}

// hourlyWriter appends one JSON value per line and switches files on every UTC hour.
type hourlyWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	seg *segment
}

func newHourlyWriter(dir, prefix string) *hourlyWriter {
	return &hourlyWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *hourlyWriter) append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode transcript record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := w.now().UTC().Format(hourLayout)
	if w.seg == nil || w.seg.hour != hour {
		if err := w.closeLocked(); err != nil {
			return err
		}
		seg, err := openSegment(w.fileFor(hour), hour)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		w.seg = seg
	}
	return w.seg.writeLine(b)
}

// path is the current hour file, or "" before the first record.
func (w *hourlyWriter) path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return ""
	}
	return w.seg.path
}

func (w *hourlyWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *hourlyWriter) closeLocked() error {
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

func (w *hourlyWriter) fileFor(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
