package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelfx.dev/internal/sim/region"
)

// Rotation picks how often a journal starts a new segment file.
type Rotation string

const (
	RotateHourly Rotation = "hour"
	RotateDaily  Rotation = "day"
)

func (r Rotation) layout() (string, error) {
	switch r {
	case "", RotateHourly:
		return "2006-01-02-15", nil
	case RotateDaily:
		return "2006-01-02", nil
	default:
		return "", fmt.Errorf("journal: unknown rotation %q", r)
	}
}

type Options struct {
	Rotation Rotation
	// FlushEvery buffers that many records between flushes. Zero flushes
	// every record. Close always flushes.
	FlushEvery int
}

// segmentWriter appends records of one type as JSON lines to zstd segments
// named <prefix>-<UTC period>.jsonl.zst. A segment reopened after a restart
// gets a new zstd frame appended, which readers decode as one stream.
type segmentWriter[T any] struct {
	dir    string
	prefix string
	layout string
	flushN int
	now    func() time.Time

	mu      sync.Mutex
	segment string
	pending int
	written uint64
	f       *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
}

func newSegmentWriter[T any](dir, prefix string, opts Options) (*segmentWriter[T], error) {
	layout, err := opts.Rotation.layout()
	if err != nil {
		return nil, err
	}
	flushN := opts.FlushEvery
	if flushN < 1 {
		flushN = 1
	}
	return &segmentWriter[T]{dir: dir, prefix: prefix, layout: layout, flushN: flushN, now: time.Now}, nil
}

func (w *segmentWriter[T]) append(v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if seg := w.now().UTC().Format(w.layout); seg != w.segment {
		if err := w.openLocked(seg); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	w.written++
	w.pending++
	if w.pending < w.flushN {
		return nil
	}
	w.pending = 0
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *segmentWriter[T]) openLocked(seg string) error {
	if err := w.finishLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(seg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if w.enc == nil {
		w.enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return err
		}
	} else {
		w.enc.Reset(f)
	}
	w.f = f
	w.buf = bufio.NewWriterSize(w.enc, 64*1024)
	w.segment = seg
	return nil
}

// finishLocked ends the current zstd frame and closes its file. The encoder
// is kept for the next segment.
func (w *segmentWriter[T]) finishLocked() error {
	if w.f == nil {
		return nil
	}
	var first error
	if err := w.buf.Flush(); err != nil {
		first = err
	}
	if err := w.enc.Close(); err != nil && first == nil {
		first = err
	}
	if err := w.f.Close(); err != nil && first == nil {
		first = err
	}
	w.f, w.buf, w.segment, w.pending = nil, nil, "", 0
	return first
}

func (w *segmentWriter[T]) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finishLocked()
}

func (w *segmentWriter[T]) count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *segmentWriter[T]) path(seg string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, seg))
}

// TickLogger journals one entry per region tick under <region>/events.
type TickLogger struct {
	w *segmentWriter[region.TickLogEntry]
}

func NewTickLogger(regionDir string, opts Options) (*TickLogger, error) {
	w, err := newSegmentWriter[region.TickLogEntry](filepath.Join(regionDir, "events"), "events", opts)
	if err != nil {
		return nil, err
	}
	return &TickLogger{w: w}, nil
}

func (l *TickLogger) WriteTick(e region.TickLogEntry) error { return l.w.append(e) }
func (l *TickLogger) Written() uint64                       { return l.w.count() }
func (l *TickLogger) Close() error                          { return l.w.close() }

// FaultLogger journals instance faults under <region>/faults. Every fault
// is flushed as it is written; FlushEvery is ignored.
type FaultLogger struct {
	w *segmentWriter[region.FaultEntry]
}

func NewFaultLogger(regionDir string, opts Options) (*FaultLogger, error) {
	opts.FlushEvery = 1
	w, err := newSegmentWriter[region.FaultEntry](filepath.Join(regionDir, "faults"), "faults", opts)
	if err != nil {
		return nil, err
	}
	return &FaultLogger{w: w}, nil
}

func (l *FaultLogger) WriteFault(e region.FaultEntry) error { return l.w.append(e) }
func (l *FaultLogger) Written() uint64                      { return l.w.count() }
func (l *FaultLogger) Close() error                         { return l.w.close() }
