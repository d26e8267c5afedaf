package fetch

import (
	"errors"
	"io"
	"sync"
	"time"

	"snipserve/internal/progress"
)

// ProgressReader counts bytes read from an upstream body. It reports a
// progress.Sample after each read and calls onDone once when the body hits EOF.
type ProgressReader struct {
	rc       io.ReadCloser
	total    int64
	read     int64
	started  time.Time
	now      func() time.Time
	onSample func(progress.Sample)
	onDone   func()
	doneOnce sync.Once
}

// NewProgressReader wraps rc. total is the expected size, or <= 0 if unknown.
// Either callback may be nil. Callbacks run on the reading goroutine and must not block.
func NewProgressReader(rc io.ReadCloser, total int64, onSample func(progress.Sample), onDone func()) *ProgressReader {
	return &ProgressReader{
		rc:       rc,
		total:    total,
		now:      time.Now,
		onSample: onSample,
		onDone:   onDone,
	}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	if p.started.IsZero() {
		p.started = p.now()
	}
	n, err := p.rc.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.onSample != nil {
			p.onSample(p.sample())
		}
	}
	if errors.Is(err, io.EOF) && p.onDone != nil {
		p.doneOnce.Do(p.onDone)
	}
	return n, err
}

func (p *ProgressReader) Close() error {
	return p.rc.Close()
}

// BytesRead returns the number of bytes read so far.
func (p *ProgressReader) BytesRead() int64 {
	return p.read
}

func (p *ProgressReader) sample() progress.Sample {
	s := progress.Sample{Downloaded: p.read}
	if p.total > 0 {
		s.Total = p.total
	}
	elapsed := p.now().Sub(p.started).Seconds()
	if elapsed > 0 {
		s.Speed = float64(p.read) / elapsed
		if p.total > p.read && s.Speed > 0 {
			s.ETA = int64(float64(p.total-p.read) / s.Speed)
		}
	}
	return s
}
