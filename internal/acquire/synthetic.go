package acquire

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
	"github.com/banshee-data/tmr-encoder/internal/timeutil"
)

// SyntheticOptions controls the frames emitted by a SyntheticPort.
type SyntheticOptions struct {
	// Interval between frames. Defaults to 10ms.
	Interval time.Duration
	// StartDeg is the shaft angle of the first frame.
	StartDeg float64
	// StepDeg is the rotation between frames. Defaults to 1°.
	StepDeg float64
	// Failed sensors are emitted as "nan".
	Failed encoder.FailureMask
	// Clock paces the frames. Defaults to the wall clock.
	Clock timeutil.Clock
}

// SyntheticPort is a Port that emits frames from a simulated front end with
// the shaft rotating at a constant rate. Commands written to it are recorded.
type SyntheticPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	commands []string
}

// NewSyntheticPort starts emitting frames for g from src. src must not be
// used elsewhere once the port is running.
func NewSyntheticPort(g encoder.Geometry, src *signalsim.Source, opts SyntheticOptions) *SyntheticPort {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Millisecond
	}
	if opts.StepDeg == 0 {
		opts.StepDeg = 1
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	r, w := io.Pipe()
	p := &SyntheticPort{r: r, w: w, done: make(chan struct{})}
	go p.run(g, src, opts, opts.Clock.NewTicker(opts.Interval))
	return p
}

func (p *SyntheticPort) run(g encoder.Geometry, src *signalsim.Source, opts SyntheticOptions, ticker timeutil.Ticker) {
	defer p.w.Close()
	defer ticker.Stop()

	theta := encoder.Mod360(opts.StartDeg)
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C():
		}
		line := FormatSampleLine(src.Sample(g, theta, opts.Failed), opts.Failed) + "\n"
		if _, err := io.WriteString(p.w, line); err != nil {
			return
		}
		theta = encoder.Mod360(theta + opts.StepDeg)
	}
}

// Read returns emitted frames.
func (p *SyntheticPort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write records a command.
func (p *SyntheticPort) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, errors.New("synthetic port closed")
	default:
	}
	cmd := strings.TrimSpace(string(b))
	monitoring.Debugf("synthetic port command %q", cmd)
	p.mu.Lock()
	p.commands = append(p.commands, cmd)
	p.mu.Unlock()
	return len(b), nil
}

// Commands returns the commands written so far.
func (p *SyntheticPort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// Close stops the generator. Pending reads return io.EOF.
func (p *SyntheticPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.w.Close()
	})
	return nil
}
