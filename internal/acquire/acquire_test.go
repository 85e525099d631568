package acquire

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
	"github.com/banshee-data/tmr-encoder/internal/timeutil"
)

// pipePort is a Port fed by the test through feed.
type pipePort struct {
	r    *io.PipeReader
	feed *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	short   bool
	closed  bool
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, feed: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.short {
		return len(b) - 1, nil
	}
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *pipePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func localHostRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func receive(t *testing.T, c <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-c:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

func TestPortOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"even long form", PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " even "}, PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"odd", PortOptions{Parity: "o"}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{DataBits: 4}.SerialMode()
	assert.Error(t, err)
}

func TestParseSampleLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		n          int
		want       []float64
		wantFailed []int
		wantErr    error
	}{
		{"all working", "0.1,-0.2, 0.3 ,1e-3", 4, []float64{0.1, -0.2, 0.3, 0.001}, []int{}, nil},
		{"failure markers", "0.5,,NaN,x,X,-0.5", 6, []float64{0.5, 0, 0, 0, 0, -0.5}, []int{1, 2, 3, 4}, nil},
		{"infinite is failed", "+Inf,1", 2, []float64{0, 1}, []int{0}, nil},
		{"trailing newline", "1,2\r\n", 2, []float64{1, 2}, []int{}, nil},
		{"too few", "1,2", 3, nil, nil, ErrFieldCount},
		{"too many", "1,2,3,4", 3, nil, nil, ErrFieldCount},
		{"comment", "# header", 2, nil, nil, ErrCommentLine},
		{"blank", "   ", 2, nil, nil, ErrCommentLine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, mask, err := ParseSampleLine(tt.line, tt.n)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, samples)
			assert.Equal(t, tt.wantFailed, mask.Indices())
		})
	}

	_, _, err := ParseSampleLine("1,abc", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 1")
}

func TestFormatSampleLine_ParsesBack(t *testing.T) {
	samples := []float64{0.125, -1.5, 0.3333333333333333, 2}
	mask := encoder.NewFailureMask(1)

	line := FormatSampleLine(samples, mask)
	assert.Equal(t, "0.125,nan,0.3333333333333333,2", line)

	got, gotMask, err := ParseSampleLine(line, len(samples))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.125, 0, 0.3333333333333333, 2}, got)
	assert.Equal(t, []int{1}, gotMask.Indices())
}

func TestDecode(t *testing.T) {
	g, err := encoder.NewGoldenGeometry(8, 7)
	require.NoError(t, err)
	src := signalsim.NewSource(signalsim.DefaultModel().Noiseless(), 1)
	mask := encoder.NewFailureMask(2)

	line := FormatSampleLine(src.Sample(g, 123.4, mask), mask)
	res, gotMask, err := Decode(line, g)
	require.NoError(t, err)
	assert.InDelta(t, 123.4, res.AngleDeg, 1e-6)
	assert.Equal(t, 7, res.WorkingSensors)
	assert.Equal(t, []int{2}, gotMask.Indices())

	_, _, err = Decode("1,2,3", g)
	assert.ErrorIs(t, err, ErrFieldCount)

	_, _, err = Decode("x,x,x,x,x,x,x,0.5", g)
	assert.ErrorIs(t, err, encoder.ErrInsufficientSensors)
}

func TestMux_FanOut(t *testing.T) {
	port := newPipePort()
	m := NewMux(port)

	id1, c1 := m.Subscribe()
	_, c2 := m.Subscribe()

	done := make(chan error, 1)
	go func() { done <- m.Monitor(context.Background()) }()

	_, err := io.WriteString(port.feed, "first\r\nsecond\n")
	require.NoError(t, err)

	assert.Equal(t, "first", receive(t, c1))
	assert.Equal(t, "second", receive(t, c1))
	assert.Equal(t, "first", receive(t, c2))
	assert.Equal(t, "second", receive(t, c2))

	m.Unsubscribe(id1)
	_, ok := <-c1
	assert.False(t, ok)
	m.Unsubscribe(id1)

	require.NoError(t, m.Close())
	_, ok = <-c2
	assert.False(t, ok)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
	assert.True(t, port.closed)
}

func TestMux_MonitorStopsAtEOF(t *testing.T) {
	port := newPipePort()
	m := NewMux(port)
	_, c := m.Subscribe()

	done := make(chan error, 1)
	go func() { done <- m.Monitor(context.Background()) }()

	_, err := io.WriteString(port.feed, "only\n")
	require.NoError(t, err)
	assert.Equal(t, "only", receive(t, c))
	require.NoError(t, port.feed.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return at EOF")
	}
}

func TestMux_MonitorStopsOnCancel(t *testing.T) {
	port := newPipePort()
	m := NewMux(port)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Monitor(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMux_SendCommand(t *testing.T) {
	port := newPipePort()
	m := NewMux(port)
	defer m.Close()

	require.NoError(t, m.SendCommand("ZERO"))
	require.NoError(t, m.SendCommand("RATE=100\n"))
	assert.Equal(t, "ZERO\nRATE=100\n", port.Written())

	port.short = true
	assert.ErrorIs(t, m.SendCommand("ZERO"), ErrWriteFailed)
}

func TestSyntheticPort_FramesDecode(t *testing.T) {
	g, err := encoder.NewGoldenGeometry(8, 7)
	require.NoError(t, err)
	src := signalsim.NewSource(signalsim.DefaultModel().Noiseless(), 7)
	port := NewSyntheticPort(g, src, SyntheticOptions{
		Interval: time.Millisecond,
		StartDeg: 5,
		StepDeg:  10,
		Failed:   encoder.NewFailureMask(6),
	})
	m := NewMux(port)
	_, c := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Monitor(ctx) }()

	for i := 0; i < 5; i++ {
		line := receive(t, c)
		assert.Equal(t, "nan", strings.Split(line, ",")[6])
		res, mask, err := Decode(line, g)
		require.NoError(t, err)
		assert.Equal(t, []int{6}, mask.Indices())
		// Frames are 5°, 15°, 25°, ...
		assert.InDelta(t, 0, math.Remainder(res.AngleDeg-5, 10), 1e-6)
	}

	require.NoError(t, m.SendCommand("ZERO"))
	assert.Equal(t, []string{"ZERO"}, port.Commands())

	require.NoError(t, m.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
	_, err = port.Write([]byte("late"))
	assert.Error(t, err)
}

func TestSyntheticPort_MockClock(t *testing.T) {
	g, err := encoder.NewGoldenGeometry(12, 11)
	require.NoError(t, err)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	port := NewSyntheticPort(g, signalsim.NewSource(signalsim.DefaultModel().Noiseless(), 3), SyntheticOptions{
		Interval: time.Second,
		StartDeg: 355,
		StepDeg:  2,
		Clock:    clock,
	})
	defer port.Close()
	r := bufio.NewReader(port)

	for _, want := range []float64{355, 357, 359, 1, 3} {
		clock.Advance(time.Second)
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		res, _, err := Decode(line, g)
		require.NoError(t, err)
		assert.InDelta(t, 0, encoder.AngleErrorDeg(want, res.AngleDeg), 1e-6, "want %v got %v", want, res.AngleDeg)
	}

	require.NoError(t, port.Close())
	_, err = r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestAttachAdminRoutes_SendCommand(t *testing.T) {
	port := newPipePort()
	m := NewMux(port)
	defer m.Close()
	httpMux := http.NewServeMux()
	m.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		want   int
	}{
		{"post", http.MethodPost, url.Values{"command": {"ZERO"}}, http.StatusOK},
		{"missing command", http.MethodPost, url.Values{}, http.StatusBadRequest},
		{"get", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			httpMux.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, "ZERO\n", port.Written())
}

func TestAttachAdminRoutes_FramesPage(t *testing.T) {
	m := NewMux(newPipePort())
	defer m.Close()
	httpMux := http.NewServeMux()
	m.AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/frames", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "EventSource")
}

func TestAttachAdminRoutes_Tail(t *testing.T) {
	m := NewMux(newPipePort())
	httpMux := http.NewServeMux()
	m.AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		httpMux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/tail", nil))
	}()

	require.Eventually(t, func() bool {
		m.subscriberMu.Lock()
		defer m.subscriberMu.Unlock()
		return len(m.subscribers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	m.broadcast("0.1,0.2")
	require.NoError(t, m.Close())

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("tail handler did not return")
	}
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, ": ping\n\ndata: 0.1,0.2\n\n", w.Body.String())
}

func TestAttachAdminRoutes_TailRejectsPost(t *testing.T) {
	m := NewMux(newPipePort())
	defer m.Close()
	httpMux := http.NewServeMux()
	m.AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodPost, "/debug/tail", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOpenSerial_BadOptions(t *testing.T) {
	_, err := OpenSerial("/dev/null", PortOptions{StopBits: 5})
	assert.Error(t, err)
}

var (
	_ FrameSource = (*Mux[*SyntheticPort])(nil)
	_ FrameSource = (*Mux[serial.Port])(nil)
)
