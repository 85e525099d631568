// Command angle-monitor reconstructs the shaft angle from a live sensor
// front end, logs it, records it to SQLite and serves debug pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/tmr-encoder/internal/acquire"
	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/httputil"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
	"github.com/banshee-data/tmr-encoder/internal/store"
	"github.com/banshee-data/tmr-encoder/internal/timeutil"
	"github.com/banshee-data/tmr-encoder/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Use a synthetic front end instead of the serial port")
	listen      = flag.String("listen", ":8080", "Listen address for /debug/ and /api/")
	portPath    = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored in dev mode)")
	baudRate    = flag.Int("baud", acquire.DefaultBaudRate, "Serial baud rate")
	dataBits    = flag.Int("data-bits", 8, "Serial data bits")
	stopBits    = flag.Int("stop-bits", 1, "Serial stop bits (1 or 2)")
	parity      = flag.String("parity", "N", "Serial parity (N, E or O)")
	sensors     = flag.Int("sensors", 8, "Number of sensors")
	polePairs   = flag.Int("pole-pairs", 7, "Magnet pole pairs")
	dbPath      = flag.String("db", "encoder.db", "SQLite database for readings")
	logEvery    = flag.Int("log-every", 100, "Log every Nth reconstructed angle")
	devInterval = flag.Duration("dev-interval", 20*time.Millisecond, "Synthetic frame interval")
	devStep     = flag.Float64("dev-step", 0.5, "Synthetic rotation per frame in degrees")
	devFail     = flag.String("dev-fail", "", "Comma-separated sensors the synthetic front end reports as failed")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("angle-monitor"))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*debug)

	g, err := encoder.NewGoldenGeometry(*sensors, *polePairs)
	if err != nil {
		log.Fatalf("invalid geometry: %v", err)
	}

	var (
		frames acquire.FrameSource
		source string
	)
	if *devMode {
		failed, err := analysis.ParseIndexList(*devFail)
		if err != nil {
			log.Fatalf("invalid -dev-fail: %v", err)
		}
		port := acquire.NewSyntheticPort(g, signalsim.NewSource(signalsim.DefaultModel(), uint64(time.Now().UnixNano())), acquire.SyntheticOptions{
			Interval: *devInterval,
			StepDeg:  *devStep,
			Failed:   encoder.NewFailureMask(failed...),
		})
		frames, source = acquire.NewMux(port), "synthetic"
	} else {
		m, err := acquire.OpenSerial(*portPath, acquire.PortOptions{
			BaudRate: *baudRate,
			DataBits: *dataBits,
			StopBits: *stopBits,
			Parity:   *parity,
		})
		if err != nil {
			log.Fatalf("failed to open front end: %v", err)
		}
		frames, source = m, *portPath
	}
	defer frames.Close()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := frames.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor front end: %v", err)
		}
		log.Print("monitor routine terminated")
		stop()
	}()

	mon := newMonitor(st, g, source, *logEvery)
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := frames.Subscribe()
		defer frames.Unsubscribe(id)
		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if err := mon.handle(ctx, line); err != nil {
					log.Printf("error handling frame: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated after %s", mon)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		frames.AttachAdminRoutes(mux)
		st.AttachAdminRoutes(mux)
		mux.HandleFunc("/api/readings", readingsHandler(st))

		server := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("serving debug pages on %s/debug/", *listen)

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down server: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}

// monitor turns frames into recorded readings.
type monitor struct {
	store    *store.Store
	geometry encoder.Geometry
	source   string
	logEvery int
	clock    timeutil.Clock

	mu       sync.Mutex
	frames   int
	failures int
}

func newMonitor(st *store.Store, g encoder.Geometry, source string, logEvery int) *monitor {
	return &monitor{store: st, geometry: g, source: source, logEvery: logEvery, clock: timeutil.RealClock{}}
}

func (m *monitor) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("%d frames, %d failed reconstructions", m.frames, m.failures)
}

// handle decodes one frame and records the outcome. Comment lines are
// ignored; malformed frames are returned as errors without being recorded.
func (m *monitor) handle(ctx context.Context, line string) error {
	res, mask, err := acquire.Decode(line, m.geometry)
	if errors.Is(err, acquire.ErrCommentLine) {
		return nil
	}
	if errors.Is(err, acquire.ErrFieldCount) {
		return err
	}

	m.mu.Lock()
	m.frames++
	n := m.frames
	if err != nil {
		m.failures++
	}
	m.mu.Unlock()

	working := m.geometry.SensorCount() - mask.Len()
	if _, rerr := m.store.RecordReading(ctx, store.NewReading(m.source, m.clock.Now(), working, res, err)); rerr != nil {
		return rerr
	}

	switch {
	case err != nil:
		monitoring.Logf("frame %d: %v", n, err)
	case res.Underdetermined:
		monitoring.Logf("frame %d: underdetermined fit (rank %d, %d working), angle=%.4f° unreliable", n, res.FitRank, res.WorkingSensors, res.AngleDeg)
	case m.logEvery > 0 && n%m.logEvery == 0:
		monitoring.Logf("frame %d: angle=%.4f° sector=%d working=%d", n, res.AngleDeg, res.Sector, res.WorkingSensors)
	default:
		monitoring.Debugf("frame %d: angle=%.6f°", n, res.AngleDeg)
	}
	return nil
}

func readingsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		limit, err := httputil.QueryLimit(r, "limit", 100, 10000)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		readings, err := st.RecentReadings(r.Context(), limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if readings == nil {
			readings = []store.Reading{}
		}
		httputil.WriteJSON(w, http.StatusOK, readings)
	}
}
