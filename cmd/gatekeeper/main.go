// Command gatekeeper runs the sub-GHz gate/garage-door remote
// decoder: it wires the radio front end into the C1-C5 pipeline and
// the collaborator surfaces (HTTP/WebSocket API, learned-key store,
// GSM notification, mDNS advertisement, USB hotplug watching) around
// it. Wiring follows the shape of the teacher's cmd/direwolf/main.go
// (parse flags and config, build every subsystem, run a cooperative
// loop, handle signals for clean shutdown), rewritten without that
// file's C-transliteration artifacts.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/doismellburning/gatekeeper/api"
	"github.com/doismellburning/gatekeeper/capture"
	"github.com/doismellburning/gatekeeper/clock"
	"github.com/doismellburning/gatekeeper/config"
	"github.com/doismellburning/gatekeeper/decode"
	"github.com/doismellburning/gatekeeper/gpioedge"
	"github.com/doismellburning/gatekeeper/gsm"
	"github.com/doismellburning/gatekeeper/metrics"
	"github.com/doismellburning/gatekeeper/pipeline"
	"github.com/doismellburning/gatekeeper/radio"
	"github.com/doismellburning/gatekeeper/store"
	"github.com/doismellburning/gatekeeper/udevwatch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatekeeper:", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	cfg = config.Merge(cfg, flags)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if flags.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "/var/lib/gatekeeper/keys.yaml"
	}
	keyStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening key store: %w", err)
	}

	ring := capture.New()
	rssi, closeRadio, err := openRadio(context.Background(), cfg, ring, logger)
	if err != nil {
		return fmt.Errorf("opening radio front end: %w", err)
	}
	defer closeRadio()

	reg := metrics.NewRegistry(prometheus.NewRegistry())
	engine := decode.New(clock.System{})
	engine.SetLearningMode(cfg.Learning)

	hub := api.NewHub(logger)
	srv := &api.Server{Hub: hub, Store: keyStore, Engine: engine}

	var notifier *gsm.Notifier
	if cfg.GSM.Enabled {
		notifier, err = gsm.Open(cfg.GSM.Device, cfg.GSM.BaudRate, cfg.GSM.Number)
		if err != nil {
			logger.Error("gsm notifier unavailable, continuing without it", "err", err)
			notifier = nil
		} else {
			defer notifier.Close()
		}
	}

	pl := &pipeline.Pipeline{
		Ring:     ring,
		Engine:   engine,
		Metrics:  reg,
		Logger:   logger,
		RSSI:     rssi,
		FreqMHz:  cfg.Radio.FrequencyMHz,
		Modulate: cfg.Radio.Modulation,
		OnKey:    onKeyHandler(logger, hub, keyStore, notifier),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.API.ListenAddr != "" {
		go serveHTTP(ctx, logger, cfg.API.ListenAddr, srv.Mux())
	}
	if cfg.API.MDNS && cfg.API.ListenAddr != "" {
		if cancelMDNS, err := api.Announce("gatekeeper", mustPort(cfg.API.ListenAddr), logger); err != nil {
			logger.Error("mdns announce failed", "err", err)
		} else {
			defer cancelMDNS()
		}
	}

	if cfg.Radio.Device != "" {
		go watchHotplug(ctx, logger, cfg.Radio.Device)
	}

	logger.Info("gatekeeper running", "frequency_mhz", cfg.Radio.FrequencyMHz, "learning", cfg.Learning)
	mainLoop(ctx, pl, engine)
	return nil
}

// mainLoop is the single cooperative pass the whole pipeline runs in:
// poll for a ready frame, or idle briefly, and periodically sweep
// stale verification/dedup state.
func mainLoop(ctx context.Context, pl *pipeline.Pipeline, engine *decode.Engine) {
	sweepEvery := 5 * time.Second
	nextSweep := time.Now().Add(sweepEvery)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !pl.Poll() {
			time.Sleep(2 * time.Millisecond)
		}

		if time.Now().After(nextSweep) {
			engine.Sweep()
			nextSweep = time.Now().Add(sweepEvery)
		}
	}
}

func onKeyHandler(logger *log.Logger, hub *api.Hub, keyStore *store.Store, notifier *gsm.Notifier) func(decode.Key) {
	return func(key decode.Key) {
		logger.Info("key recognized", "protocol", key.Protocol, "code", key.Code, "learning", key.Learning)
		hub.Broadcast(key)

		if key.Learning {
			name := fmt.Sprintf("%s-%x", key.Protocol, key.Code)
			if err := keyStore.Learn(name, key); err != nil {
				logger.Error("failed to persist learned key", "err", err)
			}
			return
		}

		if _, matched := keyStore.FindMatch(key); matched && notifier != nil {
			if err := notifier.Notify(fmt.Sprintf("gate remote %s recognized", key.Protocol)); err != nil {
				logger.Error("gsm notify failed", "err", err)
			}
		}
	}
}

// openRadio attaches the capture ring to whichever front end the
// config names and returns an RSSI source for the pipeline (nil for
// the plain-GPIO front end, which has no signal-strength readback)
// and a cleanup function.
func openRadio(ctx context.Context, cfg config.File, ring *capture.Ring, logger *log.Logger) (pipeline.RSSISource, func(), error) {
	switch cfg.Radio.Driver {
	case "gpio":
		watcher, err := gpioedge.NewWatcher(cfg.Radio.GPIOChip, cfg.Radio.GPIODataPin, ring)
		if err != nil {
			return nil, nil, fmt.Errorf("gpio watcher: %w", err)
		}
		return nil, func() { watcher.Close() }, nil

	default:
		driver := radio.NewHamlibDriver(cfg.Radio.Rig, cfg.Radio.Device, logger)
		rc := radio.Config{FrequencyMHz: cfg.Radio.FrequencyMHz, Modulation: radio.Modulation(cfg.Radio.Modulation)}
		if err := driver.Init(ctx, rc); err != nil {
			return nil, nil, err
		}
		if err := driver.StartDirectRX(); err != nil {
			return nil, nil, fmt.Errorf("starting direct rx: %w", err)
		}
		if err := driver.AttachEdgeISR(ring.Handle); err != nil {
			return nil, nil, fmt.Errorf("attaching edge capture: %w", err)
		}
		cleanup := func() {
			driver.DetachEdgeISR()
			driver.Stop()
		}
		return driver, cleanup, nil
	}
}

func serveHTTP(ctx context.Context, logger *log.Logger, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped", "err", err)
	}
}

func watchHotplug(ctx context.Context, logger *log.Logger, expectedDevice string) {
	err := udevwatch.Watch(ctx, func(action, devNode string) {
		if devNode != expectedDevice {
			return
		}
		logger.Warn("radio device hotplug event", "action", action, "device", devNode)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("udev watch stopped", "err", err)
	}
}

func mustPort(addr string) int {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			port := 0
			fmt.Sscanf(addr[i+1:], "%d", &port)
			return port
		}
	}
	return 0
}
