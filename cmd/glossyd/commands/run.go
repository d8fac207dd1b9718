package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ystepanoff/glossy/internal/config"
	"github.com/ystepanoff/glossy/internal/glossy"
	glossymetrics "github.com/ystepanoff/glossy/internal/metrics"
	"github.com/ystepanoff/glossy/internal/radio"
	"github.com/ystepanoff/glossy/internal/timer"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the glossyd daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configPath)
		},
	}
}

func runDaemon(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log)
	log.Info("starting glossyd", "node_id", cfg.Node.ID, "metrics_addr", cfg.Metrics.Addr)

	reg := prometheus.NewRegistry()
	collector := glossymetrics.NewCollector(reg)

	// The physical radio driver is out of scope (spec.md Non-goals): this
	// node runs against a single-node radio.Medium of its own, so the
	// daemon still exercises the full Start/Stop lifecycle, statistics
	// collection and metrics export without a real transceiver attached.
	clock := timer.NewReal(glossy.DefaultParams().HFTicksPerSecond, glossy.DefaultParams().LFTicksPerSecond)
	medium := radio.NewMedium(clock)
	driver := radio.NewSimulated(medium, clock)

	params := glossy.DefaultParams()
	params.PayloadLen = cfg.Glossy.PayloadLen
	params.HeaderTag = cfg.Glossy.HeaderTag
	params.AlwaysRelayCnt = cfg.Glossy.AlwaysRelayCnt
	params.RetransmissionTimeout = cfg.Glossy.RetransmissionTimeout
	params.CollectStats = cfg.Glossy.CollectStats

	ctrl := glossy.NewController(params, driver, clock, log.With("component", "glossy"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	g.Go(func() error {
		log.Info("metrics server listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	for _, fc := range cfg.Floods {
		fc := fc
		if fc.PayloadLen == 0 {
			fc.PayloadLen = cfg.Glossy.PayloadLen
		}
		g.Go(func() error {
			return runFloodSchedule(ctx, log, ctrl, collector, cfg.Node.ID, fc)
		})
	}

	return g.Wait()
}

// runFloodSchedule repeats fc every fc.Period (or runs it once if Period
// is zero) until ctx is canceled.
func runFloodSchedule(ctx context.Context, log *slog.Logger, ctrl *glossy.Controller, collector *glossymetrics.Collector, nodeID uint16, fc config.FloodConfig) error {
	floodLog := log.With("flood", fc.Name)

	run := func() {
		payloadLen := fc.PayloadLen
		fp := glossy.FloodParams{
			IsInitiator: fc.Initiator,
			InitiatorID: nodeID,
			WithSync:    fc.WithSync,
			NTxMax:      fc.NTxMax,
		}
		if fc.Initiator {
			if payloadLen == 0 {
				payloadLen = ctrl.GetPayloadLen()
			}
			fp.Payload = make([]byte, payloadLen)
			fp.PayloadLen = &payloadLen
		}

		collector.SetActive(fc.Name, true)
		if err := ctrl.Start(fp); err != nil {
			floodLog.Warn("flood start failed", "error", err)
			collector.SetActive(fc.Name, false)
			return
		}

		duration := fc.Duration
		if duration <= 0 {
			duration = 200 * time.Millisecond
		}
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
		}

		txCnt := ctrl.GetTxCnt()
		rxCnt := ctrl.Stop()
		collector.SetActive(fc.Name, false)

		role := "relay"
		if fc.Initiator {
			role = "initiator"
		}
		collector.Observe(fc.Name, role, ctrl.Stats(), txCnt)
		floodLog.Info("flood completed", "rx_cnt", rxCnt, "tx_cnt", txCnt, "t_ref_updated", ctrl.IsTRefUpdated())
	}

	run()
	if fc.Period <= 0 {
		return nil
	}

	ticker := time.NewTicker(fc.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			run()
		}
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
