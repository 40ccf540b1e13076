package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polysignal/config"
	"github.com/alejandrodnm/polysignal/internal/adapters/clob"
	"github.com/alejandrodnm/polysignal/internal/adapters/ingest"
	"github.com/alejandrodnm/polysignal/internal/adapters/notify"
	"github.com/alejandrodnm/polysignal/internal/adapters/sqlitestore"
	"github.com/alejandrodnm/polysignal/internal/application/auditlog"
	"github.com/alejandrodnm/polysignal/internal/application/botcontrol"
	"github.com/alejandrodnm/polysignal/internal/application/bridge"
	"github.com/alejandrodnm/polysignal/internal/application/configstore"
	"github.com/alejandrodnm/polysignal/internal/application/decisions"
	"github.com/alejandrodnm/polysignal/internal/application/dispatch"
	"github.com/alejandrodnm/polysignal/internal/application/execlog"
	"github.com/alejandrodnm/polysignal/internal/application/lifecycle"
	"github.com/alejandrodnm/polysignal/internal/application/monitor"
	"github.com/alejandrodnm/polysignal/internal/application/riskmgr"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	listenAddr := flag.String("listen", ":8090", "address the signal ingest HTTP server binds")
	statusOnly := flag.Bool("status", false, "print a status snapshot and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := sqlitestore.New(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	live := cfg.LiveTradingEnabled()
	slog.Info("tradingcore starting",
		"config", *configPath, "live", live, "dry_run", cfg.Trading.DryRun, "listen", *listenAddr)

	if *statusOnly {
		runStatus(context.Background(), store)
		return
	}

	clock := ports.SystemClock{}

	clobClient := clob.New(cfg.CLOB.BaseURL, clob.Credentials{
		APIKey: cfg.CLOB.APIKey, Secret: cfg.CLOB.Secret, Passphrase: cfg.CLOB.Passphrase,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfgStore, err := configstore.New(ctx, store, store)
	if err != nil {
		slog.Error("failed to init config store", "err", err)
		os.Exit(1)
	}

	bot, err := botcontrol.New(ctx, store, store, clock)
	if err != nil {
		slog.Error("failed to init bot control", "err", err)
		os.Exit(1)
	}

	risk, err := riskmgr.New(ctx, store, store, cfgStore, bot)
	if err != nil {
		slog.Error("failed to init risk manager", "err", err)
		os.Exit(1)
	}

	execLog := execlog.New(store)
	decisionTracker := decisions.New(store, clock)
	ledger := lifecycle.New()

	emailSender := notify.NewEmailSender(cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
	webhookSender := notify.NewWebhookSender()
	notifier := dispatch.New(store, store, store, emailSender, webhookSender, clock)

	audit := auditlog.New(store, store, notifier, clock)

	var csvSink *bridge.CSVSink
	if cfg.Trading.DryRun {
		csvSink, err = bridge.NewCSVSink(cfg.Trading.DryRunCSVPath)
		if err != nil {
			slog.Error("failed to open dry-run CSV sink", "err", err, "path", cfg.Trading.DryRunCSVPath)
			os.Exit(1)
		}
		defer csvSink.Close()
	}

	ingestServer := ingest.NewServer(256)

	tradeBridge := bridge.New(
		ingestServer, clobClient, risk, bot, execLog, decisionTracker, audit, ledger, cfgStore, clock,
		bridge.Options{
			Live:    live,
			CSVSink: csvSink,
		},
	)

	settlementMonitor := monitor.New(execLog, ledger, clobClient, risk, bot, audit, cfgStore, clock,
		monitor.Options{Live: live, Interval: cfg.MonitorInterval()})

	httpServer := &http.Server{Addr: *listenAddr, Handler: ingestServer.Handler()}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ingest server failed", "err", err)
		}
	}()

	go notifier.RunWebhookWorkers(ctx, cfg.Trading.WebhookWorkers, cfg.Trading.WebhookBatchSize, cfg.WebhookPollInterval())

	settlementMonitor.Start(ctx)

	go func() {
		if err := tradeBridge.Run(ctx); err != nil {
			slog.Error("bridge run loop exited", "err", err)
		}
	}()

	go runReconciliationLoop(ctx, audit, cfg.MonitorInterval())

	<-ctx.Done()
	slog.Info("tradingcore shutting down")

	settlementMonitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("ingest server shutdown error", "err", err)
	}
}

func runStatus(ctx context.Context, store *sqlitestore.Store) {
	clock := ports.SystemClock{}
	cfgStore, err := configstore.New(ctx, store, store)
	if err != nil {
		slog.Error("failed to init config store", "err", err)
		os.Exit(1)
	}
	bot, err := botcontrol.New(ctx, store, store, clock)
	if err != nil {
		slog.Error("failed to init bot control", "err", err)
		os.Exit(1)
	}
	risk, err := riskmgr.New(ctx, store, store, cfgStore, bot)
	if err != nil {
		slog.Error("failed to init risk manager", "err", err)
		os.Exit(1)
	}
	decisionTracker := decisions.New(store, clock)

	recent, err := decisionTracker.Recent(ctx, 10)
	if err != nil {
		slog.Warn("failed to fetch recent decisions", "err", err)
	}

	snap := domain.StatusSnapshot{
		GeneratedAt:      clock.Now(),
		BotState:         bot.State(),
		OpenPositions:    risk.OpenPositions(),
		OpenExposureUSD:  risk.TotalExposureUSD(),
		DailyPnLUSD:      risk.DailyPnLUSD(),
		CircuitBreakerOn: !bot.AllowsNewTrades(),
		RecentDecisions:  recent,
	}

	console := notify.NewConsole()
	if err := console.ReportStatus(ctx, snap); err != nil {
		slog.Error("failed to print status", "err", err)
		os.Exit(1)
	}
}

// autoRepairMaxAgeHours is the staleness threshold past which an open
// execution is force-cancelled (spec.md §4.5 default).
const autoRepairMaxAgeHours = 72

// runReconciliationLoop periodically flags and auto-repairs open executions
// the Settlement Monitor has lost track of (spec.md §4.5), alongside the
// monitor's own ticker cadence.
func runReconciliationLoop(ctx context.Context, audit *auditlog.Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stale, err := audit.Reconcile(ctx)
			if err != nil {
				slog.Warn("reconcile failed", "err", err)
				continue
			}
			if len(stale) == 0 {
				continue
			}
			slog.Warn("stale open executions detected", "count", len(stale))
			repaired, err := audit.AutoRepair(ctx, autoRepairMaxAgeHours)
			if err != nil {
				slog.Warn("auto repair failed", "err", err)
				continue
			}
			if repaired > 0 {
				slog.Info("auto repaired stale executions", "count", repaired)
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
