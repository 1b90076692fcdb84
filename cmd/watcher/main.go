package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oiwatch/config"
	"oiwatch/internal/binance/monitor"
	"oiwatch/internal/binance/snapshot"
	"oiwatch/internal/binance/stream"
	"oiwatch/internal/binance/symbolmeta"
	"oiwatch/internal/changes"
	"oiwatch/internal/instrumentation"
	"oiwatch/internal/journal"
	"oiwatch/internal/notify"
	sig "oiwatch/internal/signal"
	"oiwatch/internal/status"
	"oiwatch/internal/universe"
	"oiwatch/logger"
	"oiwatch/pkg/binance"
	"oiwatch/pkg/storage/postgres"
	"oiwatch/pkg/storage/redis"
	"oiwatch/pkg/telegram"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// viper config
	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if err := cfg.ResolveSecrets(ctx, nil); err != nil {
		fmt.Fprintln(os.Stderr, "failed to resolve secrets:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("watcher failed", zap.Error(err))
	}
	log.Info("watcher stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := instrumentation.NewMetrics(reg)

	offsets, err := changes.ParseOffsets(cfg.Monitor.Offsets)
	if err != nil {
		return fmt.Errorf("offsets: %w", err)
	}
	calc, err := changes.NewCalculator(offsets)
	if err != nil {
		return fmt.Errorf("calculator: %w", err)
	}
	oiPeriods, err := snapshot.ParseOIPeriods(cfg.Monitor.OIPeriods)
	if err != nil {
		return fmt.Errorf("oi periods: %w", err)
	}
	threshold := decimal.NewFromFloat(cfg.Liquidation.NotionalThreshold)

	restClient := binance.NewRESTClient(cfg.Binance.REST.BaseURL, cfg.Binance.REST.Timeout)
	market := snapshot.NewMarket(restClient, oiPeriods, cfg.Binance.REST.Timeout, log, metrics)

	// Universe: daily refresh or a static list
	uni := universe.New(universe.Filter{
		QuoteSuffix:   cfg.Universe.QuoteSuffix,
		VolumeCeiling: cfg.Universe.VolumeCeiling,
	}, cfg.Monitor.Capacity)
	if cfg.Universe.RefreshEnabled {
		loader := &snapshot.SymbolLoader{RestClient: restClient, Timeout: cfg.Binance.REST.Timeout, Logger: log}
		scheduler := &symbolmeta.MidnightLoader{Universe: uni, Source: loader, Logger: log.Named("universe"), Metrics: metrics}
		// First refresh completes before the first cycle
		scheduler.RunOnce(ctx)
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(symbolmeta.NextMidnight(time.Now()))):
			}
			scheduler.Run(ctx)
		}()
	} else {
		symbols := uni.Seed(cfg.Universe.Symbols)
		metrics.RecordRefresh("ok", len(symbols))
		log.Info("static universe", zap.Strings("symbols", symbols))
	}

	// Delivery
	tg := telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Binance.REST.Timeout)
	var chats notify.ChatResolver = notify.StaticChats(cfg.Telegram.ChatIDs)
	if len(cfg.Telegram.ChatIDs) == 0 {
		chats = notify.NewDiscoveredChats(tg, 10*time.Minute)
	}
	dispatcher := notify.NewDispatcher(tg, chats, cfg.Telegram.QueueSize, 10*time.Second, log, metrics)
	go dispatcher.Run(ctx)

	// Journal: in-memory always, postgres when enabled
	recent := journal.NewMemory(200)
	var jrnl journal.Journal = recent
	if cfg.Postgres.Enabled {
		pg, err := postgres.InitializeAndMigrateAlertRecord(cfg.Postgres, true)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer pg.Close()
		jrnl = journal.Tee{recent, pg}
		log.Info("alert journal backed by postgres", zap.String("db", cfg.Postgres.DBName))
	}

	// Snapshot cache
	statusSrc := status.Sources{
		Symbols:  uni.Symbols,
		Alerts:   recent.Recent,
		Gatherer: reg,
	}
	var publisher monitor.SnapshotPublisher
	if cfg.Redis.Enabled {
		rp, err := redis.NewPublisher(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.TTL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rp.Close()
		publisher = rp
		statusSrc.Snapshot = rp.Get
	}

	mon := monitor.New(monitor.Options{
		Universe:   uni,
		Observer:   market,
		Calculator: calc,
		Evaluator: sig.NewEvaluator(sig.Thresholds{
			OIDrop5m:         cfg.Signal.OIDrop5m,
			PriceDrop5m:      cfg.Signal.PriceDrop5m,
			VolumeDrop5m:     cfg.Signal.VolumeDrop5m,
			StopLossFraction: cfg.Signal.StopLossFraction,
			RewardMultiples:  cfg.Signal.RewardMultiples,
			TakeProfitTiers:  cfg.Signal.TakeProfitTiers,
		}),
		Notifier:      dispatcher,
		Journal:       jrnl,
		Publisher:     publisher,
		Workers:       cfg.Monitor.Workers,
		ReportUpdates: cfg.Monitor.ReportUpdates,
		Logger:        log,
		Metrics:       metrics,
	})
	statusSrc.LastCycle = mon.LastCycle

	// Liquidation stream
	if cfg.Liquidation.Enabled {
		handler := stream.NewLiquidationHandler(stream.Options{
			Universe:     uni,
			Observer:     market,
			Calculator:   calc,
			Notifier:     dispatcher,
			Journal:      jrnl,
			Threshold:    threshold,
			UniverseOnly: cfg.Liquidation.UniverseOnly,
			DedupeSize:   cfg.Liquidation.DedupeSize,
			Workers:      cfg.Liquidation.Workers,
			Logger:       log,
			Metrics:      metrics,
		})
		wsClient := binance.NewWSClient(cfg.Binance.WS.URL, cfg.Binance.WS.Streams, cfg.Binance.WS.Timeout, log)
		wsClient.SetMessageHandler(handler.MakeMessageHandler(ctx))
		statusSrc.Connected = wsClient.Connected

		if err := wsClient.Connect(ctx); err != nil {
			// Listen keeps retrying with backoff
			log.Warn("initial websocket connect failed", zap.Error(err))
		}
		go func() {
			wsClient.Listen(ctx) // explicitly start listener
			handler.Wait()
		}()
	}

	statusServer := status.NewServer(cfg.Status.Addr, statusSrc, log)
	go func() {
		if err := statusServer.Run(ctx); err != nil {
			log.Error("status server failed", zap.Error(err))
		}
	}()

	log.Info("watcher started",
		zap.Int("symbols", len(uni.Symbols())),
		zap.Duration("interval", cfg.Monitor.Interval),
		zap.Int("workers", cfg.Monitor.Workers))

	mon.Start(ctx, cfg.Monitor.Interval)
	return nil
}
