package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricewatch/internal/config"
	"pricewatch/internal/httpapi"
	"pricewatch/internal/poll"
	"pricewatch/internal/source"
	"pricewatch/internal/state"
	"pricewatch/internal/util"
)

func main() {
	// .env is optional; it is the usual home for FINNHUB_TOKEN.
	_ = godotenv.Load()

	cfgPath := "config/pricewatch.yaml"
	if p := os.Getenv("PRICEWATCH_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	store, err := state.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open state db: %v", err)
	}
	defer store.Close()

	router := source.NewRouter(
		source.NewCoinGecko(cfg.Providers.CoinGecko.BaseURL, cfg.Providers.CoinGecko.RateLimitPerMin),
		source.NewFinnhub(cfg.Providers.Finnhub.BaseURL, cfg.Providers.Finnhub.Token, cfg.Providers.Finnhub.RateLimitPerMin),
	)

	interval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second
	rangeDays := cfg.Poll.RangeDays
	// Persisted UI preferences win over the config file.
	if v, err := store.Pref(state.PrefIntervalSeconds); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	if v, err := store.Pref(state.PrefRangeDays); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rangeDays = n
		}
	}

	sched := poll.New(poll.Options{
		Interval:  interval,
		RangeDays: rangeDays,
		SeriesCap: cfg.Poll.SeriesCap,
	}, router, store, logger)

	refs, err := store.LoadWatchlist()
	if err != nil {
		log.Fatalf("failed to load watchlist: %v", err)
	}
	rules, err := store.LoadAlerts()
	if err != nil {
		log.Fatalf("failed to load alerts: %v", err)
	}
	baselines, err := store.LoadBaselines()
	if err != nil {
		log.Fatalf("failed to load baselines: %v", err)
	}
	sched.Restore(refs, rules, baselines)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	api := httpapi.NewServer(sched, store, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: api.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("pricewatch-server starting",
		"addr", addr,
		"assets", len(refs),
		"alerts", len(rules),
		"interval", sched.Interval().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
