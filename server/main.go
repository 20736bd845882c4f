package main

import (
	"context"
	"errors"
	nhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/redis/go-redis/v9"

	"stablecoin-swap/coinbase"
	"stablecoin-swap/config"
	"stablecoin-swap/events"
	"stablecoin-swap/exchange"
	"stablecoin-swap/feed"
	"stablecoin-swap/http"
	"stablecoin-swap/store"
)

func main() {
	w := log.NewSyncWriter(os.Stderr)
	logger := log.NewLogfmtLogger(w)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	if err := run(logger); err != nil {
		level.Error(logger).Log("msg", "exiting", "err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store = store.NewMemory()
	if cfg.StoreDriver == config.StoreRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		st = store.NewRedis(rdb, cfg.RedisPrefix)
	}

	recorder := events.NewRecorder(cfg.EventHistory)
	publishers := []events.Publisher{recorder}
	if cfg.NatsURL != "" {
		conn, err := events.DialNats(cfg.NatsURL, "stablecoin-swap")
		if err != nil {
			return err
		}
		defer conn.Close()
		publishers = append(publishers, events.NewNatsPublisher(conn, cfg.NatsSubject))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kw := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kw.Close()
		publishers = append(publishers, events.NewKafkaPublisher(kw))
	}
	publisher := events.NewLoggingPublisher(log.With(logger, "component", "events"), events.Multi(publishers...))

	opts := []exchange.Option{
		exchange.WithPublisher(publisher),
		exchange.WithLogger(log.With(logger, "component", "exchange")),
	}
	if cfg.BatchPolicy == config.BatchPartial {
		opts = append(opts, exchange.WithBatchPolicy(exchange.PartialCommit))
	}
	if cfg.MaxRate != nil {
		opts = append(opts, exchange.WithMaxRate(*cfg.MaxRate))
	}

	exchangeService := exchange.NewService(st, cfg.Owner, opts...)
	exchangeService = exchange.NewLoggingService(log.With(logger, "component", "exchange"), exchangeService)

	if len(cfg.FeedPairs) > 0 {
		coinbaseService := coinbase.NewService(cfg.CoinbaseURL)
		coinbaseService = coinbase.NewLoggingService(log.With(logger, "component", "coinbase_rest"), coinbaseService)
		quoteCache := coinbase.NewQuoteCache(coinbaseService, feed.Bases(cfg.FeedPairs), cfg.FeedInterval, log.With(logger, "component", "coinbase_cache"))

		f, err := feed.New(quoteCache, exchangeService, cfg.Assets, cfg.FeedPairs, log.With(logger, "component", "feed"))
		if err != nil {
			return err
		}
		if err := quoteCache.Warm(ctx); err != nil {
			level.Warn(logger).Log("msg", "warming quote cache", "err", err)
		}
		go quoteCache.Run(ctx)
		go f.Run(ctx, cfg.FeedInterval)
	}

	srv := &nhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           http.NewServer(exchangeService, recorder, log.With(logger, "component", "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log("msg", "listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "owner", cfg.Owner)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nhttp.ErrServerClosed) {
		return err
	}
	return nil
}
