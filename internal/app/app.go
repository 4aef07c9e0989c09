// README: Composition root; wires stores, services, scheduler and the HTTP server from config.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"resortdispatch/internal/config"
	httptransport "resortdispatch/internal/http"
	"resortdispatch/internal/infra"
	"resortdispatch/internal/logger"
	"resortdispatch/internal/maps"
	"resortdispatch/internal/modules/fleet"
	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/matching"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/notify"
)

type App struct {
	cfg config.Config
	log logger.Logger

	db    *pgxpool.Pool
	redis *redis.Client
	nc    *nats.Conn

	Registry  *prometheus.Registry
	Requests  *request.Service
	Workers   *worker.Service
	Fleet     *fleet.Store
	Locations *location.Registry
	Matching  *matching.Service
	Scheduler *matching.Scheduler
}

func NewLogger(cfg config.Config, component string) logger.Logger {
	return logger.NewZerolog(component, os.Stdout, cfg.App.Env, cfg.App.LogLevel)
}

// New connects to Postgres, Redis and (optionally) NATS and builds every
// service. The caller owns Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{cfg: cfg, log: NewLogger(cfg, "app")}

	var err error
	if a.db, err = infra.NewDB(ctx, cfg.DB.DSN); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if a.redis, err = infra.NewRedis(ctx, infra.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	if a.nc, err = infra.NewNATS(cfg.NATS.URL, NewLogger(cfg, "nats")); err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = infra.NewRegistry()
	var metrics *matching.Metrics
	if cfg.Metrics.Enabled {
		if metrics, err = matching.NewMetrics(a.Registry); err != nil {
			a.Close()
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	var notifier notify.Notifier = notify.Nop{}
	if a.nc != nil {
		notifier = notify.NewNATSNotifier(a.nc, cfg.NATS.Subject)
	}

	d := cfg.Dispatch
	var eta matching.ETAEstimator = maps.FixedETA(d.DefaultETAMinutes)
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		eta = rs
	}

	a.Requests = request.NewService(request.NewStore(a.db))
	a.Workers = worker.NewService(worker.NewRosterStore(a.db), worker.NewLiveStore(a.redis))
	a.Fleet = fleet.NewStore(a.db)
	a.Locations = location.NewRegistry(location.NewStore(a.db), time.Duration(d.LocationRefreshSeconds)*time.Second)

	storeTimeout := time.Duration(d.StoreTimeoutMs) * time.Millisecond
	cost := matching.NewCostModel(d.Cost, matching.NewRandomJitter(time.Now().UnixNano()))
	a.Matching = matching.NewService(matching.Deps{
		Requests:  a.Requests,
		Workers:   a.Workers,
		Locations: a.Locations,
		Engine:    matching.NewEngine(d, cost, NewLogger(cfg, "engine")),
		Executor: matching.NewExecutor(a.Requests, matching.ExecutorOptions{
			ETA:          eta,
			Notifier:     notifier,
			Metrics:      metrics,
			Logger:       NewLogger(cfg, "executor"),
			StoreTimeout: storeTimeout,
			DefaultETA:   d.DefaultETAMinutes,
		}),
		Metrics:     metrics,
		Logger:      NewLogger(cfg, "matching"),
		ReadTimeout: storeTimeout,
	})
	a.Scheduler = matching.NewScheduler(a.Matching, a.Fleet,
		time.Duration(d.TickSeconds)*time.Second,
		time.Duration(d.CooldownSeconds)*time.Second,
		metrics, NewLogger(cfg, "auto-assign"))
	return a, nil
}

func (a *App) Server() *httptransport.Server {
	deps := httptransport.ServerDeps{
		Requests:   a.Requests,
		Workers:    a.Workers,
		Fleet:      a.Fleet,
		Locations:  a.Locations,
		Dispatcher: a.Matching,
		Ticker:     a.Scheduler,
		Logger:     NewLogger(a.cfg, "http"),
	}
	if a.cfg.Metrics.Enabled {
		deps.Gatherer = a.Registry
	}
	return httptransport.NewServer(a.cfg.HTTP.Addr, deps)
}

// Run serves HTTP and the auto-assign loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Scheduler.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return a.Server().Run(ctx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.Warnf("nats drain: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warnf("redis close: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
