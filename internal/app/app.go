// Package app assembles the bot: storage, currency directory, conversation
// engine, background jobs, and the Telegram runtime options that tie them
// together.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pricebot/core/bootstrap"
	corecmd "github.com/m3rciful/pricebot/core/cmd"
	coretelegram "github.com/m3rciful/pricebot/core/telegram"
	"github.com/m3rciful/pricebot/core/telegram/router"
	"github.com/m3rciful/pricebot/core/telegram/state"
	"github.com/m3rciful/pricebot/internal/bot"
	"github.com/m3rciful/pricebot/internal/collector"
	"github.com/m3rciful/pricebot/internal/currency"
	"github.com/m3rciful/pricebot/internal/feed"
	"github.com/m3rciful/pricebot/internal/notify"
	"github.com/m3rciful/pricebot/internal/storage"
)

// App is the assembled bot, ready to produce Telegram run options.
type App struct {
	cfg *Config

	db      *sqlx.DB
	store   *storage.Store
	adapter *bot.Adapter
	feed    *feed.Client

	jobs *collector.Jobs
}

// New runs the bootstrap pipeline and wires the domain components.
func New(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	store := storage.New(res.DB)
	directory := currency.NewDirectory(store.Prices)

	engine, err := bot.NewEngine(directory, store.Alerts, store.Subscriptions)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}

	sessions := state.NewMemoryManager()
	adapter := bot.NewAdapter(engine, sessions, store.Users)

	return &App{
		cfg:     cfg,
		db:      res.DB,
		store:   store,
		adapter: adapter,
		feed:    feed.NewClient(cfg.Feed),
	}, nil
}

// Bootstrap adapts New to the shared runner's carrier-based signature.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config carrier %T", carrier)
	}
	return New(cfg)
}

// TelegramRunOptions builds the routes, middleware chain, and lifecycle
// hooks for the Telegram runtime. The background jobs start once the bot is
// up, since alert and digest delivery needs the live bot handle.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.adapter.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: %w", err)
	}

	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.adapter, reg, router.TextOptions{
		UnknownText: a.adapter.UnknownText(),
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart:     a.startJobs,
		OnStop:      a.shutdown,
	}, nil
}

func (a *App) startJobs(ctx context.Context, rt coretelegram.Runtime) error {
	sink := notify.NewTelegramSink(rt.Bot)

	col := collector.New(a.feed, a.store.Prices, a.store.Alerts, sink)
	dig := collector.NewDigest(a.store.Prices, a.store.Subscriptions, sink, a.cfg.Jobs.WeekStartDay())

	a.jobs = collector.NewJobs(col, dig, a.cfg.Jobs)
	a.jobs.Start(ctx)
	return nil
}

func (a *App) shutdown(_ context.Context, _ coretelegram.Runtime) error {
	if a.jobs != nil {
		a.jobs.Stop()
	}
	return a.db.Close()
}
