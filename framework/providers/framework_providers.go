package providers

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/km-arc/go-laravel-container/framework/config"
	"github.com/km-arc/go-laravel-container/framework/container"
	"github.com/km-arc/go-laravel-container/framework/database"
	"github.com/km-arc/go-laravel-container/framework/routing"
	"github.com/km-arc/go-laravel-container/framework/schedule"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration into the container.
//
// Bound abstracts:
//   - "config"           → *config.Config
//   - Key[*config.Config]() (alias)
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->instance('config', $config = new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	cfg := p.Config
	if cfg == nil {
		cfg = config.Load()
	}
	if err := app.Instance("config", cfg); err != nil {
		return err
	}
	app.Alias("config", container.Key[*config.Config]())
	return nil
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider exposes the container's logger.
//
// Bound abstracts:
//   - "log"             → *zap.Logger
//   - Key[*zap.Logger]() (alias)
type LogServiceProvider struct {
	container.BaseProvider
}

func (p *LogServiceProvider) Register(app *container.Container) error {
	if err := app.Instance("log", app.Logger()); err != nil {
		return err
	}
	app.Alias("log", container.Key[*zap.Logger]())
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Bound abstracts:
//   - "router"              → *routing.Router
//   - Key[*routing.Router]() (alias)
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	if err := app.Singleton("router", func(c *container.Container) any {
		return routing.New(c)
	}); err != nil {
		return err
	}
	app.Alias("router", container.Key[*routing.Router]())
	return nil
}

// Boot logs the router once every provider has registered.
func (p *RoutingServiceProvider) Boot(app *container.Container) error {
	if _, err := app.Make("router"); err != nil {
		return err
	}
	app.Logger().Debug("router ready")
	return nil
}

// ── DatabaseServiceProvider ───────────────────────────────────────────────────

// DatabaseServiceProvider opens the connection pool the first time it is
// needed. It is deferred: nothing connects until "db" (or *sql.DB) is resolved.
//
// Bound abstracts:
//   - "db"              → *sql.DB
//   - Key[*sql.DB]()    (alias)
type DatabaseServiceProvider struct {
	container.BaseProvider
}

func (p *DatabaseServiceProvider) Register(app *container.Container) error {
	if err := app.Singleton("db", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		return database.Open(context.Background(), cfg.DB)
	}); err != nil {
		return err
	}
	app.Alias("db", container.Key[*sql.DB]())
	return nil
}

func (p *DatabaseServiceProvider) IsDeferred() bool { return true }

func (p *DatabaseServiceProvider) Provides() []string {
	return []string{"db", container.Key[*sql.DB]()}
}

// ── ScheduleServiceProvider ───────────────────────────────────────────────────

// ScheduleServiceProvider registers the task scheduler.
//
// Bound abstracts:
//   - "schedule"               → *schedule.Schedule
//   - Key[*schedule.Schedule]() (alias)
//
// Laravel equivalent:
//
//	// Illuminate\Console\Scheduling\ScheduleServiceProvider
type ScheduleServiceProvider struct {
	container.BaseProvider
}

func (p *ScheduleServiceProvider) Register(app *container.Container) error {
	if err := app.Singleton("schedule", func(c *container.Container) any {
		return schedule.New(c)
	}); err != nil {
		return err
	}
	app.Alias("schedule", container.Key[*schedule.Schedule]())
	return nil
}
