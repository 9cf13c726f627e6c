package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/km-arc/go-laravel-container/framework/config"
	"github.com/km-arc/go-laravel-container/framework/container"
	"github.com/km-arc/go-laravel-container/framework/logging"
	"github.com/km-arc/go-laravel-container/framework/providers"
	"github.com/km-arc/go-laravel-container/framework/routing"
	"github.com/km-arc/go-laravel-container/framework/schedule"
)

// Version of the framework.
const Version = "0.2.0"

// Application is the top-level application container.
// It embeds the IoC Container and ProviderRegistry so user code can
// call app.Bind(), app.Singleton(), app.Register() directly,
// like $app in Laravel's bootstrap/app.php.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry
}

// New loads configuration from envFiles (default .env), builds the logger and
// registers the framework providers.
func New(envFiles ...string) (*Application, error) {
	cfg := config.Load(envFiles...)
	return NewWithConfig(cfg)
}

// NewWithConfig creates the application from an already loaded configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	log, err := logging.New(cfg.Log, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("app: build logger: %w", err)
	}

	c := container.New(
		container.WithLogger(log.Named("container")),
		container.WithCycleDetection(cfg.Container.DetectCycles),
	)
	app := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
	}
	if err := app.Instance("app", app); err != nil {
		return nil, err
	}
	app.Alias("app", container.Key[*Application]())

	// Same order as Laravel: configuration and logging first.
	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LogServiceProvider{},
		&providers.DatabaseServiceProvider{},
		&providers.RoutingServiceProvider{},
		&providers.ScheduleServiceProvider{},
	} {
		if err := app.Register(p); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustResolve[*config.Config](a.Container, "config")
}

// Log resolves the application logger.
func (a *Application) Log() *zap.Logger {
	return container.MustResolve[*zap.Logger](a.Container, "log")
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a.Container, "router")
}

// Schedule resolves the task scheduler.
func (a *Application) Schedule() *schedule.Schedule {
	return container.MustResolve[*schedule.Schedule](a.Container, "schedule")
}

// DB resolves the database connection pool, connecting on first use.
func (a *Application) DB() (*sql.DB, error) {
	return container.Resolve[*sql.DB](a.Container, "db")
}

// Run boots the application (if needed), starts the scheduler and serves HTTP.
func (a *Application) Run() error {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			return err
		}
	}
	sched := a.Schedule()
	sched.Start()
	defer sched.Stop()

	cfg := a.Config()
	addr := ":" + cfg.App.Port
	a.Log().Info("server starting",
		zap.String("app", cfg.App.Name),
		zap.String("addr", addr),
		zap.String("env", cfg.App.Env),
	)
	defer func() { _ = a.Log().Sync() }()

	if err := http.ListenAndServe(addr, a.Router()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: serve: %w", err)
	}
	return nil
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
