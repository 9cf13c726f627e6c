package app

import (
	"net/http"

	"github.com/km-arc/go-laravel-container/framework/config"
	"github.com/km-arc/go-laravel-container/framework/container"
	"github.com/km-arc/go-laravel-container/framework/reflection"
	"github.com/km-arc/go-laravel-container/framework/routing"
	"github.com/km-arc/go-laravel-container/framework/schedule"
)

// AppServiceProvider registers the user directory, its routes and its report.
//
// Laravel equivalent: App\Providers\AppServiceProvider + routes/api.php + console schedule
type AppServiceProvider struct {
	container.BaseProvider

	// Database stores users through the "db" connection instead of in memory.
	Database bool

	// Seed users saved on Boot.
	Seed []User

	// ReportSpec is the cron expression of the user report.
	ReportSpec string
}

func (p *AppServiceProvider) Register(app *container.Container) error {
	var repository any = NewMemoryUserRepository
	if p.Database {
		repository = NewSQLUserRepository
	}
	if err := app.Singleton(container.Key[UserRepository](), repository); err != nil {
		return err
	}

	if _, err := app.Define(UserController{}, reflection.As("UserController")); err != nil {
		return err
	}
	if _, err := app.Define(UserReport{}, reflection.As("UserReport")); err != nil {
		return err
	}
	app.When("UserController").Needs("$perPage").GiveValue(config.GetInt("USERS_PER_PAGE", 20))
	return nil
}

func (p *AppServiceProvider) Boot(app *container.Container) error {
	users, err := container.Make[UserRepository](app)
	if err != nil {
		return err
	}
	for _, u := range p.Seed {
		if err := users.Save(u); err != nil {
			return err
		}
	}

	router, err := container.Resolve[*routing.Router](app, "router")
	if err != nil {
		return err
	}
	router.Prefix("/api/v1", func(api *routing.Router) {
		api.Action(http.MethodGet, "/users", "UserController@Index")
		api.Action(http.MethodGet, "/users/{id}", "UserController@Show")
	})

	spec := p.ReportSpec
	if spec == "" {
		spec = "@hourly"
	}
	sched, err := container.Resolve[*schedule.Schedule](app, "schedule")
	if err != nil {
		return err
	}
	if _, err := sched.Call(spec, "UserReport", nil); err != nil {
		return err
	}
	return nil
}
