package container

import (
	"fmt"

	"go.uber.org/zap"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider mirrors Laravel's Illuminate\Support\ServiceProvider.
//
// Boot is called after ALL providers have been registered, making it safe to
// resolve other bindings inside Boot.
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) error {
//	    return app.Singleton(container.Key[Mailer](), NewSMTPMailer)
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other bindings here; use Boot for that.
	Register(app *Container) error

	// Boot is called after all providers are registered.
	Boot(app *Container) error

	// Provides lists the abstracts a deferred provider registers.
	//
	//	// Laravel: public function provides(): array { return [Cache::class]; }
	Provides() []string

	// IsDeferred reports whether the provider is registered lazily, the first
	// time one of its Provides abstracts is resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot, Provides and IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred providers.
type ProviderRegistry struct {
	app        *Container
	log        *zap.Logger
	eager      []ServiceProvider
	registered map[ServiceProvider]bool
	loaded     map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		log:        app.Logger().Named("providers"),
		registered: make(map[ServiceProvider]bool),
		loaded:     make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register method, unless it is deferred.
// A provider registered after Boot is booted immediately.
//
//	// Laravel: $app->register(new AppServiceProvider($app))
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, abstract := range provider.Provides() {
			r.app.Deferred(abstract, func(*Container) error { return r.load(provider) })
		}
		r.log.Debug("deferred provider", zap.String("provider", fmt.Sprintf("%T", provider)), zap.Strings("provides", provider.Provides()))
		return nil
	}

	if err := r.register(provider); err != nil {
		return err
	}
	r.eager = append(r.eager, provider)

	if r.booted {
		return r.boot(provider)
	}
	return nil
}

// load registers (and, after Boot, boots) a deferred provider once.
func (r *ProviderRegistry) load(provider ServiceProvider) error {
	if r.loaded[provider] {
		return nil
	}
	if err := r.register(provider); err != nil {
		return err
	}
	if r.booted {
		return r.boot(provider)
	}
	return nil
}

func (r *ProviderRegistry) register(provider ServiceProvider) error {
	r.loaded[provider] = true
	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("container: register %T: %w", provider, err)
	}
	r.log.Debug("registered provider", zap.String("provider", fmt.Sprintf("%T", provider)))
	return nil
}

func (r *ProviderRegistry) boot(provider ServiceProvider) error {
	if err := provider.Boot(r.app); err != nil {
		return fmt.Errorf("container: boot %T: %w", provider, err)
	}
	return nil
}

// Boot calls Boot on every registered provider. Later calls are no-ops.
//
//	// Laravel: $app->boot()
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, provider := range r.eager {
		if err := r.boot(provider); err != nil {
			return err
		}
	}
	r.log.Debug("booted providers", zap.Int("count", len(r.eager)))
	return nil
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns the registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.eager }
