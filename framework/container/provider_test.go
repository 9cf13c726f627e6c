package container_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/km-arc/go-laravel-container/framework/container"
)

// ── stub providers ────────────────────────────────────────────────────────────

type eagerProvider struct {
	container.BaseProvider
	registerCalls int
	bootCalls     int
}

func (p *eagerProvider) Register(app *container.Container) error {
	p.registerCalls++
	return app.Singleton("eager-svc", func(c *container.Container) any { return "eager" })
}

func (p *eagerProvider) Boot(app *container.Container) error {
	p.bootCalls++
	return nil
}

// deferredProvider is lazy: only registered when "deferred-svc" is first resolved.
type deferredProvider struct {
	container.BaseProvider
	registerCalls int
	bootCalls     int
}

func (p *deferredProvider) Register(app *container.Container) error {
	p.registerCalls++
	if err := app.Singleton("deferred-svc", func(c *container.Container) any { return "deferred-value" }); err != nil {
		return err
	}
	return app.Bind("deferred-other", func(c *container.Container) any { return "other" })
}

func (p *deferredProvider) Boot(app *container.Container) error {
	p.bootCalls++
	return nil
}

func (p *deferredProvider) IsDeferred() bool   { return true }
func (p *deferredProvider) Provides() []string { return []string{"deferred-svc", "deferred-other"} }

// multiProvider registers multiple abstracts.
type multiProvider struct {
	container.BaseProvider
}

func (p *multiProvider) Register(app *container.Container) error {
	if err := app.Singleton("alpha", func(c *container.Container) any { return "α" }); err != nil {
		return err
	}
	return app.Singleton("beta", func(c *container.Container) any { return "β" })
}

type failingProvider struct {
	container.BaseProvider
}

var errProviderFailed = errors.New("provider failed")

func (p *failingProvider) Register(*container.Container) error { return errProviderFailed }

func newRegistry() (*container.Container, *container.ProviderRegistry) {
	c := container.New()
	return c, container.NewProviderRegistry(c)
}

// ── ProviderRegistry ──────────────────────────────────────────────────────────

func mustRegister(t *testing.T, reg *container.ProviderRegistry, p container.ServiceProvider) {
	t.Helper()
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register(%T): %v", p, err)
	}
}

func mustBoot(t *testing.T, reg *container.ProviderRegistry) {
	t.Helper()
	if err := reg.Boot(); err != nil {
		t.Fatalf("Boot(): %v", err)
	}
}

func TestRegistry_EagerProvider_RegisterCalled(t *testing.T) {
	_, reg := newRegistry()

	p := &eagerProvider{}
	mustRegister(t, reg, p)

	if p.registerCalls != 1 {
		t.Errorf("Register() should run immediately for eager providers, ran %d times", p.registerCalls)
	}
}

func TestRegistry_EagerProvider_BootCalledAfterBoot(t *testing.T) {
	_, reg := newRegistry()

	p := &eagerProvider{}
	mustRegister(t, reg, p)

	if p.bootCalls != 0 {
		t.Error("Boot() should NOT be called before registry.Boot()")
	}

	mustBoot(t, reg)

	if p.bootCalls != 1 {
		t.Errorf("Boot() calls = %d, want 1", p.bootCalls)
	}
}

func TestRegistry_EagerProvider_ServiceResolvable(t *testing.T) {
	c, reg := newRegistry()
	mustRegister(t, reg, &eagerProvider{})
	mustBoot(t, reg)

	got, err := c.Make("eager-svc")
	if err != nil {
		t.Fatalf("Make(eager-svc): %v", err)
	}
	if got != "eager" {
		t.Errorf("got %v, want eager", got)
	}
}

func TestRegistry_Boot_Idempotent(t *testing.T) {
	_, reg := newRegistry()

	p := &eagerProvider{}
	mustRegister(t, reg, p)

	mustBoot(t, reg)
	mustBoot(t, reg)

	if !reg.Booted() {
		t.Error("Booted() should be true after Boot()")
	}
	if p.bootCalls != 1 {
		t.Errorf("Boot() calls = %d, want 1", p.bootCalls)
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	_, reg := newRegistry()

	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	_, reg := newRegistry()

	p := &eagerProvider{}
	mustRegister(t, reg, p)
	mustRegister(t, reg, p)

	if p.registerCalls != 1 {
		t.Errorf("Register() calls = %d, want 1", p.registerCalls)
	}
	if n := len(reg.Providers()); n != 1 {
		t.Errorf("Providers() has %d entries, want 1", n)
	}
}

func TestRegistry_RegisterError_IsWrapped(t *testing.T) {
	_, reg := newRegistry()

	err := reg.Register(&failingProvider{})
	if !errors.Is(err, errProviderFailed) {
		t.Fatalf("err = %v, want it to wrap errProviderFailed", err)
	}
	if !strings.Contains(err.Error(), "failingProvider") {
		t.Errorf("error %q should name the provider", err)
	}
}

// ── Deferred providers ────────────────────────────────────────────────────────

func TestRegistry_DeferredProvider_NotRegisteredEagerly(t *testing.T) {
	c, reg := newRegistry()

	p := &deferredProvider{}
	mustRegister(t, reg, p)
	mustBoot(t, reg)

	if p.registerCalls != 0 {
		t.Error("deferred Register() should wait for Make()")
	}
	if !c.Bound("deferred-svc") {
		t.Error("deferred abstracts should count as bound")
	}
}

func TestRegistry_DeferredProvider_RegisteredOnFirstMake(t *testing.T) {
	c, reg := newRegistry()

	p := &deferredProvider{}
	mustRegister(t, reg, p)
	mustBoot(t, reg)

	got, err := c.Make("deferred-svc")
	if err != nil {
		t.Fatalf("Make(deferred-svc): %v", err)
	}
	if got != "deferred-value" {
		t.Errorf("got %v, want deferred-value", got)
	}
	if p.registerCalls != 1 {
		t.Errorf("Register() calls = %d, want 1", p.registerCalls)
	}
	if p.bootCalls != 1 {
		t.Error("a deferred provider loaded after Boot() should be booted")
	}
}

func TestRegistry_DeferredProvider_LoadedOnceForAllProvides(t *testing.T) {
	c, reg := newRegistry()

	p := &deferredProvider{}
	mustRegister(t, reg, p)

	for _, abstract := range []string{"deferred-other", "deferred-svc"} {
		if _, err := c.Make(abstract); err != nil {
			t.Fatalf("Make(%s): %v", abstract, err)
		}
	}

	if p.registerCalls != 1 {
		t.Errorf("Register() calls = %d, want 1", p.registerCalls)
	}
	if p.bootCalls != 0 {
		t.Error("Boot() should not run while the registry is not booted")
	}
}

// ── Multiple providers ────────────────────────────────────────────────────────

func TestRegistry_MultipleProviders_AllServicesResolvable(t *testing.T) {
	c, reg := newRegistry()
	mustRegister(t, reg, &multiProvider{})
	mustRegister(t, reg, &eagerProvider{})
	mustBoot(t, reg)

	for abstract, want := range map[string]string{"alpha": "α", "beta": "β", "eager-svc": "eager"} {
		got, err := c.Make(abstract)
		if err != nil {
			t.Errorf("Make(%s): %v", abstract, err)
			continue
		}
		if got != want {
			t.Errorf("Make(%s) = %v, want %s", abstract, got, want)
		}
	}
}

// ── Providers list ────────────────────────────────────────────────────────────

func TestRegistry_Providers_ReturnsEagerOnes(t *testing.T) {
	_, reg := newRegistry()
	mustRegister(t, reg, &eagerProvider{})
	mustRegister(t, reg, &deferredProvider{})

	if n := len(reg.Providers()); n != 1 {
		t.Errorf("Providers() has %d entries, want 1 (deferred providers are not listed)", n)
	}
}

// ── BaseProvider defaults ─────────────────────────────────────────────────────

func TestBaseProvider_Defaults(t *testing.T) {
	var p container.BaseProvider

	if err := p.Boot(container.New()); err != nil {
		t.Errorf("Boot() = %v, want nil", err)
	}
	if p.IsDeferred() {
		t.Error("IsDeferred() should be false")
	}
	if len(p.Provides()) != 0 {
		t.Error("Provides() should be empty")
	}
}

// ── Boot after registration (late provider) ───────────────────────────────────

func TestRegistry_RegisterAfterBoot_BootsImmediately(t *testing.T) {
	_, reg := newRegistry()
	mustBoot(t, reg)

	p := &eagerProvider{}
	mustRegister(t, reg, p)

	if p.bootCalls != 1 {
		t.Errorf("a provider registered after Boot() should be booted, Boot() calls = %d", p.bootCalls)
	}
}
