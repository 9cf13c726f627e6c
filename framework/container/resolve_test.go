package container_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-container/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Mailer interface{ Send(to string) string }

type smtpMailer struct {
	Host string `default:"localhost"`
}

func (m *smtpMailer) Send(to string) string { return "smtp://" + m.Host + "/" + to }

type logMailer struct{}

func (*logMailer) Send(to string) string { return "log:" + to }

type Notifier struct {
	Mailer Mailer
}

type Digest struct {
	Mailer Mailer
}

type Report struct {
	Title string
	Limit int `default:"10"`
}

type Dashboard struct {
	Cache Cache `optional:"true"`
}

type Broadcaster struct {
	Mailers []Mailer
}

type Strict struct {
	Secret string
}

type Service struct {
	Logger Logger
}

// vault keeps its state unexported, so the container cannot fill it in.
type vault struct{ secret string }

type Archive struct {
	Vault *vault
}

type Catalog struct {
	Vault *vault `optional:"true"`
}

type nodeA struct{ B *nodeB }
type nodeB struct{ A *nodeA }

func bindSMTP(t *testing.T, c *container.Container) {
	t.Helper()
	_, err := c.Define(smtpMailer{})
	require.NoError(t, err)
	require.NoError(t, c.Bind(container.Key[Mailer](), container.Key[*smtpMailer]()))
}

// ── Auto-wiring ───────────────────────────────────────────────────────────────

func TestMake_AutowiresStruct(t *testing.T) {
	c := container.New()
	bindSMTP(t, c)

	n, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	assert.Equal(t, "smtp://localhost/bob", n.Mailer.Send("bob"))
}

func TestMake_UnboundInterface(t *testing.T) {
	c := container.New()

	_, err := container.Make[*Notifier](c)
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrNotInstantiable)

	var resolutionErr *container.BindingResolutionError
	require.ErrorAs(t, err, &resolutionErr)
	assert.Equal(t, []string{container.Key[Notifier]()}, resolutionErr.Stack)
	assert.Contains(t, err.Error(), "is not instantiable while building")
}

func TestMake_UnknownClass(t *testing.T) {
	c := container.New()

	_, err := c.Make("Nope")
	assert.ErrorIs(t, err, container.ErrClassNotFound)
	assert.EqualError(t, err, "Target class [Nope] does not exist.")
}

func TestMake_OptionalClassFallsBackToZero(t *testing.T) {
	c := container.New()

	d, err := container.Make[*Dashboard](c)
	require.NoError(t, err)
	assert.Nil(t, d.Cache)

	require.NoError(t, c.Bind(container.Key[Cache](), cacheFactory("c:")))
	d, err = container.Make[*Dashboard](c)
	require.NoError(t, err)
	assert.NotNil(t, d.Cache)
}

func TestMake_TransientConsumerSharesSingletonDependency(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Singleton(container.Key[Logger](), func(*container.Container) any {
		return &FileLogger{}
	}))

	a, err := container.Make[*Service](c)
	require.NoError(t, err)
	b, err := container.Make[*Service](c)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	require.NotNil(t, a.Logger)
	assert.Same(t, a.Logger, b.Logger)
}

func TestMake_StructWithUnexportedFieldsIsNotInstantiable(t *testing.T) {
	c := container.New()

	_, err := container.Make[*Archive](c)
	assert.ErrorIs(t, err, container.ErrNotInstantiable)
	assert.Contains(t, err.Error(), "Target ["+container.Key[vault]()+"] is not instantiable")
}

func TestMake_OptionalStructWithUnexportedFieldsFallsBackToNil(t *testing.T) {
	c := container.New()

	got, err := container.Make[*Catalog](c)
	require.NoError(t, err)
	assert.Nil(t, got.Vault)
}

func TestMake_StructWithUnexportedFieldsWhenBound(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Instance(container.Key[*vault](), &vault{secret: "s3"}))

	got, err := container.Make[*Archive](c)
	require.NoError(t, err)
	assert.Equal(t, "s3", got.Vault.secret)
}

func TestMake_DefinedStructWithUnexportedFields(t *testing.T) {
	c := container.New()
	_, err := c.Define(vault{})
	require.NoError(t, err)

	got, err := container.Make[*Archive](c)
	require.NoError(t, err)
	assert.NotNil(t, got.Vault)
}

func TestMake_SingletonStruct(t *testing.T) {
	c := container.New()
	bindSMTP(t, c)
	require.NoError(t, c.Singleton(container.Key[*Notifier](), nil))

	first, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	second, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

// ── Primitives ────────────────────────────────────────────────────────────────

func TestMake_PrimitiveDefaultsAndContext(t *testing.T) {
	c := container.New()
	c.When(container.Key[Report]()).Needs("$title").Give("Weekly")

	r, err := container.Make[*Report](c)
	require.NoError(t, err)
	assert.Equal(t, &Report{Title: "Weekly", Limit: 10}, r)
}

func TestMake_PrimitiveFromFactory(t *testing.T) {
	c := container.New()
	calls := 0
	c.When(container.Key[Report]()).Needs("$title").Give(func(*container.Container) any {
		calls++
		return "Monthly"
	})

	r, err := container.Make[*Report](c)
	require.NoError(t, err)
	assert.Equal(t, "Monthly", r.Title)
	assert.Equal(t, 1, calls)
}

func TestMake_UnresolvablePrimitive(t *testing.T) {
	c := container.New()

	_, err := container.Make[*Strict](c)
	assert.ErrorIs(t, err, container.ErrUnresolvablePrimitive)
	assert.Contains(t, err.Error(), "Unresolvable dependency resolving [Parameter #0 [ <required> string secret ]]")
}

// ── Parameter overrides ───────────────────────────────────────────────────────

func TestMake_ParameterOverrides(t *testing.T) {
	c := container.New()

	r, err := container.Make[*Report](c, container.Parameters{"title": "Daily", "limit": 3})
	require.NoError(t, err)
	assert.Equal(t, &Report{Title: "Daily", Limit: 3}, r)
}

func TestMake_ParameterOverrideForClassParameter(t *testing.T) {
	c := container.New()
	mailer := &logMailer{}

	n, err := container.Make[*Notifier](c, container.Parameters{"mailer": mailer})
	require.NoError(t, err)
	assert.Same(t, mailer, n.Mailer)
}

func TestMake_ParameterOverridesOnlyApplyToOuterBuild(t *testing.T) {
	c := container.New()
	bindSMTP(t, c)

	n, err := container.Make[*Notifier](c, container.Parameters{"host": "mx.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "smtp://localhost/x", n.Mailer.Send("x"))
}

func TestMake_ParametersBypassSharedInstance(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Singleton(container.Key[*Report](), nil))

	shared, err := container.Make[*Report](c, container.Parameters{"title": "shared"})
	require.NoError(t, err)
	fresh, err := container.Make[*Report](c, container.Parameters{"title": "fresh"})
	require.NoError(t, err)

	assert.NotSame(t, shared, fresh)
	assert.Equal(t, "fresh", fresh.Title)
}

func TestMake_MergesParameterSets(t *testing.T) {
	c := container.New()

	r, err := container.Make[*Report](c,
		container.Parameters{"title": "a", "limit": 1},
		container.Parameters{"title": "b"},
	)
	require.NoError(t, err)
	assert.Equal(t, &Report{Title: "b", Limit: 1}, r)
}

func TestFactory_ReceivesParameters(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Bind("greeting", func(_ *container.Container, params container.Parameters) (any, error) {
		return "hello " + params["name"].(string), nil
	}))

	got, err := c.Make("greeting", container.Parameters{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", got)
}

// ── Contextual binding ────────────────────────────────────────────────────────

func TestContextual_OverridesGlobalBinding(t *testing.T) {
	c := container.New()
	bindSMTP(t, c)
	_, err := c.Define(logMailer{})
	require.NoError(t, err)
	c.When(container.Key[Notifier]()).Needs(container.Key[Mailer]()).Give(container.Key[*logMailer]())

	n, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	d, err := container.Make[*Digest](c)
	require.NoError(t, err)

	assert.Equal(t, "log:x", n.Mailer.Send("x"))
	assert.Equal(t, "smtp://localhost/x", d.Mailer.Send("x"))
}

func TestContextual_SeveralConsumersAndFactory(t *testing.T) {
	c := container.New()
	c.When(container.Key[Notifier](), container.Key[Digest]()).
		Needs(container.Key[Mailer]()).
		Give(func(*container.Container) any { return &logMailer{} })

	n, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	d, err := container.Make[*Digest](c)
	require.NoError(t, err)

	assert.IsType(t, &logMailer{}, n.Mailer)
	assert.IsType(t, &logMailer{}, d.Mailer)
}

func TestContextual_NeedsAlias(t *testing.T) {
	c := container.New()
	c.Alias(container.Key[Mailer](), "mailer")
	c.When(container.Key[Notifier]()).Needs("mailer").GiveValue(&logMailer{})

	n, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	assert.IsType(t, &logMailer{}, n.Mailer)
}

func TestContextual_WinsOverSharedInstance(t *testing.T) {
	c := container.New()
	shared := &smtpMailer{Host: "shared"}
	require.NoError(t, c.Instance(container.Key[Mailer](), shared))
	c.When(container.Key[Notifier]()).Needs(container.Key[Mailer]()).GiveValue(&logMailer{})

	n, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	assert.IsType(t, &logMailer{}, n.Mailer)

	still, err := container.Make[Mailer](c)
	require.NoError(t, err)
	assert.Same(t, shared, still)
}

func TestContextual_OnlyInnermostConsumer(t *testing.T) {
	type Outer struct{ Notifier *Notifier }

	c := container.New()
	bindSMTP(t, c)
	c.When(container.Key[Outer]()).Needs(container.Key[Mailer]()).GiveValue(&logMailer{})

	o, err := container.Make[*Outer](c)
	require.NoError(t, err)
	assert.IsType(t, &smtpMailer{}, o.Notifier.Mailer)
}

// ── Variadic ──────────────────────────────────────────────────────────────────

func TestVariadic_ListOfAbstracts(t *testing.T) {
	c := container.New()
	_, err := c.Define(smtpMailer{})
	require.NoError(t, err)
	_, err = c.Define(logMailer{})
	require.NoError(t, err)
	c.When(container.Key[Broadcaster]()).
		Needs(container.Key[Mailer]()).
		Give([]string{container.Key[*smtpMailer](), container.Key[*logMailer]()})

	b, err := container.Make[*Broadcaster](c)
	require.NoError(t, err)
	require.Len(t, b.Mailers, 2)
	assert.IsType(t, &smtpMailer{}, b.Mailers[0])
	assert.IsType(t, &logMailer{}, b.Mailers[1])
}

func TestVariadic_GiveTagged(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Bind("smtp", func(*container.Container) any { return &smtpMailer{Host: "mx"} }))
	require.NoError(t, c.Bind("log", func(*container.Container) any { return &logMailer{} }))
	c.Tag([]string{"smtp", "log"}, "mailers")
	c.When(container.Key[Broadcaster]()).Needs(container.Key[Mailer]()).GiveTagged("mailers")

	b, err := container.Make[*Broadcaster](c)
	require.NoError(t, err)
	require.Len(t, b.Mailers, 2)
	assert.Equal(t, "smtp://mx/x", b.Mailers[0].Send("x"))
}

func TestVariadic_EmptyWhenUnresolvable(t *testing.T) {
	c := container.New()

	b, err := container.Make[*Broadcaster](c)
	require.NoError(t, err)
	assert.Empty(t, b.Mailers)
}

// ── Build stack ───────────────────────────────────────────────────────────────

func TestBuildStack_VisibleToFactories(t *testing.T) {
	c := container.New()
	var seen []string
	require.NoError(t, c.Bind(container.Key[Mailer](), func(c *container.Container) any {
		seen = c.BuildStack()
		return &logMailer{}
	}))

	_, err := container.Make[*Notifier](c)
	require.NoError(t, err)
	assert.Equal(t, []string{container.Key[Notifier]()}, seen)
	assert.Empty(t, c.BuildStack())
}

func TestBuildStack_RestoredAfterFailure(t *testing.T) {
	c := container.New()

	_, err := container.Make[*Notifier](c)
	require.Error(t, err)
	assert.Empty(t, c.BuildStack())

	bindSMTP(t, c)
	_, err = container.Make[*Notifier](c)
	assert.NoError(t, err)
}

func TestBuildStack_RestoredAfterPanic(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Bind(container.Key[Mailer](), func(*container.Container) any { panic("boom") }))

	assert.Panics(t, func() { _, _ = container.Make[*Notifier](c) })
	assert.Empty(t, c.BuildStack())
}

// ── Cycles ────────────────────────────────────────────────────────────────────

func TestMake_CircularDependency(t *testing.T) {
	c := container.New()

	_, err := container.Make[*nodeA](c)
	assert.ErrorIs(t, err, container.ErrCircularDependency)
	assert.Contains(t, err.Error(), "Circular dependency detected while resolving ["+container.Key[nodeA]()+"]")
	assert.Empty(t, c.BuildStack())
}

// ── Get ───────────────────────────────────────────────────────────────────────

func TestGet(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Instance("answer", 42))
	require.NoError(t, c.Bind("broken", func(*container.Container) (any, error) {
		return nil, errors.New("broken")
	}))

	t.Run("bound", func(t *testing.T) {
		got, err := c.Get("answer")
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := c.Get("missing")
		var notFound *container.EntryNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "missing", notFound.ID)
		assert.ErrorIs(t, err, container.ErrClassNotFound)
	})

	t.Run("bound but failing", func(t *testing.T) {
		_, err := c.Get("broken")
		var notFound *container.EntryNotFoundError
		assert.False(t, errors.As(err, &notFound))
		assert.EqualError(t, err, "broken")
	})
}

func TestGet_CircularIsNotNotFound(t *testing.T) {
	c := container.New()
	_, err := c.Define(nodeA{})
	require.NoError(t, err)

	_, err = c.Get(container.Key[nodeA]())
	var notFound *container.EntryNotFoundError
	assert.False(t, errors.As(err, &notFound))
	assert.ErrorIs(t, err, container.ErrCircularDependency)
}

// ── Deferred loaders ──────────────────────────────────────────────────────────

func TestDeferred_LoadsOnFirstResolve(t *testing.T) {
	c := container.New()
	loads := 0
	c.Deferred("mailer", func(c *container.Container) error {
		loads++
		return c.Singleton("mailer", func(*container.Container) any { return &logMailer{} })
	})

	assert.True(t, c.Bound("mailer"))
	assert.Equal(t, 0, loads)

	first, err := c.Make("mailer")
	require.NoError(t, err)
	second, err := c.Make("mailer")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loads)
}

func TestDeferred_LoaderMayAlias(t *testing.T) {
	c := container.New()
	c.Deferred("mailer", func(c *container.Container) error {
		if err := c.Singleton("mail.log", func(*container.Container) any { return &logMailer{} }); err != nil {
			return err
		}
		c.Alias("mail.log", "mailer")
		return nil
	})

	got, err := c.Make("mailer")
	require.NoError(t, err)
	impl, err := c.Make("mail.log")
	require.NoError(t, err)
	assert.Same(t, impl, got)
}

func TestDeferred_LoaderError(t *testing.T) {
	c := container.New()
	errLoad := errors.New("no credentials")
	c.Deferred("mailer", func(*container.Container) error { return errLoad })

	_, err := c.Make("mailer")
	assert.ErrorIs(t, err, errLoad)
}

// ── Typed helpers ─────────────────────────────────────────────────────────────

func TestResolve_TypeMismatch(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Instance("answer", "forty-two"))

	_, err := container.Resolve[int](c, "answer")
	var resolutionErr *container.BindingResolutionError
	require.ErrorAs(t, err, &resolutionErr)
	assert.Contains(t, err.Error(), "Resolved [answer] to string, not int")
}

func TestResolve_Converts(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Instance("mailer", &logMailer{}))

	m, err := container.Resolve[Mailer](c, "mailer")
	require.NoError(t, err)
	assert.Equal(t, "log:x", m.Send("x"))
}

func TestMustResolve(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Instance("answer", 42))

	assert.Equal(t, 42, container.MustResolve[int](c, "answer"))
	assert.Panics(t, func() { container.MustResolve[int](c, "missing") })
}

func TestBuild_IgnoresBinding(t *testing.T) {
	c := container.New()
	bindSMTP(t, c)
	require.NoError(t, c.Bind(container.Key[*smtpMailer](), func(*container.Container) any { return &logMailer{} }))

	got, err := c.Build(container.Key[*smtpMailer]())
	require.NoError(t, err)
	assert.IsType(t, &smtpMailer{}, got)

	_, err = c.Build(42)
	assert.ErrorIs(t, err, container.ErrInvalidConcrete)
}

func TestWithCycleDetectionDisabled_StillBuildsAcyclic(t *testing.T) {
	c := container.New(container.WithCycleDetection(false))
	bindSMTP(t, c)

	_, err := container.Make[*Notifier](c)
	assert.NoError(t, err)
}
