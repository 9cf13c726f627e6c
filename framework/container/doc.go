// Package container provides a Laravel-style IoC (Inversion of Control)
// container and Service Provider system for Go.
//
// # Overview
//
// The container turns an abstract identifier (a class identifier such as
// container.Key[Logger](), or any string key) into a fully constructed value.
// Classes are described once with reflection; their constructor parameters are
// resolved recursively, so only factories with real logic need writing.
//
// # Classes
//
//	// Struct fields are constructor parameters.
//	type UserService struct {
//	    Repo    UserRepository
//	    PerPage int `default:"20"`
//	}
//
//	// Constructor functions name their parameters explicitly.
//	c.Define(NewSQLUserRepository, reflection.Named("db", "table"))
//
// Class-typed parameters (interfaces, structs, pointers to structs) are made
// through the container; primitives come from parameter overrides, "$name"
// contextual bindings or their defaults.
//
// # Bindings
//
//	// Laravel: $app->bind(UserRepository::class, SqlUserRepository::class)
//	c.Bind(container.Key[UserRepository](), NewSQLUserRepository)
//
//	// Laravel: $app->singleton(Cache::class, fn($app) => new RedisCache)
//	c.Singleton("cache", func(c *container.Container) any { return NewRedisCache() })
//
//	// Laravel: $app->instance(Config::class, $config)
//	c.Instance("config", cfg)
//
//	// Laravel: $app->alias(Cache::class, 'cache')
//	c.Alias("cache", "cacheManager")
//
// # Resolving
//
//	svc, err := container.Make[*UserService](c)
//	raw, err := c.Make("cache")
//	mailer, err := c.Make("mailer", container.Parameters{"from": "ops@example.com"})
//
// # Contextual Binding
//
//	// Laravel: $app->when(PhotoController::class)
//	//              ->needs(Filesystem::class)
//	//              ->give(S3Filesystem::class)
//	c.When(container.Key[PhotoController]()).
//	    Needs(container.Key[Filesystem]()).
//	    Give(container.Key[S3Filesystem]())
//
//	c.When(container.Key[PhotoController]()).Needs("$maxSize").Give(1 << 20)
//
// # Calling
//
//	// Laravel: $app->call('UserController@show', ['id' => 7])
//	out, err := c.Call("UserController@Show", container.Parameters{"id": 7})
//
// # Service Providers
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot()
//
// A Container is not safe for concurrent use; callers sharing one across
// goroutines serialise access with Lock and Unlock.
package container
