package routing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/km-arc/go-laravel-container/framework/container"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// StatusCoder is implemented by action errors that carry an HTTP status.
// Other errors are rendered with 500.
type StatusCoder interface {
	StatusCode() int
}

// Router wraps chi.Router with Laravel-style helpers. Action routes are
// dispatched through the container, so controllers get their dependencies
// injected.
type Router struct {
	mux chi.Router
	app *container.Container
	log *zap.Logger
}

// New creates a Router bound to app, with request-id, request logging and
// panic recovery middleware. The current request is registered in app as
// "request" for the duration of each action.
func New(app *container.Container) *Router {
	r := &Router{
		mux: chi.NewRouter(),
		app: app,
		log: app.Logger().Named("router"),
	}
	if !app.IsAlias(container.Key[*http.Request]()) {
		app.Alias("request", container.Key[*http.Request]())
	}
	r.mux.Use(requestID, r.logRequests, middleware.Recoverer, middleware.RealIP)
	return r
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Any registers a handler for all common HTTP methods.
func (r *Router) Any(pattern string, h http.HandlerFunc) {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"} {
		r.mux.Method(m, pattern, h)
	}
}

// ── Actions ──────────────────────────────────────────────────────────────────

// Action routes method+pattern to a "Controller@method" action, called through
// the container. URL parameters are passed by name, the response writer and
// request by class, and the request id as "requestID". A returned value is
// written as JSON unless the action already wrote a response; errors are
// written as {"error": "..."}.
//
//	// Laravel: Route::get('/users/{id}', 'UserController@show')
//	r.Action(http.MethodGet, "/users/{id}", "UserController@Show")
func (r *Router) Action(method, pattern, action string) {
	r.mux.Method(method, pattern, r.dispatch(action))
}

// Resource registers the standard RESTful actions of a resource controller.
//
//	GET    /photos           → controller@Index
//	POST   /photos           → controller@Store
//	GET    /photos/{id}      → controller@Show
//	PUT    /photos/{id}      → controller@Update
//	PATCH  /photos/{id}      → controller@Update
//	DELETE /photos/{id}      → controller@Destroy
func (r *Router) Resource(pattern, controller string) {
	r.Action(http.MethodGet, pattern, controller+"@Index")
	r.Action(http.MethodPost, pattern, controller+"@Store")
	r.Action(http.MethodGet, pattern+"/{id}", controller+"@Show")
	r.Action(http.MethodPut, pattern+"/{id}", controller+"@Update")
	r.Action(http.MethodPatch, pattern+"/{id}", controller+"@Update")
	r.Action(http.MethodDelete, pattern+"/{id}", controller+"@Destroy")
}

func (r *Router) dispatch(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		out, err := r.call(action, ww, req)
		if ww.Status() != 0 || ww.BytesWritten() > 0 {
			return
		}
		switch {
		case err != nil:
			status := http.StatusInternalServerError
			var coded StatusCoder
			if errors.As(err, &coded) {
				status = coded.StatusCode()
			}
			if status >= http.StatusInternalServerError {
				r.log.Error("action failed", zap.String("action", action), zap.Error(err))
			}
			writeJSON(ww, status, map[string]string{"error": err.Error()})
		case out == nil:
			ww.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(ww, http.StatusOK, out)
		}
	}
}

func (r *Router) call(action string, w http.ResponseWriter, req *http.Request) (any, error) {
	r.app.Lock()
	defer r.app.Unlock()
	defer r.app.ForgetScopedInstances()

	if err := r.app.Instance("request", req); err != nil {
		return nil, err
	}
	defer r.app.ForgetInstance("request")

	params := container.Parameters{
		container.Key[http.ResponseWriter](): w,
		"requestID":                          RequestID(req.Context()),
	}
	if rctx := chi.RouteContext(req.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return r.app.Call(action, params)
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group. Laravel: Route::group([], fn)
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(r.with(mx))
	})
}

// Prefix creates a sub-router with a URL prefix. Laravel: Route::prefix('/api')
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(r.with(mx))
	})
}

func (r *Router) with(mx chi.Router) *Router {
	return &Router{mux: mx, app: r.app, log: r.log}
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		r.log.Info("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestID(req.Context())),
		)
	})
}

// requestID propagates the caller's X-Request-Id or assigns a fresh UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), requestIDKey{}, id)))
	})
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ── Static files ─────────────────────────────────────────────────────────────

// Static serves a filesystem at the given prefix.
// e.g. router.Static("/public", "./public")
func (r *Router) Static(prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.mux.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param, like $request->route('id')
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.ListenAndServe.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler (for testing etc.).
func (r *Router) Handler() http.Handler {
	return r.mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
