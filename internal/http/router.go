package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-blog/internal/config"
	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/internal/http/handlers"
	"github.com/pribylovaa/go-blog/internal/http/middleware"
	"github.com/pribylovaa/go-blog/internal/ratelimit"
	"github.com/pribylovaa/go-blog/internal/service"
	"github.com/pribylovaa/go-blog/pkg/envelope"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api/v1"; если пустой — роуты регистрируются на корне.

	BodyLimit    int64
	TrustProxy   bool
	CORSOrigins  []string
	CORSAllowAny bool
	Limits       config.LimitsConfig

	// Limiter nil — без ограничения частоты, Metrics nil — без метрик.
	Limiter ratelimit.Limiter
	Metrics *middleware.Metrics
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: id попадает в каждую запись
		middleware.Logging(opts.Logger, opts.TrustProxy),
	)
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Middleware())
	}
	root.Use(
		middleware.CORS(opts.CORSOrigins, opts.CORSAllowAny),
		middleware.SecurityHeaders(),
		middleware.RateLimit(opts.Limiter, opts.TrustProxy),
		middleware.Timeout(opts.Timeout),
		middleware.Authenticate(svc),
	)

	root.NotFound(notFound)
	root.MethodNotAllowed(methodNotAllowed)

	h := handlers.New(svc, opts.Limits, opts.BodyLimit)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		sub.NotFound(notFound)
		sub.MethodNotAllowed(methodNotAllowed)
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	admin := middleware.RequireRole(models.RoleAdmin)

	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	// users
	r.With(middleware.RequireAuth()).Get("/users/me", h.Me)
	r.With(middleware.RequireAuth()).Patch("/users/me", h.UpdateMe)

	// posts
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{id}", h.GetPost)
	r.With(admin).Post("/posts", h.CreatePost)
	r.With(admin).Patch("/posts/{id}", h.UpdatePost)
	r.With(admin).Delete("/posts/{id}", h.DeletePost)

	// comments
	r.Get("/posts/{id}/comments", h.ListComments)
	r.Post("/posts/{id}/comments", h.CreateComment)
	r.With(admin).Get("/comments/pending", h.ListPendingComments)
	r.With(admin).Patch("/comments/{id}/approve", h.ApproveComment)
	r.With(admin).Delete("/comments/{id}", h.DeleteComment)

	// categories
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{id}", h.GetCategory)
	r.With(admin).Post("/categories", h.CreateCategory)
	r.With(admin).Patch("/categories/{id}", h.UpdateCategory)
	r.With(admin).Delete("/categories/{id}", h.DeleteCategory)

	// tags
	r.Get("/tags", h.ListTags)
	r.Get("/tags/{id}", h.GetTag)
	r.With(admin).Post("/tags", h.CreateTag)
	r.With(admin).Delete("/tags/{id}", h.DeleteTag)

	// works
	r.Get("/works", h.ListWorks)
	r.Get("/works/{id}", h.GetWork)
	r.With(admin).Post("/works", h.CreateWork)
	r.With(admin).Patch("/works/{id}", h.UpdateWork)
	r.With(admin).Delete("/works/{id}", h.DeleteWork)

	// search
	r.Get("/search", h.Search)

	// media
	r.With(admin).Post("/media/presign", h.PresignMedia)
	r.With(admin).Post("/media/confirm", h.ConfirmMedia)

	r.Get("/health", h.Health)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	apierrors.Status(w, r, http.StatusNotFound, envelope.CodeNotFound, "Route not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierrors.Status(w, r, http.StatusMethodNotAllowed, envelope.CodeMethodNotAllowed, "Method not allowed")
}
