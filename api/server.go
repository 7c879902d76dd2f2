// Package api exposes the mockprep engine over HTTP with gin.
//
// All routes live under a configurable base path (default "/api").
// Authenticated routes expect an HS256 bearer token issued by
// /auth/register, /auth/login or /auth/google; the Stripe webhook is
// unauthenticated and verified by signature instead.
package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/identity/google"
	"github.com/xraph/mockprep/intake"
)

// DefaultBasePath is used when Config.BasePath is empty.
const DefaultBasePath = "/api"

// Config configures a Server.
type Config struct {
	BasePath    string
	CORSOrigins []string
	JWTSecret   string
	TokenTTL    time.Duration
	// VapiPublicKey is returned by GET /vapi/config.
	VapiPublicKey string
	// StripePublishableKey is returned with each payment intent so the
	// browser can mount the payment form.
	StripePublishableKey string
	// MaxWebhookBytes caps the webhook body (default 64 KiB).
	MaxWebhookBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	engine  *mockprep.Engine
	tokens  *Tokens
	fetcher *intake.Fetcher
	google  *google.Verifier
	logger  *slog.Logger
	config  Config
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithFetcher sets the job posting fetcher used by /intake/job.
func WithFetcher(f *intake.Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// WithGoogle enables POST /auth/google. Without it the route answers 501.
func WithGoogle(v *google.Verifier) Option {
	return func(s *Server) { s.google = v }
}

// New returns a Server for engine.
func New(engine *mockprep.Engine, cfg Config, opts ...Option) *Server {
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxWebhookBytes <= 0 {
		cfg.MaxWebhookBytes = 64 << 10
	}
	s := &Server{
		engine:  engine,
		tokens:  NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		fetcher: intake.NewFetcher(),
		logger:  engine.Logger(),
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the token issuer, mainly for tests and admin tooling.
func (s *Server) Tokens() *Tokens { return s.tokens }

// Handler returns the full HTTP handler: a gin router with recovery and
// access logging, wrapped in CORS.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(io.Discard, s.recover), s.accessLog())
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "code": http.StatusNotFound})
	})

	s.Register(r.Group(s.config.BasePath))

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           300,
	})(r)
}

// Register mounts every route on r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/healthz", s.health)
	r.GET("/plans", s.listPlans)
	r.GET("/vapi/config", s.vapiConfig)
	r.POST("/webhooks/stripe", s.stripeWebhook)

	auth := r.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/google", s.googleSignIn)

	authed := r.Group("", s.authenticate())
	authed.GET("/auth/me", s.me)
	authed.PUT("/auth/me", s.updateMe)

	authed.GET("/credits", s.balance)
	authed.GET("/credits/transactions", s.transactions)
	authed.GET("/credits/reconcile", s.reconcile)
	authed.POST("/credits/grant", s.requireAdmin(), s.grant)

	conv := authed.Group("/conversations")
	conv.POST("", s.startConversation)
	conv.GET("", s.listConversations)
	conv.GET("/:id", s.getConversation)
	conv.PUT("/:id/transcript", s.updateTranscript)
	conv.POST("/:id/deduct", s.deductCredits)
	conv.POST("/:id/complete", s.completeConversation)
	conv.POST("/:id/cancel", s.cancelConversation)

	pay := authed.Group("/payments")
	pay.POST("/checkout", s.checkout)
	pay.POST("/create-intent", s.createIntent)
	pay.POST("/confirm", s.confirm)
	pay.POST("/recover", s.recoverPayments)
	pay.GET("", s.listPayments)

	authed.GET("/referrals", s.referrals)
	authed.GET("/dashboard", s.dashboard)

	in := authed.Group("/intake")
	in.POST("/job", s.intakeJob)
	in.POST("/resume", s.intakeResume)
	in.POST("/prompt", s.intakePrompt)
}

func (s *Server) recover(c *gin.Context, rec any) {
	s.logger.Error("panic serving request", "path", c.Request.URL.Path, "panic", rec)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  http.StatusInternalServerError,
	})
}

// accessLog writes one line per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if u, ok := c.Get(userKey); ok {
			attrs = append(attrs, "user_id", userID(u))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Err)
		}
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
