package router

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/config"
	"github.com/placementpulse/api/database"
	"github.com/placementpulse/api/handlers"
	auth_handlers "github.com/placementpulse/api/handlers/auth"
	dashboard_handlers "github.com/placementpulse/api/handlers/dashboard"
	enrollment_handlers "github.com/placementpulse/api/handlers/enrollment"
	order_handlers "github.com/placementpulse/api/handlers/order"
	receipt_handlers "github.com/placementpulse/api/handlers/receipt"
	"github.com/placementpulse/api/services"
	"github.com/placementpulse/api/services/events"
	"github.com/placementpulse/api/services/razorpay"
	"github.com/placementpulse/api/services/receipts"
	"github.com/placementpulse/api/utils"
	"github.com/placementpulse/api/utils/auth"
	"github.com/placementpulse/api/utils/cache"
	"github.com/placementpulse/api/utils/metrics"
	"github.com/placementpulse/api/utils/middleware"
)

// Dependencies are the shared resources the routes are built from
type Dependencies struct {
	Store  *database.GORMStore
	Env    *config.EnviornmentVariable
	Logger *slog.Logger

	// Optional. Cache is nil when Redis is unreachable and Receipts is nil
	// when the receipt bucket is not configured.
	Cache     *cache.RedisCache
	Publisher events.Publisher
	Receipts  *receipts.SpacesArchiver
}

func SetupRoutes(app *fiber.App, deps Dependencies) error {
	env := deps.Env
	if deps.Logger == nil {
		deps.Logger = utils.NopLogger()
	}
	if env.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	// Initialize JWT manager with config
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Expiry: 24 * time.Hour, // Access token expires in 24 hours
		Issuer: env.JWT_ISSUER,
	})

	// Redis backs login throttling, the enrollment lock and the announcements cache
	var (
		attempts  middleware.AttemptStore
		locker    services.Locker
		jsonCache services.JSONCache
	)
	if deps.Cache != nil {
		attempts = deps.Cache
		locker = deps.Cache
		jsonCache = deps.Cache
	} else {
		deps.Logger.Warn("Redis unavailable: brute force protection, enrollment locks and caching are disabled")
	}

	// The gateway client exists only with both keys; order creation reports the gap
	var gateway services.Gateway
	if env.HasGatewayCredentials() {
		gateway = razorpay.NewClient(razorpay.Config{
			KeyID:     env.RAZORPAY_KEY_ID,
			KeySecret: env.RAZORPAY_KEY_SECRET,
			BaseURL:   env.RAZORPAY_BASE_URL,
			Timeout:   env.GATEWAY_TIMEOUT,
		})
	}

	// Receipts are archived after each commit and served back to their owner
	var (
		archiver     services.ReceiptArchiver
		receiptStore receipt_handlers.Fetcher
	)
	if deps.Receipts != nil {
		archiver = deps.Receipts
		receiptStore = deps.Receipts
	}

	store := deps.Store
	bruteForceProtection := middleware.NewBruteForceProtection(attempts)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, store)

	orderService := services.NewOrderService(store, gateway, env.DEFAULT_CURRENCY, deps.Logger)
	enrollmentService := services.NewEnrollmentService(services.EnrollmentDeps{
		Catalog:               store,
		Users:                 store,
		Payments:              store,
		Gateway:               gateway,
		KeySecret:             env.RAZORPAY_KEY_SECRET,
		Locker:                locker,
		Publisher:             deps.Publisher,
		Receipts:              archiver,
		AllowImplicitAccounts: env.ALLOW_IMPLICIT_ACCOUNTS,
		Logger:                deps.Logger,
	})
	dashboardService := services.NewDashboardService(store, jsonCache, deps.Logger)

	authHandler := auth_handlers.NewAuthHandler(store, jwtManager, bruteForceProtection)
	orderHandler := order_handlers.NewOrderHandler(orderService)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(enrollmentService)
	dashboardHandler := dashboard_handlers.NewDashboardHandler(dashboardService)
	receiptHandler := receipt_handlers.NewReceiptHandler(receiptStore)

	// Apply security middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoints (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandlePing, store))
	app.Get("/health", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))
	app.Get("/metrics", metrics.Handler)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.Me)

	// Checkout
	api.Post("/razorpay/order-bulk", orderHandler.CreateBulkOrder)
	api.Post("/enroll/multi-course", authMiddleware.Optional(), enrollmentHandler.EnrollMultiCourse)

	// Learner dashboard (protected)
	api.Get("/announcements", authMiddleware.Required(), dashboardHandler.ListAnnouncements)
	api.Get("/dashboard/courses", authMiddleware.Required(), dashboardHandler.ListCourses)
	api.Get("/receipts/:orderId", authMiddleware.Required(), receiptHandler.GetReceipt)

	return nil
}
