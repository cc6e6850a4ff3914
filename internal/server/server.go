package server

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/config"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/handler"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/middleware"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/phbiling/isp-billing/internal/scheduler"
	"github.com/phbiling/isp-billing/internal/service"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	Clock       clock.Clock
	Stores      *repository.Stores
	RedisClient *redis.Client
	Files       domain.FileRepository
	AI          service.TextCompleter
	Sender      service.MessageSender
	Metrics     *telemetry.BillingMetrics
}

// App is the wired billing service: the HTTP API, the cron scheduler and the
// notification worker share one set of services
type App struct {
	Fiber     *fiber.App
	Scheduler *scheduler.BillingScheduler
	Worker    *service.NotificationWorker
}

// NewApp creates and configures the application with the given dependencies
func NewApp(deps AppDependencies) *App {
	cfg := deps.Config
	clk := deps.Clock
	stores := deps.Stores

	// Redis backed infrastructure
	cache := repository.NewRedisCacheRepository(deps.RedisClient)
	sequence := repository.NewRedisInvoiceSequence(deps.RedisClient)
	queue := events.NewRedisQueue(deps.RedisClient, events.DefaultQueueKey)

	// Initialize services
	activity := service.NewActivityLog(stores.Logs, clk)
	generator := service.NewInvoiceGenerator(
		stores.Customers, stores.Invoices, sequence, clk, queue, activity, cache, deps.Metrics,
		service.BillingPolicy{
			BillSuspended:   cfg.Billing.BillSuspended,
			BillInactive:    cfg.Billing.BillInactive,
			CheckoutBaseURL: cfg.Billing.CheckoutBaseURL,
		},
	)
	queries := service.NewInvoiceQueries(stores.Customers, stores.Invoices, clk)
	payments := service.NewPaymentService(stores.Invoices, clk, queue, activity, cache, deps.Metrics)
	checkout := service.NewCheckoutService(payments, queries, stores.Company, clk, cfg.Billing.GatewayDelay, cfg.Billing.WebhookSecret)
	isolation := service.NewIsolationService(
		stores.Customers, stores.Invoices, clk, queue, activity, cache, deps.Metrics,
		service.IsolationSettings{
			Enabled:   cfg.Billing.AutoIsolate,
			Time:      cfg.Billing.AutoIsolateTime,
			GraceDays: cfg.Billing.GraceDays,
		},
	)
	dashboard := service.NewDashboardService(
		stores.Customers, stores.Invoices, stores.Routers, stores.Logs, isolation, cache, clk, cfg.Billing.DashboardTTL,
	)
	insight := service.NewInsightService(dashboard, deps.AI)
	customers := service.NewCustomerService(stores.Customers, stores.Packages, clk, activity, cache)
	packages := service.NewPackageService(stores.Packages, activity)
	authService := service.NewAuthService(stores.Users, cfg.JWT, clk, activity)
	templates := service.NewTemplateService(stores.Templates, deps.AI, clk, activity)
	documents := service.NewDocumentService(queries, stores.Customers, stores.Company, deps.Files, cache)
	company := service.NewCompanyService(
		stores.Company, deps.Files, stores.Routers, stores.Logs, activity, cfg.Server.MaxUploadSizeMB*1024*1024,
	)

	sender := deps.Sender
	if sender == nil {
		sender = service.LogSender{}
	}
	worker := service.NewNotificationWorker(queue, stores.Customers, stores.Invoices, templates, sender, clk, deps.Metrics)

	sched := scheduler.New(isolation, generator, clk.Now().Location(), cfg.Billing.AutoIsolateTime, cfg.Billing.AutoGenerateCron)
	isolation.SetListener(sched)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	customerHandler := handler.NewCustomerHandler(customers, packages)
	invoiceHandler := handler.NewInvoiceHandler(generator, queries, payments, documents)
	checkoutHandler := handler.NewCheckoutHandler(checkout)
	isolationHandler := handler.NewIsolationHandler(isolation, queries, sched)
	dashboardHandler := handler.NewDashboardHandler(dashboard, insight)
	templateHandler := handler.NewTemplateHandler(templates, queries)
	settingsHandler := handler.NewSettingsHandler(company)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "PH Biling API",
		BodyLimit:    int(cfg.Server.MaxUploadSizeMB * 1024 * 1024),
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	app.Use(telemetry.RequestTracing())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "phbiling-api",
		})
	})

	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Billing.IdempotencyTTL)
	verify := middleware.VerifyStaffToken(cfg.JWT.Secret, clk)
	staffOnly := []fiber.Handler{verify, middleware.AuthorizeRole(domain.RoleAdmin, domain.RoleTechnician)}
	adminOnly := []fiber.Handler{verify, middleware.AuthorizeRole(domain.RoleAdmin)}

	// API v1 routes
	v1 := app.Group("/v1")

	// ===========================================
	// PUBLIC - login, payment link, gateway callback
	// ===========================================
	auth := v1.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", append(staffOnly, authHandler.Me)...)

	checkoutGroup := v1.Group("/checkout")
	checkoutGroup.Get("/:id", checkoutHandler.GetCheckout)
	checkoutGroup.Post("/:id/pay", idempotent, checkoutHandler.Pay)

	v1.Post("/payments/webhook", idempotent, checkoutHandler.HandleWebhook)

	// ===========================================
	// STAFF - ADMIN or TECHNICIAN
	// ===========================================
	dashboardGroup := v1.Group("/dashboard", staffOnly...)
	dashboardGroup.Get("/", dashboardHandler.GetSummary)
	dashboardGroup.Get("/health-report", dashboardHandler.GetHealthReport)

	customerGroup := v1.Group("/customers", staffOnly...)
	customerGroup.Get("/", customerHandler.ListCustomers)
	customerGroup.Post("/", customerHandler.CreateCustomer)
	customerGroup.Get("/:id", customerHandler.GetCustomer)
	customerGroup.Put("/:id", customerHandler.UpdateCustomer)
	customerGroup.Post("/:id/toggle-status", customerHandler.ToggleCustomerStatus)

	packageGroup := v1.Group("/packages", staffOnly...)
	packageGroup.Get("/", customerHandler.ListPackages)
	packageGroup.Post("/", customerHandler.CreatePackage)
	packageGroup.Put("/:id", customerHandler.UpdatePackage)

	v1.Get("/routers", append(staffOnly, settingsHandler.ListRouters)...)

	// ===========================================
	// ADMIN - billing, isolation, templates, settings, users
	// ===========================================
	invoiceGroup := v1.Group("/invoices", adminOnly...)
	invoiceGroup.Use(idempotent)
	invoiceGroup.Get("/", invoiceHandler.ListInvoices)
	invoiceGroup.Post("/generate", invoiceHandler.GenerateInvoices)
	invoiceGroup.Get("/:id", invoiceHandler.GetInvoice)
	invoiceGroup.Post("/:id/pay", invoiceHandler.ConfirmPayment)
	invoiceGroup.Get("/:id/document", invoiceHandler.GetDocument)
	invoiceGroup.Post("/:id/archive", invoiceHandler.ArchiveDocument)

	isolationGroup := v1.Group("/isolation", adminOnly...)
	isolationGroup.Get("/candidates", isolationHandler.ListCandidates)
	isolationGroup.Post("/apply", idempotent, isolationHandler.Apply)
	isolationGroup.Post("/sweep", isolationHandler.Sweep)
	isolationGroup.Get("/settings", isolationHandler.GetSettings)
	isolationGroup.Put("/settings", isolationHandler.UpdateSettings)

	templateGroup := v1.Group("/templates", adminOnly...)
	templateGroup.Get("/", templateHandler.ListTemplates)
	templateGroup.Get("/:type", templateHandler.GetTemplate)
	templateGroup.Put("/:type", templateHandler.SaveTemplate)
	templateGroup.Post("/:type/draft", templateHandler.DraftTemplate)
	templateGroup.Get("/:type/preview", templateHandler.PreviewTemplate)

	settingsGroup := v1.Group("/settings", adminOnly...)
	settingsGroup.Get("/company", settingsHandler.GetCompany)
	settingsGroup.Put("/company", settingsHandler.UpdateCompany)
	settingsGroup.Post("/company/logo", settingsHandler.UploadLogo)

	userGroup := v1.Group("/users", adminOnly...)
	userGroup.Get("/", authHandler.ListUsers)
	userGroup.Post("/", authHandler.CreateUser)
	userGroup.Put("/:id", authHandler.UpdateUser)

	v1.Get("/logs", append(adminOnly, settingsHandler.ListLogs)...)

	return &App{
		Fiber:     app,
		Scheduler: sched,
		Worker:    worker,
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	logger.FromContext(c.UserContext()).Error("unhandled request error",
		zap.String("path", c.Path()),
		zap.Int("status", code),
		zap.Error(err),
	)
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
