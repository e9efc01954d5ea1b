// Package routes defines the API routing configuration. It wires
// repositories into services, services into handlers, and handlers onto
// the fiber application with the authentication and capability
// middleware each group requires.
package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"healthpay/internal/handlers"
	"healthpay/internal/metrics"
	"healthpay/internal/middleware"
	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/analytics"
	"healthpay/internal/services/assignment"
	"healthpay/internal/services/auth"
	"healthpay/internal/services/lifecycle"
	"healthpay/internal/services/wallet"
)

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, logger *zap.Logger, collector *metrics.Collector) {
	// Repositories
	walletRepo := repositories.NewWalletRepository(repositories.DB)
	claimRepo := repositories.NewClaimRepository(repositories.DB)
	userRepo := repositories.NewUserRepository(repositories.DB)
	sequenceRepo := repositories.NewSequenceRepository(repositories.DB)

	// Services
	authService := auth.NewService(userRepo, logger)
	walletService := wallet.NewService(walletRepo, sequenceRepo, repositories.CacheService, logger, collector)
	lifecycleService := lifecycle.NewService(claimRepo, sequenceRepo, walletService, logger, collector)
	assignmentService := assignment.NewService(claimRepo, userRepo, lifecycleService, logger)
	analyticsService := analytics.NewService(claimRepo, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	walletHandler := handlers.NewWalletHandler(walletService)
	claimHandler := handlers.NewClaimHandler(lifecycleService)
	tpaHandler := handlers.NewTPAHandler(lifecycleService, assignmentService, analyticsService)
	healthHandler := handlers.NewHealthHandler(repositories.CacheService)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "HealthPay API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})
	app.Get("/health", healthHandler.HealthCheck)

	api := app.Group("/api")

	// Public endpoints
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/refresh", authHandler.RefreshToken)

	// Everything below requires a valid token.
	authMiddleware := middleware.NewAuthMiddleware(userRepo, logger)
	protected := api.Use(authMiddleware.Handler)

	protected.Post("/auth/logout", authHandler.Logout)
	protected.Post("/auth/change-password", authHandler.ChangePassword)

	setupClaimRoutes(protected, claimHandler)
	setupTPARoutes(protected, tpaHandler)
	setupWalletRoutes(protected, walletHandler)
	setupAnalyticsRoutes(protected, tpaHandler)

	protected.Get("/cache-stats", healthHandler.CacheStats)
}

// setupClaimRoutes registers the member-facing claim endpoints.
func setupClaimRoutes(router fiber.Router, h *handlers.ClaimHandler) {
	claims := router.Group("/claims")
	claims.Post("/", middleware.RequireCapability(models.CapSubmitClaim), h.CreateClaim)
	claims.Get("/", h.ListClaims)
	claims.Get("/:claimId", h.GetClaim)
	claims.Post("/:claimId/submit", middleware.RequireCapability(models.CapSubmitClaim), h.SubmitClaim)
	claims.Post("/:claimId/documents", middleware.RequireCapability(models.CapSubmitClaim), h.ResubmitDocuments)
}

// setupTPARoutes registers the reviewer and administrator endpoints.
func setupTPARoutes(router fiber.Router, h *handlers.TPAHandler) {
	tpa := router.Group("/tpa")

	tpa.Get("/queue", middleware.RequireCapability(models.CapReviewClaim), h.Queue)
	tpa.Get("/reviewers", middleware.RequireCapability(models.CapAssignClaim), h.Reviewers)
	tpa.Get("/reviewers/:reviewerId/workload", middleware.RequireCapability(models.CapAssignClaim), h.ReviewerWorkload)

	tpa.Post("/claims/:claimId/assign", middleware.RequireCapability(models.CapAssignClaim), h.AssignClaim)
	tpa.Post("/claims/:claimId/reassign", middleware.RequireCapability(models.CapAssignClaim), h.ReassignClaim)
	tpa.Post("/claims/:claimId/review", middleware.RequireCapability(models.CapReviewClaim), h.StartReview)
	tpa.Post("/claims/:claimId/approve", middleware.RequireCapability(models.CapReviewClaim), h.ApproveClaim)
	tpa.Post("/claims/:claimId/reject", middleware.RequireCapability(models.CapReviewClaim), h.RejectClaim)
	tpa.Post("/claims/:claimId/request-documents", middleware.RequireCapability(models.CapReviewClaim), h.RequestDocuments)
	tpa.Post("/claims/:claimId/transition", middleware.RequireCapability(models.CapBypassOwnership), h.TransitionClaim)
}

// setupWalletRoutes registers balance reads for members and ledger
// adjustments for wallet administrators.
func setupWalletRoutes(router fiber.Router, h *handlers.WalletHandler) {
	walletGroup := router.Group("/wallet")
	walletGroup.Get("/balance", middleware.RequireCapability(models.CapWalletRead), h.GetBalance)
	walletGroup.Get("/transactions", middleware.RequireCapability(models.CapWalletRead), h.GetTransactions)

	walletGroup.Post("/initialize", middleware.RequireCapability(models.CapWalletAdjust), h.Initialize)
	walletGroup.Post("/debit", middleware.RequireCapability(models.CapWalletAdjust), h.Debit)
	walletGroup.Post("/credit", middleware.RequireCapability(models.CapWalletAdjust), h.Credit)
	walletGroup.Post("/transactions/:transactionId/reverse", middleware.RequireCapability(models.CapWalletAdjust), h.ReverseTransaction)
}

func setupAnalyticsRoutes(router fiber.Router, h *handlers.TPAHandler) {
	analyticsGroup := router.Group("/analytics", middleware.RequireCapability(models.CapViewAnalytics))
	analyticsGroup.Get("/summary", h.AnalyticsSummary)
	analyticsGroup.Get("/activity", h.RecentActivity)
}
