package routes

import (
	"log/slog"
	"strconv"

	"vauntico-server/config"
	"vauntico-server/database"
	adminapi "vauntico-server/internal/api/admin"
	authapi "vauntico-server/internal/api/auth"
	bridgeapi "vauntico-server/internal/api/paymentbridge"
	subsapi "vauntico-server/internal/api/subscriptions"
	usersapi "vauntico-server/internal/api/users"
	"vauntico-server/internal/api/webhooks"
	"vauntico-server/internal/app/http/middleware"
	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/fraud"
	"vauntico-server/internal/infra/paystack"
	"vauntico-server/internal/infra/provider"
	"vauntico-server/internal/infra/stripepay"
	"vauntico-server/internal/notify"
	"vauntico-server/internal/service/checkout"
	"vauntico-server/internal/service/payout"
	"vauntico-server/internal/service/reconcile"
	"vauntico-server/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *gin.Engine) {
	registerValidators()

	log := slog.Default()
	store := storage.New(database.DB)

	var notifier notify.Notifier = notify.NopNotifier{}
	if config.SLACK_WEBHOOK_URL != "" {
		notifier = notify.NewSlackNotifier(config.SLACK_WEBHOOK_URL)
	}

	stripeAdapter := stripepay.New(stripepay.Config{
		SecretKey: config.STRIPE_SECRET_KEY,
		AppURL:    config.APP_URL,
		PriceIDs: map[string]string{
			subscriptions.TierCreatorPass: config.STRIPE_PRICE_ID_CREATOR_PASS,
			subscriptions.TierEnterprise:  config.STRIPE_PRICE_ID_ENTERPRISE,
		},
		AmountCents: map[string]int64{
			subscriptions.TierCreatorPass: 2900,
			subscriptions.TierEnterprise:  9900,
		},
	})
	paystackAdapter := paystack.NewAdapter(paystack.Config{
		SecretKey: config.PAYSTACK_SECRET_KEY,
		PlanCodes: map[string]string{
			subscriptions.TierCreatorPass: config.PAYSTACK_PLAN_CODE_CREATOR_PASS,
			subscriptions.TierEnterprise:  config.PAYSTACK_PLAN_CODE_ENTERPRISE,
		},
	})
	registry := provider.NewRegistry(
		config.DEFAULT_PAYMENT_PROVIDER,
		config.PAYOUT_PROVIDER,
		stripeAdapter,
		paystackAdapter,
	)

	gate := fraud.NewHTTPGate(config.FRAUD_GATE_URL)
	trialDays, _ := strconv.Atoi(config.TRIAL_PERIOD_DAYS)

	reconciler := reconcile.NewReconciler(store, notifier, log)
	initiator := checkout.NewInitiator(store, registry, gate, trialDays, log)
	processor := payout.NewProcessor(store, registry, notifier, log)

	webhookHandler := webhooks.NewHandler(reconciler, store,
		config.STRIPE_WEBHOOK_SECRET, stripeAdapter.TierForPrice,
		config.PAYSTACK_SECRET_KEY, paystackAdapter.TierForPlan,
		log)
	subsHandler := subsapi.NewHandler(initiator, store, registry)
	bridgeHandler := bridgeapi.NewHandler(store, processor, notifier)

	// Webhooks take the raw body for signature verification, so they stay
	// outside the sanitizer group. The paths match what the providers'
	// dashboards are configured with.
	r.POST("/stripe/webhooks", webhookHandler.Stripe)
	r.POST("/subscriptions/webhook/paystack", webhookHandler.Paystack)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)

	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/me", usersapi.GetCurrentUser)
	auth.POST("/change-password", authapi.ChangePassword)

	auth.POST("/subscriptions/checkout", subsHandler.Checkout)
	auth.GET("/subscriptions/status", subsHandler.Status)
	auth.POST("/subscriptions/cancel", subsHandler.Cancel)

	// The bridge is a paid-creator feature; reads stay open so creators can
	// track requests made before a downgrade.
	auth.POST("/payment-bridge/request", middleware.RequirePaidSubscription(), bridgeHandler.Create)
	auth.GET("/payment-bridge/requests", bridgeHandler.List)
	auth.GET("/payment-bridge/status/:id", bridgeHandler.Status)
	auth.POST("/payment-bridge/cancel/:id", bridgeHandler.Cancel)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/dashboard", adminapi.AdminDashboard)
	admin.GET("/payment-requests", adminapi.ListPaymentRequests)
	admin.GET("/subscriptions", adminapi.ListSubscriptions)
	admin.GET("/webhook-anomalies", adminapi.ListDroppedEvents)
	admin.GET("/user/:id", adminapi.GetUserDetails)
	admin.POST("/payment-bridge/payout/:id", bridgeHandler.Payout)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return paymentbridge.ValidCurrency(fl.Field().String())
		})
	}
}
