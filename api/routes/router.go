package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duchuyngn/muaban-backend/api/controllers"
	webhookcontrollers "github.com/duchuyngn/muaban-backend/api/controllers/webhooks"
	"github.com/duchuyngn/muaban-backend/api/middleware"
	"github.com/duchuyngn/muaban-backend/internal/cancellations"
	"github.com/duchuyngn/muaban-backend/internal/eligibility"
	"github.com/duchuyngn/muaban-backend/internal/orders"
	"github.com/duchuyngn/muaban-backend/internal/payouts"
	"github.com/duchuyngn/muaban-backend/internal/returns"
	"github.com/duchuyngn/muaban-backend/internal/settlement"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/auth/session"
	"github.com/duchuyngn/muaban-backend/pkg/config"
	"github.com/duchuyngn/muaban-backend/pkg/db"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	walletsSvc wallets.Service,
	settlementSvc settlement.Service,
	ordersSvc orders.Service,
	cancelSvc cancellations.Service,
	returnsSvc returns.Service,
	eligibilitySvc eligibility.Service,
	payoutsSvc payouts.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	webhookSecret := cfg.Webhook.SigningSecret

	// A nil client disables idempotency replay instead of turning into a
	// typed-nil interface that fails every guarded route.
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		idemStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Webhooks authenticate with the shared-secret signature, not a JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(settlementSvc, webhookSecret, logg))
		r.Post("/deliveries", webhookcontrollers.DeliveryWebhook(ordersSvc, webhookSecret, logg))
		r.Post("/shipping-fees", webhookcontrollers.ShippingFeeWebhook(ordersSvc, webhookSecret, logg))
		r.Post("/returns", webhookcontrollers.ReturnWebhook(returnsSvc, webhookSecret, logg))
	})

	adminOnly := middleware.RequireRole(string(enums.ActorRoleAdmin), logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/me", controllers.WalletMe(walletsSvc, logg))
			r.Get("/{walletId}/transactions", controllers.WalletTransactions(walletsSvc, logg))
		})

		r.Post("/orders/{orderId}/cancel", controllers.CancelOrder(cancelSvc, logg))

		r.Route("/store-orders/{storeOrderId}", func(r chi.Router) {
			r.Post("/cancel-request", controllers.StoreOrderCancelRequest(cancelSvc, logg))
			r.Post("/cancel-approve", controllers.StoreOrderCancelApprove(cancelSvc, logg))
			r.Post("/cancel-reject", controllers.StoreOrderCancelReject(cancelSvc, logg))
		})

		r.Route("/returns/{returnId}", func(r chi.Router) {
			r.Post("/receive", controllers.ReturnReceive(returnsSvc, logg))
			r.Post("/dispute", controllers.ReturnDispute(returnsSvc, logg))
			r.With(adminOnly).Post("/resolve", controllers.ReturnResolve(returnsSvc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(adminOnly)
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Post("/eligibility/run", controllers.AdminRunEligibilitySweep(eligibilitySvc, logg))

		r.Route("/stores/{storeId}/payout-bills", func(r chi.Router) {
			r.Post("/", controllers.AdminCreatePayoutBill(payoutsSvc, logg))
			r.Get("/open", controllers.AdminOpenPayoutBill(payoutsSvc, logg))
			r.Get("/", controllers.AdminListPayoutBills(payoutsSvc, logg))
		})
		r.Post("/payout-bills/{billId}/pay", controllers.AdminPayPayoutBill(payoutsSvc, logg))
	})

	return r
}
