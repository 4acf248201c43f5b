package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"creatorpay/internal/config"
	"creatorpay/internal/db"
	"creatorpay/internal/middleware"
	"creatorpay/internal/models"
	"creatorpay/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
)

// Deps are the stores and services the HTTP layer talks to.
type Deps struct {
	TxRunner      db.TxRunner
	Accounts      AccountStore
	Profiles      ProfileStore
	Ledger        LedgerReader
	Audit         AuditStore
	Content       ContentService
	Subscriptions SubscriptionService
	Purchases     PurchaseService
	Access        AccessService
	Coupons       CouponService
	Payouts       PayoutService
	Creators      CreatorService
	Wallet        Reconciler
	Webhooks      WebhookHandler
	Hub           *websocket.Hub
}

type Handler struct {
	Deps
	cfg      config.Config
	logger   *slog.Logger
	upgrader gorillaws.Upgrader
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		Deps:     deps,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader(allowedOrigins(cfg.AllowedOrigins)),
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authed := middleware.Auth(h.cfg.JWTSecret)
	requireRole := func(roles ...string) func(http.Handler) http.Handler {
		return middleware.RequireRole(h.Accounts, h.logger, roles...)
	}

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authed).Get("/me", h.Me)
	})

	router.Get("/creators/{id}/tiers", h.ListCreatorTiers)
	router.Route("/creators/me", func(r chi.Router) {
		r.Use(authed, requireRole(models.RoleCreator))
		r.Get("/tiers", h.ListMyTiers)
		r.Put("/tiers", h.SaveTier)
	})

	router.Route("/resources", func(r chi.Router) {
		r.With(authed, requireRole(models.RoleCreator)).Post("/", h.CreateResource)
		r.With(authed, requireRole(models.RoleCreator)).Get("/", h.ListMyResources)
		r.With(middleware.OptionalAuth(h.cfg.JWTSecret)).Get("/{id}/access", h.ResourceAccess)
	})

	router.Route("/payments", func(r chi.Router) {
		r.Use(authed)
		r.Post("/subscribe", h.Subscribe)
		r.Post("/subscribe/cancel", h.CancelSubscription)
		r.Post("/validate-coupon", h.ValidateCoupon)
		r.Post("/purchase", h.Purchase)
	})
	router.With(authed).Get("/subscriptions", h.ListSubscriptions)

	router.Route("/wallet", func(r chi.Router) {
		r.Use(authed)
		r.Get("/", h.GetWallet)
		r.Get("/transactions", h.ListWalletTransactions)
	})
	router.Get("/ws/wallet", h.WSWallet)

	router.Route("/payouts", func(r chi.Router) {
		r.Use(authed, requireRole(models.RoleCreator))
		r.Post("/", h.RequestPayout)
		r.Get("/", h.ListMyPayouts)
	})

	router.Post("/webhooks/square", h.SquareWebhook)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authed, requireRole(models.RoleAdmin))
		r.Post("/verify-creator", h.VerifyCreator)
		r.Get("/creators/pending", h.ListPendingCreators)
		r.Post("/coupons", h.CreateCoupon)
		r.Get("/coupons", h.ListCoupons)
		r.Put("/coupons/{code}/status", h.SetCouponStatus)
		r.Get("/payouts", h.AdminListPayouts)
		r.Post("/payouts/{id}/approve", h.ApprovePayout)
		r.Post("/payouts/{id}/reject", h.RejectPayout)
		r.Get("/reconcile", h.Reconcile)
		r.Get("/audit", h.ListAuditLogs)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
