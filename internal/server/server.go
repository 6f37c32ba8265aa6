package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accessdomain "github.com/ironwake/broadside/internal/access/domain"
	"github.com/ironwake/broadside/internal/config"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	"github.com/ironwake/broadside/internal/era"
	purchasedomain "github.com/ironwake/broadside/internal/purchase/domain"
	referraldomain "github.com/ironwake/broadside/internal/referral/domain"
	voucherdomain "github.com/ironwake/broadside/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

type ServerParams struct {
	fx.In

	Log            *zap.Logger
	Catalog        *era.Catalog
	AccessSvc      accessdomain.Service
	VoucherSvc     voucherdomain.Service
	ReferralSvc    referraldomain.Service
	PurchaseSvc    purchasedomain.Service
	EntitlementSvc entitlementdomain.Service
}

type Server struct {
	log            *zap.Logger
	catalog        *era.Catalog
	accessSvc      accessdomain.Service
	voucherSvc     voucherdomain.Service
	referralSvc    referraldomain.Service
	purchaseSvc    purchasedomain.Service
	entitlementSvc entitlementdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		log:            p.Log.Named("http"),
		catalog:        p.Catalog,
		accessSvc:      p.AccessSvc,
		voucherSvc:     p.VoucherSvc,
		referralSvc:    p.ReferralSvc,
		purchaseSvc:    p.PurchaseSvc,
		entitlementSvc: p.EntitlementSvc,
	}
}

func registerRoutes(r *gin.Engine, s *Server) {
	v1 := r.Group("/v1")

	v1.GET("/eras", s.listEras)
	v1.GET("/eras/:identifier/access", s.resolveAccess)
	v1.POST("/eras/:identifier/consume", s.consumeAccess)

	v1.POST("/vouchers", s.issueVoucher)
	v1.POST("/vouchers/validate", s.validateVoucher)
	v1.POST("/vouchers/redeem", s.redeemVoucher)

	v1.POST("/passes/credit", s.creditPasses)
	v1.GET("/accounts/:account_id/balance", s.accountBalance)

	v1.POST("/referrals/signup", s.referralSignup)
	v1.POST("/purchases/complete", s.completePurchase)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	logger := log.Named("http.access")
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
