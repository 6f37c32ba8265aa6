package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics carries the engine's operational counters.
type Metrics struct {
	VouchersIssued     prometheus.Counter
	VouchersRedeemed   prometheus.Counter
	PassesConsumed     prometheus.Counter
	PassesCredited     prometheus.Counter
	ReferralsProcessed *prometheus.CounterVec
	AccessDecisions    *prometheus.CounterVec
}

var Module = fx.Module("observability.metrics",
	fx.Provide(prometheus.NewRegistry),
	fx.Provide(New),
)

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		VouchersIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadside_vouchers_issued_total",
			Help: "Voucher codes issued.",
		}),
		VouchersRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadside_vouchers_redeemed_total",
			Help: "Voucher codes successfully redeemed.",
		}),
		PassesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadside_passes_consumed_total",
			Help: "Pass units consumed by game starts.",
		}),
		PassesCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadside_passes_credited_total",
			Help: "Pass units credited to accounts.",
		}),
		ReferralsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadside_referrals_processed_total",
			Help: "Referral signups processed, by outcome.",
		}, []string{"outcome"}),
		AccessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadside_access_decisions_total",
			Help: "Access resolutions, by method.",
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.VouchersIssued,
		m.VouchersRedeemed,
		m.PassesConsumed,
		m.PassesCredited,
		m.ReferralsProcessed,
		m.AccessDecisions,
	)
	return m
}
