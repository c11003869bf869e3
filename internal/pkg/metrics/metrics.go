package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MembershipActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "membership_activations_total",
		Help: "Memberships moved from pending_payment to active",
	})

	MembershipsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "membership_expired_total",
		Help: "Memberships marked expired by lazy check or sweep",
	})

	ReferralBonusesPaid = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_bonuses_paid_total",
		Help: "Referral bonuses paid, by currency",
	}, []string{"currency"})

	ReferralBonusSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_bonus_skipped_total",
		Help: "Bonus processing attempts that paid nothing, by reason",
	}, []string{"reason"})

	WalletCreditAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_credit_amount_total",
		Help: "Sum of amounts credited to wallets, by currency",
	}, []string{"currency"})

	WalletWithdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_withdrawals_total",
		Help: "Wallet withdrawal attempts, by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func IncActivation() {
	MembershipActivations.Inc()
}

func AddExpired(n int) {
	if n > 0 {
		MembershipsExpired.Add(float64(n))
	}
}

func IncBonusPaid(currency string, amount float64) {
	ReferralBonusesPaid.WithLabelValues(label(currency)).Inc()
	WalletCreditAmount.WithLabelValues(label(currency)).Add(amount)
}

func IncBonusSkipped(reason string) {
	ReferralBonusSkipped.WithLabelValues(label(reason)).Inc()
}

func IncWithdrawal(ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	WalletWithdrawals.WithLabelValues(result).Inc()
}

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, label(route), strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
