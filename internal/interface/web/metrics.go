package web

import (
	"github.com/cityofzion/faucetd/internal/core/application"
	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	claimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faucet",
		Name:      "claims_total",
		Help:      "Claim requests by outcome.",
	}, []string{"outcome"})

	balanceGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "faucet",
		Name:      "wallet_balance",
		Help:      "Wallet balance in whole units, per asset kind.",
	}, []string{"asset"})

	heightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "faucet",
		Name:      "chain_height",
		Help:      "Last observed chain height.",
	})
)

func init() {
	prometheus.MustRegister(claimsTotal, balanceGauge, heightGauge)
}

func observeStatus(status *application.Status) {
	balanceGauge.WithLabelValues(domain.AssetPrimary.String()).
		Set(float64(status.Primary.Int()))
	balanceGauge.WithLabelValues(domain.AssetSecondary.String()).
		Set(float64(status.Secondary.Int()))
	heightGauge.Set(float64(status.Height))
}
