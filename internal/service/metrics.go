package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logins_total",
		Help: "Login outcomes by result (success, denied, error).",
	}, []string{"result"})

	lockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockouts_total",
		Help: "Accounts locked after exceeding the failure threshold.",
	})

	tokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_refresh_total",
		Help: "Refresh-token rotations by result (success, denied).",
	}, []string{"result"})
)
