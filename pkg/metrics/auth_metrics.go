package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Authentication metrics
var (
	AuthGoogleLoginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_google_login_total",
		Help: "Google sign-in attempts by outcome",
	}, []string{"outcome"}) // success, invalid_token, disabled, error

	AuthRefreshTokenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_token_total",
		Help: "Access token refreshes by outcome",
	}, []string{"outcome"}) // success, unknown, misuse

	// Refresh misuse revokes every token of the user
	AuthRefreshTokenFamilyRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_token_family_revoked_total",
		Help: "Times all refresh tokens of a user were revoked after a misused token",
	})

	AuthLogoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_logout_total",
		Help: "Total number of logouts",
	})

	AuthTokenBlacklistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_blacklisted_total",
		Help: "Requests rejected because the access token was blacklisted",
	})
)
