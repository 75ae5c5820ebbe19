// Package metrics exposes the game server's operational counters over
// /metrics. Adapted from the teacher's internal/fraud/metrics.go
// promauto-var-block pattern, repointed at room/player/round counters since
// this spec carries no fraud-detection scope.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thedecree_rooms_active",
		Help: "Number of rooms currently tracked by the hub",
	})

	PlayersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thedecree_players_active",
		Help: "Number of seated player sessions across all rooms, connected or awaiting reconnect",
	})

	RoomsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thedecree_rooms_created_total",
		Help: "Total number of rooms ever created",
	})

	RoomsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thedecree_rooms_dropped_total",
		Help: "Total number of rooms removed from the directory",
	}, []string{"reason"})

	RateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thedecree_rate_limit_rejections_total",
		Help: "Total number of messages dropped by the rate limiter",
	}, []string{"category"})

	RoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "thedecree_round_duration_seconds",
		Help:    "Wall-clock time from DealerCall to RoundEnd",
		Buckets: prometheus.DefBuckets,
	})

	AutoPlayActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thedecree_autoplay_activations_total",
		Help: "Total number of times a player was switched to auto-play",
	}, []string{"reason"})

	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thedecree_reconnects_total",
		Help: "Total number of successful reconnections",
	})

	GamesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thedecree_games_completed_total",
		Help: "Total number of games that reached GameOver",
	})
)

// RecordAutoPlay records an auto-play activation for the given reason
// ("manual", "timeout", "disconnect"), matching spec.md §6's player_auto_changed reasons.
func RecordAutoPlay(reason string) {
	AutoPlayActivationsTotal.WithLabelValues(reason).Inc()
}

// RecordRoomDropped records a room leaving the directory for the given
// reason ("idle_timeout", "empty").
func RecordRoomDropped(reason string) {
	RoomsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordRateLimitRejection records a dropped message for the given category
// ("game", "room", "connection").
func RecordRateLimitRejection(category string) {
	RateLimitRejectionsTotal.WithLabelValues(category).Inc()
}
