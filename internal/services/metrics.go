package services

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	menuOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmenu_menu_opens_total",
		Help: "Successful menu opens by menu id",
	}, []string{"menu_id"})

	menuCloses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmenu_menu_closes_total",
		Help: "Menu closes by menu id",
	}, []string{"menu_id"})

	menuDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmenu_open_denials_total",
		Help: "Denied menu opens by menu id and reason",
	}, []string{"menu_id", "reason"})

	menuClicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmenu_menu_clicks_total",
		Help: "Handled menu clicks by menu id",
	}, []string{"menu_id"})

	commandDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmenu_command_dispatches_total",
		Help: "Dispatched item actions by effect",
	}, []string{"effect"})

	catalogReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridmenu_catalog_reloads_total",
		Help: "Catalog reload operations",
	})

	reopenEnforcements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridmenu_reopen_enforcements_total",
		Help: "Non-escapeable menus reopened after a host close",
	})
)

// CountCatalogReload records one catalog reload.
func CountCatalogReload() { catalogReloads.Inc() }

// CountReopenEnforcement records one reopen of a non-escapeable menu.
func CountReopenEnforcement() { reopenEnforcements.Inc() }

// InitMetrics registers the gauges that read live engine state.
func InitMetrics(conns *ConnectionManager, sessions *SessionService) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gridmenu_active_connections",
		Help: "Active host-client WebSocket connections",
	}, func() float64 { return float64(conns.Count()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gridmenu_open_sessions",
		Help: "Currently open menu sessions",
	}, func() float64 { return float64(sessions.OpenSessionCount()) })

	log.Println("📊 Engine metrics registered")
}
