package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PingsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safety_pings_ingested_total",
		Help: "Total number of accepted location pings",
	})
	PingsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safety_pings_rejected_total",
		Help: "Total number of rejected location pings (malformed coordinates)",
	})
	PingsOutOfOrderTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safety_pings_out_of_order_total",
		Help: "Total number of pings accepted out of order",
	})
	ZoneTransitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safety_zone_transitions_total",
		Help: "Total number of confirmed zone transitions",
	})
	AnomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_anomalies_total",
		Help: "Total anomaly events by kind",
	}, []string{"kind"})
	IncidentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_incidents_total",
		Help: "Total incidents by origin",
	}, []string{"origin"})
	IncidentTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_incident_transitions_total",
		Help: "Total incident state transitions by target state",
	}, []string{"state"})
	DispatchResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_dispatch_results_total",
		Help: "Total dispatch attempt results by status",
	}, []string{"status"})
	HardAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safety_hard_alerts_total",
		Help: "Incidents for which every responder channel was exhausted after escalation",
	})
	LedgerVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_ledger_verifications_total",
		Help: "Responder verification attempts by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(PingsIngestedTotal)
	prometheus.MustRegister(PingsRejectedTotal)
	prometheus.MustRegister(PingsOutOfOrderTotal)
	prometheus.MustRegister(ZoneTransitionsTotal)
	prometheus.MustRegister(AnomaliesTotal)
	prometheus.MustRegister(IncidentsTotal)
	prometheus.MustRegister(IncidentTransitionsTotal)
	prometheus.MustRegister(DispatchResultsTotal)
	prometheus.MustRegister(HardAlertsTotal)
	prometheus.MustRegister(LedgerVerificationsTotal)
}

// Handler возвращает обработчик /metrics для Prometheus
func Handler() http.Handler { return promhttp.Handler() }
