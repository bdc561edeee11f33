package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// FeeRecalculations counts cart fee recalculations per component and outcome.
	FeeRecalculations *prometheus.CounterVec
	// ShipmentStatusChanges counts shipment status transitions per actor role and resulting status.
	ShipmentStatusChanges *prometheus.CounterVec
	// CheckoutValidationFailures counts rejected checkout field errors per code.
	CheckoutValidationFailures *prometheus.CounterVec
	// ExportRows counts records written to CSV exports.
	ExportRows *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
// Collectors stay nil-safe for packages that record before registration through the helpers below.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		FeeRecalculations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_recalculations_total",
			Help:      "Count of cart fee recalculations by component and result.",
		}, []string{"component", "result"})
		ShipmentStatusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_status_changes_total",
			Help:      "Count of shipment status changes by actor and resulting status.",
		}, []string{"actor", "status"})
		CheckoutValidationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_validation_failures_total",
			Help:      "Count of checkout field errors by code.",
		}, []string{"code"})
		ExportRows = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_rows_total",
			Help:      "Number of rows written to CSV exports.",
		}, []string{"export"})

		for _, c := range []**prometheus.CounterVec{&FeeRecalculations, &ShipmentStatusChanges, &CheckoutValidationFailures, &ExportRows} {
			target := c
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
	})
}

// ObserveRecalculation records a fee recalculation outcome.
func ObserveRecalculation(component string, err error) {
	if FeeRecalculations == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	FeeRecalculations.WithLabelValues(component, result).Inc()
}

// ObserveShipmentChange records a shipment status transition.
func ObserveShipmentChange(actor, status string) {
	if ShipmentStatusChanges == nil {
		return
	}
	ShipmentStatusChanges.WithLabelValues(actor, status).Inc()
}

// ObserveValidationFailure records a checkout field error code.
func ObserveValidationFailure(code string) {
	if CheckoutValidationFailures == nil {
		return
	}
	CheckoutValidationFailures.WithLabelValues(code).Inc()
}

// ObserveExportRows adds n rows to the export counter.
func ObserveExportRows(export string, n int) {
	if ExportRows == nil || n <= 0 {
		return
	}
	ExportRows.WithLabelValues(export).Add(float64(n))
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
