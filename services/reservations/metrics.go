package reservations

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics agrupa os contadores do ciclo de vida das reservas
type Metrics struct {
	created      metric.Int64Counter
	unavailable  metric.Int64Counter
	completed    metric.Int64Counter
	cancelled    metric.Int64Counter
	sweptOverdue metric.Int64Counter
}

// NewMetrics registra os contadores no meter informado
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.created, "reservations.created", "Reservations created"},
		{&m.unavailable, "reservations.unavailable", "Reservation attempts rejected for lack of copies"},
		{&m.completed, "reservations.completed", "Reservations completed with the copy returned"},
		{&m.cancelled, "reservations.cancelled", "Reservations cancelled"},
		{&m.sweptOverdue, "reservations.swept_overdue", "Reservations moved to overdue by the sweep"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}

	return &m, nil
}
