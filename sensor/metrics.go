package sensor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName         = "proxsense.sensor"
	metricEventsTotal = "proxsense_sensor_events_total"
)

var (
	meterOnce    sync.Once
	eventCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricEventsTotal,
		metric.WithDescription("Total sensor events delivered, by event kind"),
	)
	if err != nil {
		otel.Handle(err)
	}
	eventCounter = counter
}

func recordEvent(kind EventKind, count int) {
	meterOnce.Do(initMeter)
	if eventCounter == nil || count == 0 {
		return
	}
	eventCounter.Add(context.Background(), int64(count), metric.WithAttributes(attribute.String("event", string(kind))))
}
