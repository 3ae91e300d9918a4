package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/volleyworks/volley/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments are the dispatcher's OTel metrics, all keyed by command.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	latency   metric.Float64Histogram
}

// newInstruments creates the metrics on m. queues is sampled for the queue
// size gauge on every collection.
func newInstruments(m metric.Meter, queues func(observe func(command string, size int))) (*instruments, error) {
	in := &instruments{}
	var err error

	in.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		queues(func(command string, size int) {
			o.ObserveInt64(in.queueSize, int64(size), metric.WithAttributes(commandAttr(command)))
		})
		return nil
	}, in.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	in.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total buffered events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	in.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	in.latency, err = m.Float64Histogram(
		"dispatcher.event.duration",
		metric.WithDescription("Time spent in a handler per event"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return in, nil
}

func commandAttr(command string) attribute.KeyValue {
	return attribute.String("command", command)
}
