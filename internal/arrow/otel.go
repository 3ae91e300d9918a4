package arrow

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/volleyworks/volley/internal/arrow"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
