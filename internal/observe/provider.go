package observe

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/roach88/derive/internal/engine"
)

// MeterName is the instrumentation scope used for engine metrics.
const MeterName = "github.com/roach88/derive"

// Provider owns a meter provider that exports to a writer on Shutdown.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	observer *MetricsObserver
}

// NewStdoutProvider creates a provider whose metrics are written to w as JSON
// when the provider shuts down.
func NewStdoutProvider(w io.Writer) (*Provider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
	}
	return NewProvider(sdkmetric.NewPeriodicReader(exp))
}

// NewProvider creates a provider reading through reader.
func NewProvider(reader sdkmetric.Reader) (*Provider, error) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	obs, err := NewMetricsObserver(mp.Meter(MeterName))
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	return &Provider{mp: mp, observer: obs}, nil
}

// Observer returns the engine observer feeding this provider.
func (p *Provider) Observer() engine.Observer {
	return p.observer
}

// Shutdown flushes pending metrics and releases the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
