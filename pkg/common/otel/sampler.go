package otel

import (
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Route attribute keys used by HTTP instrumentation across semconv versions.
var routeKeys = []attribute.Key{"url.path", "http.target", "http.route"}

// endpointExcluder drops spans for excluded routes (health probes) and
// delegates everything else to a parent-based ratio sampler.
type endpointExcluder struct {
	endpoints map[string]struct{}
	delegate  sdktrace.Sampler
}

func newEndpointExcluder(endpoints map[string]struct{}, probability float64) endpointExcluder {
	return endpointExcluder{
		endpoints: endpoints,
		delegate:  sdktrace.ParentBased(sdktrace.TraceIDRatioBased(probability)),
	}
}

// ShouldSample implements the sampler interface.
func (ee endpointExcluder) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range parameters.Attributes {
		for _, key := range routeKeys {
			if attr.Key != key {
				continue
			}
			if _, exists := ee.endpoints[attr.Value.AsString()]; exists {
				return sdktrace.SamplingResult{Decision: sdktrace.Drop}
			}
		}
	}

	return ee.delegate.ShouldSample(parameters)
}

// Description implements the sampler interface.
func (ee endpointExcluder) Description() string {
	return "excludeEndpoints"
}
