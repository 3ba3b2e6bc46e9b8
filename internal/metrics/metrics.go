// Package metrics exposes Prometheus instrumentation for compilations.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"typstapi/internal/compiler"
	"typstapi/internal/pkg/errors"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "typstapi"

// Compilation outcomes used as label values.
const (
	OutcomeSuccess        = "success"
	OutcomeTemplateError  = "template_error"
	OutcomeTimeout        = "timeout"
	OutcomeCanceled       = "canceled"
	OutcomeInfrastructure = "infrastructure_error"
)

// Recorder owns a private registry with compilation metrics.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry *prometheus.Registry

	compilations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	outputBytes  prometheus.Counter
	inputBytes   prometheus.Counter
}

// NewRecorder creates a Recorder. An empty namespace uses DefaultNamespace.
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compilations_total",
			Help:      "Total number of compilations by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compilation_duration_seconds",
			Help:      "Wall time of compilations including process startup.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compilations_in_flight",
			Help:      "Number of compiler processes currently running.",
		}),
		outputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Total bytes of PDF output returned to callers.",
		}),
		inputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_bytes_total",
			Help:      "Total bytes of template source sent to the compiler.",
		}),
	}

	r.registry.MustRegister(
		r.compilations,
		r.duration,
		r.inFlight,
		r.outputBytes,
		r.inputBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registry returns the registry holding all metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Observe records one finished compilation.
func (r *Recorder) Observe(templateBytes int, pdf []byte, err error, elapsed time.Duration) {
	outcome := Outcome(err)
	r.compilations.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	r.inputBytes.Add(float64(templateBytes))
	if err == nil {
		r.outputBytes.Add(float64(len(pdf)))
	}
}

// Wrap returns a Compiler that records metrics around c.
func (r *Recorder) Wrap(c compiler.Compiler) compiler.Compiler {
	return compiler.Func(func(ctx context.Context, req compiler.Request) ([]byte, error) {
		r.inFlight.Inc()
		defer r.inFlight.Dec()

		start := time.Now()
		pdf, err := c.Compile(ctx, req)
		r.Observe(len(req.Template), pdf, err, time.Since(start))
		return pdf, err
	})
}

// Outcome classifies a compile result for labelling.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch errors.GetCode(err) {
	case errors.CodeTemplate:
		return OutcomeTemplateError
	case errors.CodeTimeout:
		return OutcomeTimeout
	case errors.CodeCanceled:
		return OutcomeCanceled
	default:
		return OutcomeInfrastructure
	}
}
