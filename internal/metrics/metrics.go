package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    conversions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "imgpdf",
            Name:      "conversions_total",
            Help:      "Upload requests by result (success, no_images, error)",
        },
        []string{"result"},
    )

    conversionLatency = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "imgpdf",
            Name:      "conversion_duration_seconds",
            Help:      "Duration of successful conversions from upload to PDF",
            Buckets:   prometheus.DefBuckets,
        },
    )

    pagesProduced = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "imgpdf",
            Name:      "pages_produced_total",
            Help:      "Total PDF pages produced",
        },
    )

    uploadsSkipped = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "imgpdf",
            Name:      "uploads_skipped_total",
            Help:      "Uploaded files dropped from a batch, by reason",
        },
        []string{"reason"},
    )

    sweeps = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "imgpdf",
            Name:      "sweeper_directories_total",
            Help:      "Storage directories handled by the retention sweeper, by result",
        },
        []string{"result"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(conversions, conversionLatency, pagesProduced, uploadsSkipped, sweeps)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveConversion(pages int, dur time.Duration) {
    conversions.WithLabelValues("success").Inc()
    conversionLatency.Observe(dur.Seconds())
    pagesProduced.Add(float64(pages))
}

func IncConversion(result string) { conversions.WithLabelValues(result).Inc() }
func IncSkipped(reason string)    { uploadsSkipped.WithLabelValues(reason).Inc() }
func IncSwept(result string)      { sweeps.WithLabelValues(result).Inc() }
