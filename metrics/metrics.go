// Package metrics records CMS traffic and page generation outcomes in
// Prometheus.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder implements prismic.Recorder and the generator's page hooks.
type Recorder struct {
	cmsDuration *prom.HistogramVec
	cmsRequests *prom.CounterVec
	pages       *prom.CounterVec
	pageBuild   *prom.HistogramVec
}

// NewRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewRecorder(reg prom.Registerer) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		cmsDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "spacetravel",
			Name:      "cms_request_duration_seconds",
			Help:      "Duration of requests to the content API",
			Buckets:   prom.DefBuckets,
		}, []string{"op"}),
		cmsRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spacetravel",
			Name:      "cms_requests_total",
			Help:      "Requests to the content API by operation and result",
		}, []string{"op", "result"}),
		pages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spacetravel",
			Name:      "pages_generated_total",
			Help:      "Generated pages by kind and outcome",
		}, []string{"kind", "outcome"}),
		pageBuild: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "spacetravel",
			Name:      "page_generation_duration_seconds",
			Help:      "Time spent assembling and writing a page",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(r.cmsDuration, r.cmsRequests, r.pages, r.pageBuild)
	return r
}

// ObserveRequest records one content API exchange.
func (r *Recorder) ObserveRequest(op, result string, d time.Duration) {
	r.cmsDuration.WithLabelValues(op).Observe(d.Seconds())
	r.cmsRequests.WithLabelValues(op, result).Inc()
}

// ObservePage records one page generation.
func (r *Recorder) ObservePage(kind, outcome string, d time.Duration) {
	r.pages.WithLabelValues(kind, outcome).Inc()
	r.pageBuild.WithLabelValues(kind).Observe(d.Seconds())
}
