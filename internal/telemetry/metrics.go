package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache tiers reported by DNS lookups
const (
	TierMemory   = "memory"
	TierDatabase = "database"
)

// WHOIS lookup outcomes
const (
	WhoisCached  = "cached"
	WhoisFetched = "fetched"
	WhoisError   = "error"
)

// Metrics holds the process counters on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	emailsAnalyzed *prometheus.CounterVec
	threatFailures prometheus.Counter
	dnsCache       *prometheus.CounterVec
	whoisLookups   *prometheus.CounterVec
}

// New creates and registers the counters
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		emailsAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishfinder_emails_analyzed_total",
			Help: "Emails analyzed, by risk level",
		}, []string{"level"}),
		threatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishfinder_threat_check_failures_total",
			Help: "Threat-intelligence lookups that failed open",
		}),
		dnsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishfinder_dns_cache_total",
			Help: "DNS authentication cache lookups, by tier and result",
		}, []string{"tier", "result"}),
		whoisLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishfinder_whois_lookups_total",
			Help: "WHOIS lookups, by result (cached, fetched, error)",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.emailsAnalyzed, m.threatFailures, m.dnsCache, m.whoisLookups)
	return m
}

// EmailAnalyzed counts one analyzed email
func (m *Metrics) EmailAnalyzed(level string) {
	if m == nil {
		return
	}
	m.emailsAnalyzed.WithLabelValues(level).Inc()
}

// ThreatCheckFailed counts one fail-open threat lookup
func (m *Metrics) ThreatCheckFailed() {
	if m == nil {
		return
	}
	m.threatFailures.Inc()
}

// DNSCacheLookup counts one cache lookup
func (m *Metrics) DNSCacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.dnsCache.WithLabelValues(tier, result).Inc()
}

// WhoisLookup counts one WHOIS request outcome
func (m *Metrics) WhoisLookup(result string) {
	if m == nil {
		return
	}
	m.whoisLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for inspection
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
