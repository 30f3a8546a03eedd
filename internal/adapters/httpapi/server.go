package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/application"
	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/telemetry"
)

// Analyzer runs and reads email analyses
type Analyzer interface {
	Analyze(ctx context.Context, sub domain.Submission) (*domain.AnalysisResult, error)
	GetEmail(ctx context.Context, id string) (*domain.EmailRecord, error)
}

// DomainResolver validates and resolves domain authentication records
type DomainResolver interface {
	ResolveDomain(ctx context.Context, raw string) (domain.DomainAuthentication, error)
}

// WhoisLookup serves WHOIS data
type WhoisLookup interface {
	Lookup(ctx context.Context, rawDomain, emailID string) (*application.WhoisResult, error)
	Refresh(ctx context.Context, rawDomain string) (*domain.WhoisRecord, error)
}

// MetricsProvider serves dashboard aggregates
type MetricsProvider interface {
	Get(ctx context.Context, timeRange string) (*domain.MetricsSummary, error)
}

// Server exposes the analysis services over HTTP
type Server struct {
	analysis   Analyzer
	dns        DomainResolver
	whois      WhoisLookup
	dashboard  MetricsProvider
	telemetry  *telemetry.Metrics
	limiter    *IPRateLimiter
	production bool
	logger     *zap.Logger
}

// Options configures a Server
type Options struct {
	// Production hides error details from responses
	Production bool
	// DNSLimiter throttles the DNS records route; nil disables throttling
	DNSLimiter *IPRateLimiter
}

// NewServer creates a new HTTP server
func NewServer(
	analysis Analyzer,
	dns DomainResolver,
	whois WhoisLookup,
	dashboard MetricsProvider,
	metrics *telemetry.Metrics,
	opts Options,
	logger *zap.Logger,
) *Server {
	return &Server{
		analysis:   analysis,
		dns:        dns,
		whois:      whois,
		dashboard:  dashboard,
		telemetry:  metrics,
		limiter:    opts.DNSLimiter,
		production: opts.Production,
		logger:     logger,
	}
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// promhttp compresses its own output
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	router.Use(SecurityHeaders())
	router.Use(RequestLogger(s.logger))

	router.POST("/analyze-email", s.analyzeEmail)
	router.POST("/saveEmailAnalysis", s.analyzeEmail)
	router.GET("/emails/:id", s.getEmail)

	dnsHandlers := []gin.HandlerFunc{s.getDNSRecords}
	if s.limiter != nil {
		dnsHandlers = append([]gin.HandlerFunc{s.limiter.Handler(s.logger)}, dnsHandlers...)
	}
	router.GET("/dns-records/:domain", dnsHandlers...)

	router.POST("/whois", s.postWhois)
	for _, path := range []string{"/whois/:domain", "/whois/:domain/:emailId"} {
		router.GET(path, s.getWhois)
		router.POST(path, s.getWhois)
	}

	router.GET("/metrics/:timeRange", s.getMetrics)
	if s.telemetry != nil {
		router.GET("/metrics", gin.WrapH(s.telemetry.Handler()))
	}

	return router
}

func (s *Server) analyzeEmail(c *gin.Context) {
	var sub domain.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.writeError(c, errors.Join(domain.ErrInvalidInput, err), "Invalid email payload")
		return
	}

	result, err := s.analysis.Analyze(c.Request.Context(), sub)
	if err != nil {
		s.writeError(c, err, "Error analyzing email")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"id":        result.ID,
		"recordId":  result.RecordID,
		"duplicate": result.Duplicate,
		"analysis":  result.Analysis,
		"profile":   result.Profile,
	})
}

func (s *Server) getEmail(c *gin.Context) {
	record, err := s.analysis.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err, "Error fetching email")
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) getDNSRecords(c *gin.Context) {
	auth, err := s.dns.ResolveDomain(c.Request.Context(), c.Param("domain"))
	if err != nil {
		s.writeError(c, err, "Error fetching DNS records")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"domain":  auth.Domain,
		"spf":     auth.SPF.Value,
		"dkim":    auth.DKIM.Value,
		"dmarc":   auth.DMARC.Value,
		"summary": auth.Summary,
		"lookup": gin.H{
			"spf":   auth.SPF.Lookup,
			"dkim":  auth.DKIM.Lookup,
			"dmarc": auth.DMARC.Lookup,
		},
	})
}

func (s *Server) getWhois(c *gin.Context) {
	emailID := c.Param("emailId")
	result, err := s.whois.Lookup(c.Request.Context(), c.Param("domain"), emailID)
	if err != nil {
		s.writeError(c, err, "Error processing WHOIS data")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"domain":       result.Record.Domain,
		"emailId":      emailID,
		"emailUpdated": result.EmailUpdated,
		"cached":       result.Cached,
		"whoisData":    result.Record.Data,
	})
}

type whoisRequest struct {
	Domain string `json:"domain" binding:"required"`
}

func (s *Server) postWhois(c *gin.Context) {
	var req whoisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Join(domain.ErrInvalidInput, err), "Domain is required")
		return
	}

	record, err := s.whois.Refresh(c.Request.Context(), req.Domain)
	if err != nil {
		s.writeError(c, err, "Error saving WHOIS data")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"domain":    record.Domain,
		"whoisData": record.Data,
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	summary, err := s.dashboard.Get(c.Request.Context(), c.Param("timeRange"))
	if err != nil {
		s.writeError(c, err, "Error fetching metrics")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// writeError maps domain errors to status codes. Details are only exposed outside production.
func (s *Server) writeError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidDomain):
		status = http.StatusBadRequest
		message = "Invalid domain format"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "Not found"
	case errors.Is(err, domain.ErrThreatAPINotConfigured):
		message = "Server configuration error"
	case errors.Is(err, domain.ErrWhoisUnavailable):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}

	body := gin.H{"success": false, "error": message}
	if !s.production {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
