package di

import (
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/adapters/cache"
	"github.com/phishfinder/backend/internal/adapters/dnsresolver"
	"github.com/phishfinder/backend/internal/adapters/httpapi"
	"github.com/phishfinder/backend/internal/adapters/providers"
	"github.com/phishfinder/backend/internal/adapters/safebrowsing"
	"github.com/phishfinder/backend/internal/adapters/storage"
	"github.com/phishfinder/backend/internal/adapters/whois"
	"github.com/phishfinder/backend/internal/application"
	"github.com/phishfinder/backend/internal/config"
	"github.com/phishfinder/backend/internal/domain/detection"
	"github.com/phishfinder/backend/internal/logging"
	"github.com/phishfinder/backend/internal/ports"
	"github.com/phishfinder/backend/internal/telemetry"
)

// BuildContainer creates and configures a dependency injection container.
// Resources are opened lazily, when Invoke first asks for them.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	constructors := []interface{}{
		// Configuration and logging
		func() *config.Config { return cfg },
		logging.InitLogger,
		telemetry.New,

		// Driven adapters
		NewStorage,
		cache.NewCacheFactory,
		func(f *cache.CacheFactory) (ports.Cache, error) {
			return f.CreateCache()
		},
		NewTXTResolver,
		NewThreatChecker,
		NewWhoisFetcher,
		providers.NewRegistry,

		// Domain and application services
		detection.NewDetector,
		NewProfileUpdater,
		NewAuthenticationResolver,
		NewAnalysisService,
		NewWhoisService,
		func(store ports.Storage) *application.MetricsService {
			return application.NewMetricsService(store)
		},
		NewBackfillService,

		// Driving adapters
		NewHTTPServer,
	}

	for _, p := range constructors {
		if err := container.Provide(p); err != nil {
			return nil, err
		}
	}

	return container, nil
}

// NewStorage opens the store selected by storage.type
func NewStorage(cfg *config.Config, logger *zap.Logger) (ports.Storage, error) {
	storageCfg := cfg.GetStorage()

	switch storageCfg.Type {
	case "postgres":
		store, err := storage.NewPostgresStore(storageCfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		logger.Info("Connected to PostgreSQL")
		return store, nil
	case "memory":
		logger.Info("Using in-memory storage, analyses will not survive a restart")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}

// NewTXTResolver creates the DNS resolver
func NewTXTResolver(cfg *config.Config, logger *zap.Logger) (ports.TXTResolver, error) {
	dnsCfg, err := cfg.GetDNS()
	if err != nil {
		return nil, err
	}
	resolver := dnsresolver.New(dnsCfg.Server, dnsCfg.Timeout, logger)
	logger.Debug("DNS resolver configured", zap.String("server", resolver.Server()))
	return resolver, nil
}

// NewThreatChecker creates the Safe Browsing client
func NewThreatChecker(cfg *config.Config, logger *zap.Logger) (ports.ThreatChecker, error) {
	sbCfg, err := cfg.GetSafeBrowsing()
	if err != nil {
		return nil, err
	}
	if sbCfg.APIKey == "" {
		logger.Warn("Safe Browsing API key not configured, email analysis will be rejected")
	}
	return safebrowsing.NewClient(safebrowsing.Config{
		APIKey:        sbCfg.APIKey,
		Endpoint:      sbCfg.Endpoint,
		ClientID:      sbCfg.ClientID,
		ClientVersion: sbCfg.ClientVersion,
		Timeout:       sbCfg.Timeout,
	}, logger), nil
}

// NewWhoisFetcher creates the WHOIS microservice client
func NewWhoisFetcher(cfg *config.Config, logger *zap.Logger) (ports.WhoisFetcher, error) {
	whoisCfg, err := cfg.GetWhois()
	if err != nil {
		return nil, err
	}
	return whois.NewClient(whoisCfg.BaseURL, whoisCfg.Timeout, logger), nil
}

// NewProfileUpdater creates the sender profile writer
func NewProfileUpdater(cfg *config.Config, store ports.Storage) *application.ProfileUpdater {
	return application.NewProfileUpdater(store, cfg.GetAnalysis().MaxEntryBody)
}

// NewAuthenticationResolver creates the two-tier domain authentication resolver
func NewAuthenticationResolver(
	cfg *config.Config,
	dns ports.TXTResolver,
	c ports.Cache,
	store ports.Storage,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) (*application.AuthenticationResolver, error) {
	dnsCfg, err := cfg.GetDNS()
	if err != nil {
		return nil, err
	}
	cacheCfg, err := cfg.GetCache()
	if err != nil {
		return nil, err
	}
	return application.NewAuthenticationResolver(dns, c, store, application.AuthResolverConfig{
		CacheTTL:  cacheCfg.DNSTTL,
		StoreTTL:  dnsCfg.AuthTTL,
		Selectors: dnsCfg.DKIMSelectors,
	}, metrics, logger), nil
}

// NewAnalysisService creates the analysis orchestrator
func NewAnalysisService(
	cfg *config.Config,
	store ports.Storage,
	threats ports.ThreatChecker,
	auth *application.AuthenticationResolver,
	detector *detection.Detector,
	profiles *application.ProfileUpdater,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *application.AnalysisService {
	trusted := cfg.GetAnalysis().TrustedDomains
	if len(trusted) > 0 {
		logger.Info("Loaded trusted domains", zap.Strings("domains", trusted))
	}
	return application.NewAnalysisService(store, threats, auth, detector, profiles, trusted, metrics, logger)
}

// NewWhoisService creates the WHOIS enrichment service
func NewWhoisService(
	cfg *config.Config,
	fetcher ports.WhoisFetcher,
	store ports.Storage,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) (*application.WhoisService, error) {
	whoisCfg, err := cfg.GetWhois()
	if err != nil {
		return nil, err
	}
	return application.NewWhoisService(fetcher, store, whoisCfg.CacheTTL, metrics, logger), nil
}

// NewBackfillService creates the background retry job
func NewBackfillService(
	cfg *config.Config,
	store ports.Storage,
	profiles *application.ProfileUpdater,
	detector *detection.Detector,
	logger *zap.Logger,
) (*application.BackfillService, error) {
	jobsCfg, err := cfg.GetJobs()
	if err != nil {
		return nil, err
	}
	return application.NewBackfillService(store, profiles, detector, application.BackfillConfig{
		BatchSize:    jobsCfg.BatchSize,
		ProfileGrace: jobsCfg.ProfileGrace,
		RetryBase:    jobsCfg.RetryBase,
		RetryMax:     jobsCfg.RetryMax,
	}, logger), nil
}

// NewHTTPServer creates the HTTP API
func NewHTTPServer(
	cfg *config.Config,
	analysis *application.AnalysisService,
	auth *application.AuthenticationResolver,
	whoisService *application.WhoisService,
	dashboard *application.MetricsService,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) (*httpapi.Server, error) {
	serverCfg, err := cfg.GetServer()
	if err != nil {
		return nil, err
	}
	opts := httpapi.Options{Production: serverCfg.IsProduction()}
	if serverCfg.DNSRateLimit > 0 {
		opts.DNSLimiter = httpapi.NewIPRateLimiter(serverCfg.DNSRateLimit, serverCfg.DNSRateWindow)
	}
	return httpapi.NewServer(analysis, auth, whoisService, dashboard, metrics, opts, logger), nil
}
