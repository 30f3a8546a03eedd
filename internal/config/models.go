package config

import (
	"errors"
	"time"
)

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress string
	Environment   string
	DNSRateLimit  int
	DNSRateWindow time.Duration
}

// IsProduction reports whether error details must be hidden from clients
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// StorageConfig represents the persistence configuration
type StorageConfig struct {
	Type        string
	PostgresDSN string
}

// CacheConfig represents the lookup cache configuration
type CacheConfig struct {
	Type             string
	DNSTTL           time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	MaxEntries       int
}

// SafeBrowsingConfig represents the threat-intelligence client configuration
type SafeBrowsingConfig struct {
	APIKey        string
	Endpoint      string
	ClientID      string
	ClientVersion string
	Timeout       time.Duration
}

// WhoisConfig represents the WHOIS microservice configuration
type WhoisConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DNSConfig represents the DNS resolver configuration
type DNSConfig struct {
	Server        string
	Timeout       time.Duration
	AuthTTL       time.Duration
	DKIMSelectors []string
}

// JobsConfig represents the background backfill configuration
type JobsConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	// ProfileGrace is how long a fresh email belongs to the request that stored it
	ProfileGrace time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
}

// AnalysisConfig represents analysis tuning
type AnalysisConfig struct {
	TrustedDomains []string
	MaxEntryBody   int
}

// GetServer returns the server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	window, err := c.GetDuration("server.dns_rate_window")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		Environment:   c.GetString("server.environment"),
		DNSRateLimit:  c.GetInt("server.dns_rate_limit"),
		DNSRateWindow: window,
	}, nil
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:        c.GetString("storage.type"),
		PostgresDSN: c.GetString("storage.postgres_dsn"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.dns_ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		DNSTTL:           ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		MaxEntries:       c.GetInt("cache.max_entries"),
	}, nil
}

// GetSafeBrowsing returns the Safe Browsing configuration
func (c *Config) GetSafeBrowsing() (SafeBrowsingConfig, error) {
	timeout, err := c.GetDuration("safebrowsing.timeout")
	if err != nil {
		return SafeBrowsingConfig{}, err
	}
	return SafeBrowsingConfig{
		APIKey:        c.GetString("safebrowsing.api_key"),
		Endpoint:      c.GetString("safebrowsing.endpoint"),
		ClientID:      c.GetString("safebrowsing.client_id"),
		ClientVersion: c.GetString("safebrowsing.client_version"),
		Timeout:       timeout,
	}, nil
}

// GetWhois returns the WHOIS configuration
func (c *Config) GetWhois() (WhoisConfig, error) {
	timeout, err := c.GetDuration("whois.timeout")
	if err != nil {
		return WhoisConfig{}, err
	}
	ttl, err := c.GetDuration("whois.cache_ttl")
	if err != nil {
		return WhoisConfig{}, err
	}
	return WhoisConfig{
		BaseURL:  c.GetString("whois.base_url"),
		Timeout:  timeout,
		CacheTTL: ttl,
	}, nil
}

// GetDNS returns the DNS configuration
func (c *Config) GetDNS() (DNSConfig, error) {
	timeout, err := c.GetDuration("dns.timeout")
	if err != nil {
		return DNSConfig{}, err
	}
	ttl, err := c.GetDuration("dns.auth_ttl")
	if err != nil {
		return DNSConfig{}, err
	}
	selectors := c.GetStringSlice("dns.dkim_selectors")
	if len(selectors) == 0 {
		return DNSConfig{}, errors.New("dns.dkim_selectors must not be empty")
	}
	return DNSConfig{
		Server:        c.GetString("dns.server"),
		Timeout:       timeout,
		AuthTTL:       ttl,
		DKIMSelectors: selectors,
	}, nil
}

// GetJobs returns the background job configuration
func (c *Config) GetJobs() (JobsConfig, error) {
	durations := make(map[string]time.Duration, 4)
	for _, key := range []string{"jobs.interval", "jobs.profile_grace", "jobs.retry_base", "jobs.retry_max"} {
		d, err := c.GetDuration(key)
		if err != nil {
			return JobsConfig{}, err
		}
		durations[key] = d
	}
	return JobsConfig{
		Enabled:      c.GetBool("jobs.enabled"),
		Interval:     durations["jobs.interval"],
		BatchSize:    c.GetInt("jobs.batch_size"),
		ProfileGrace: durations["jobs.profile_grace"],
		RetryBase:    durations["jobs.retry_base"],
		RetryMax:     durations["jobs.retry_max"],
	}, nil
}

// GetAnalysis returns the analysis configuration
func (c *Config) GetAnalysis() AnalysisConfig {
	return AnalysisConfig{
		TrustedDomains: c.GetStringSlice("analysis.trusted_domains"),
		MaxEntryBody:   c.GetInt("analysis.max_entry_body"),
	}
}
