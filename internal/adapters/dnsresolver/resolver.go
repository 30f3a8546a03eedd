package dnsresolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"go.uber.org/zap"
)

const fallbackServer = "8.8.8.8:53"

// Resolver sends TXT queries to a single recursive DNS server
type Resolver struct {
	udp    *mdns.Client
	tcp    *mdns.Client
	server string
	logger *zap.Logger
}

// New creates a resolver for server ("host:port"). An empty server uses the
// first nameserver of /etc/resolv.conf, falling back to a public resolver.
func New(server string, timeout time.Duration, logger *zap.Logger) *Resolver {
	if server == "" {
		server = systemServer(logger)
	}
	return &Resolver{
		udp:    &mdns.Client{Net: "udp", Timeout: timeout},
		tcp:    &mdns.Client{Net: "tcp", Timeout: timeout},
		server: server,
		logger: logger,
	}
}

func systemServer(logger *zap.Logger) string {
	conf, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		logger.Warn("No system nameserver found, using fallback",
			zap.String("server", fallbackServer), zap.Error(err))
		return fallbackServer
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// Server returns the nameserver address queries are sent to
func (r *Resolver) Server() string {
	return r.server
}

// LookupTXT returns the TXT strings at name. NXDOMAIN and empty answers yield nil, nil.
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), mdns.TypeTXT)
	m.RecursionDesired = true

	resp, _, err := r.udp.ExchangeContext(ctx, m, r.server)
	if err == nil && resp.Truncated {
		r.logger.Debug("Truncated TXT answer, retrying over TCP", zap.String("name", name))
		resp, _, err = r.tcp.ExchangeContext(ctx, m, r.server)
	}
	if err != nil {
		return nil, fmt.Errorf("TXT lookup for %s failed: %w", name, err)
	}

	switch resp.Rcode {
	case mdns.RcodeSuccess:
	case mdns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("TXT lookup for %s failed: %s", name, mdns.RcodeToString[resp.Rcode])
	}

	var out []string
	for _, ans := range resp.Answer {
		if t, ok := ans.(*mdns.TXT); ok {
			out = append(out, strings.Join(t.Txt, ""))
		}
	}
	return out, nil
}
