package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Prober checks whether the network is reachable before a restart.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

const defaultProbeTimeout = 5 * time.Second

// DNSProber resolves Host and succeeds when at least one address comes back.
type DNSProber struct {
	Host     string
	Resolver *net.Resolver
	Timeout  time.Duration
}

// Probe implements Prober.
func (p DNSProber) Probe(ctx context.Context) error {
	host := strings.TrimSpace(p.Host)
	if host == "" {
		return errors.New("probe host not configured")
	}
	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	return nil
}
