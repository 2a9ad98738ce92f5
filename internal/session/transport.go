package session

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/chmod222/Luna/internal/config"
)

const dialTimeout = 30 * time.Second

// DialFunc opens the server connection
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// newDialer builds a dialer honoring the bind address and SOCKS5 proxy
// settings
func newDialer(cfg *config.Config) (DialFunc, error) {
	d := &net.Dialer{Timeout: dialTimeout}

	if cfg.Bind != "" {
		local, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(cfg.Bind, "0"))
		if err != nil {
			return nil, fmt.Errorf("invalid bind address %q: %w", cfg.Bind, err)
		}
		d.LocalAddr = local
	}

	if cfg.Proxy == "" {
		return d.DialContext, nil
	}

	u, err := url.Parse(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", cfg.Proxy, err)
	}
	p, err := proxy.FromURL(u, d)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", cfg.Proxy, err)
	}
	if cd, ok := p.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return p.Dial(network, addr)
	}, nil
}
