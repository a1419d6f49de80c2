package sync

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/lumastack/routelog/internal/wire"
)

// Probe answers whether the device currently has a usable network path
// to the delivery origin. A nil probe means "assume online".
type Probe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

const dialProbeTimeout = 3 * time.Second

// DialProbe reports connectivity by attempting a TCP dial to the
// resolved delivery origin. It deliberately does not issue an HTTP
// request: reachability is the question, not authorization.
func DialProbe(cfg wire.Config) Probe {
	return ProbeFunc(func(ctx context.Context) bool {
		u, err := url.Parse(wire.ResolveOrigin(cfg))
		if err != nil || u.Host == "" {
			return false
		}
		host := u.Host
		if u.Port() == "" {
			switch u.Scheme {
			case "http":
				host = net.JoinHostPort(u.Hostname(), "80")
			default:
				host = net.JoinHostPort(u.Hostname(), "443")
			}
		}
		d := net.Dialer{Timeout: dialProbeTimeout}
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})
}

func (e *Engine) online(ctx context.Context) bool {
	if e.probe == nil {
		return true
	}
	return e.probe.Online(ctx)
}
