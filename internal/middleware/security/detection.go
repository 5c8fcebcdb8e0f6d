package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"

	applog "payback/internal/log"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// rule reports whether r matches one class of probing traffic.
type rule struct {
	name  string
	match func(r *http.Request) bool
}

// Detector flags probing traffic and resolves client addresses behind trusted proxies.
type Detector struct {
	suspicious atomic.Int64
	invalidIP  atomic.Int64

	mu      sync.RWMutex
	proxies []netip.Prefix
	rules   []rule
}

var (
	scanPaths = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "wp-login", "phpmyadmin",
		".php", "etc/passwd", "cmd.exe", "cgi-bin",
	}
	injectionMarkers = []string{
		"<script", "javascript:", "eval(", "union select", "' or '1'='1", "sleep(",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei",
	}
)

// NewDetector trusts loopback and private ranges as reverse proxies.
func NewDetector() *Detector {
	d := &Detector{
		proxies: []netip.Prefix{
			netip.MustParsePrefix("127.0.0.0/8"),
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("172.16.0.0/12"),
			netip.MustParsePrefix("192.168.0.0/16"),
			netip.MustParsePrefix("::1/128"),
		},
	}
	d.rules = []rule{
		{"scan_path", func(r *http.Request) bool { return containsAny(strings.ToLower(r.URL.Path), scanPaths) }},
		{"injection", func(r *http.Request) bool {
			return containsAny(strings.ToLower(r.URL.Path+"?"+r.URL.RawQuery), injectionMarkers)
		}},
		{"scanner_agent", func(r *http.Request) bool {
			return containsAny(strings.ToLower(r.Header.Get("User-Agent")), scannerAgents)
		}},
		{"method", func(r *http.Request) bool {
			switch r.Method {
			case "TRACE", "TRACK", "DEBUG", http.MethodConnect:
				return true
			}
			return false
		}},
		{"long_url", func(r *http.Request) bool { return len(r.URL.RequestURI()) > 2048 }},
		{"forwarding_chain", func(r *http.Request) bool {
			return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
		}},
		// Receipts are only ever read through /uploads.
		{"upload_write", func(r *http.Request) bool {
			return strings.HasPrefix(r.URL.Path, "/uploads/") && r.Method != http.MethodGet && r.Method != http.MethodHead
		}},
	}
	return d
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Inspect returns the names of every rule r matches.
func (d *Detector) Inspect(r *http.Request) []string {
	var hits []string
	for _, rl := range d.rules {
		if rl.match(r) {
			hits = append(hits, rl.name)
		}
	}
	if len(hits) > 0 {
		d.suspicious.Add(1)
	}
	return hits
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy. Malformed forwarded values are counted and ignored.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !d.trusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
		d.invalidIP.Add(1)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.String()
		}
		d.invalidIP.Add(1)
	}
	return host
}

func (d *Detector) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}

// AddTrustedProxy trusts forwarded headers from peers in cidr.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.mu.Lock()
	d.proxies = append(d.proxies, p.Masked())
	d.mu.Unlock()
	return nil
}

// Middleware logs suspicious requests without blocking them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits := d.Inspect(r); len(hits) > 0 {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				applog.FieldComponent, applog.ComponentSecurity,
				"rules", strings.Join(hits, ","),
				applog.FieldClientIP, d.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}
