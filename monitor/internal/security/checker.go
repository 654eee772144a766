package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

const (
	dialTimeout    = 10 * time.Second
	expiringWithin = 30 // days
)

// Check dials the TLS endpoint of src and returns a CertStatus describing
// the leaf certificate.
//
// Returns nil for non-HTTPS endpoints; there is no certificate to inspect.
func Check(ctx context.Context, src config.Source) *types.CertStatus {
	return check(ctx, src, time.Now())
}

func check(ctx context.Context, src config.Source, now time.Time) *types.CertStatus {
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &types.CertStatus{
		Endpoint: src.Endpoint,
		AuthType: src.Auth.Mode,
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}
	describe(cs, peerCerts[0], now)
	return cs
}

// describe fills the expiry fields of cs from leaf.
func describe(cs *types.CertStatus, leaf *x509.Certificate, now time.Time) {
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	if cs.Issuer == "" && len(leaf.Issuer.Organization) > 0 {
		cs.Issuer = leaf.Issuer.Organization[0]
	}
	cs.DaysLeft = int32(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = "expired"
	case daysLeft <= expiringWithin:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}
}

// Checker caches the certificate status of one source so API requests do
// not dial the source each time.
type Checker struct {
	src config.Source
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	last      *types.CertStatus
	checkedAt time.Time
}

// NewChecker returns a Checker for src that re-dials at most once per ttl.
func NewChecker(src config.Source, ttl time.Duration) *Checker {
	return &Checker{src: src, ttl: ttl, now: time.Now}
}

// Statuses returns the certificate statuses for the source: empty for
// plain HTTP, otherwise one entry.
func (c *Checker) Statuses(ctx context.Context) []types.CertStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.checkedAt.IsZero() || now.Sub(c.checkedAt) >= c.ttl {
		c.last = check(ctx, c.src, now)
		c.checkedAt = now
	}
	if c.last == nil {
		return []types.CertStatus{}
	}
	return []types.CertStatus{*c.last}
}
