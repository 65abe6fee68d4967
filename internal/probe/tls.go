package probe

import (
	"crypto/tls"
	"math"
	"time"

	"github.com/hamed0406/sitehealth/internal/domain"
)

const unknownIssuer = "Unknown"

// ExtractTLS derives certificate details from an established TLS session.
// It returns nil when state is nil or carries no peer certificate. Trust is
// not evaluated: an expired or self-signed certificate is reported as-is.
func ExtractTLS(state *tls.ConnectionState, now time.Time) *domain.TLSInfo {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]

	issuer := leaf.Issuer.CommonName
	if issuer == "" && len(leaf.Issuer.Organization) > 0 {
		issuer = leaf.Issuer.Organization[0]
	}
	if issuer == "" {
		issuer = unknownIssuer
	}

	return &domain.TLSInfo{
		ValidFrom:       leaf.NotBefore.UTC(),
		ValidTo:         leaf.NotAfter.UTC(),
		Issuer:          issuer,
		DaysUntilExpiry: daysUntil(leaf.NotAfter, now),
	}
}

// daysUntil floors toward negative infinity, so a certificate that expired
// an hour ago is -1 days, not 0.
func daysUntil(t, now time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}
