package middleware

import (
	"net/http"
	"net/netip"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/signal-admin/backend/utils"
)

// RealIP applies chi's RealIP only to requests whose peer address is inside
// one of the trusted proxy prefixes. Everyone else keeps RemoteAddr, so
// X-Real-IP and X-Forwarded-For from a direct client are ignored.
type RealIP struct {
	trusted []netip.Prefix
}

// NewRealIP creates a RealIP trusting the given prefixes. No prefixes means
// no forwarding headers are honored.
func NewRealIP(trusted []netip.Prefix) *RealIP {
	return &RealIP{trusted: trusted}
}

// Handler rewrites RemoteAddr from forwarding headers for trusted peers
func (m *RealIP) Handler(next http.Handler) http.Handler {
	forwarded := chimiddleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.trustedPeer(r) {
			forwarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RealIP) trustedPeer(r *http.Request) bool {
	if len(m.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(utils.ClientIP(r))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
