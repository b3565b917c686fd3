// Package metadata extracts client network metadata from inbound HTTP
// requests so consent-proof capture can record who submitted a form and from
// where. The engine itself has no HTTP surface; host applications mount this
// middleware in front of whatever handler eventually calls the engine.
package metadata

import (
	"net/http"
	"strings"

	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// proxyHeaders is the trusted header fallback order for the original client
// address behind proxies and load balancers.
var proxyHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// ClientMetadata extracts the client IP address and User-Agent from the
// request and adds them to the context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest resolves the real client IP, walking the proxy header
// list in order before falling back to the socket address. Returns
// requestcontext.UnknownClientIP when nothing usable is present; a missing
// address must not fail a consent capture.
func ClientIPFromRequest(r *http.Request) string {
	for _, h := range proxyHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		// X-Forwarded-For may carry "client, proxy1, proxy2"; the first
		// entry is the original client.
		if idx := strings.Index(v, ","); idx != -1 {
			v = v[:idx]
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	if addr := r.RemoteAddr; addr != "" {
		// "ip:port" for IPv4, "[::1]:port" for IPv6; strip the port.
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return requestcontext.UnknownClientIP
}
