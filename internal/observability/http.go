package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientMeta identifies the caller of a request for logs and lifecycle events.
type ClientMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// ClientMetaFrom reads caller metadata from headers, preferring proxy headers for the address.
func ClientMetaFrom(r *http.Request) ClientMeta {
	return ClientMeta{
		RequestID: r.Header.Get("X-Request-ID"),
		DeviceID:  r.Header.Get("X-Device-ID"),
		IP:        ClientIP(r),
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
