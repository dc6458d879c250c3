package admission

import (
	"net"
	"net/http"
	"strings"
)

// ClientIdentity picks the quota key: the trusted proxy header if configured and
// present, then the connection address, then "unknown".
func ClientIdentity(r *http.Request, header string) string {
	if header != "" {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
