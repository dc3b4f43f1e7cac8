package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey identifies the caller for per-client limits: the session when the
// request is authenticated, otherwise the remote host. chi's RealIP middleware
// is expected to have normalised RemoteAddr already.
func ClientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	if session, ok := Session(r.Context()); ok {
		return "session:" + session
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return "ip:" + host
	}
	return "ip:" + addr
}
