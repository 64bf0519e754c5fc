package middleware

import (
	"net"
	"net/http"

	"btrader/internal/infra/metrics"
)

// AdminGate restricts access to admin endpoints by remote IP against allowed CIDR list.
func AdminGate(allowed []*net.IPNet, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ip := net.ParseIP(host); ip != nil {
			for _, n := range allowed {
				if n.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		metrics.AdminDeniedTotal.Inc()
		http.Error(w, "forbidden", http.StatusForbidden)
	})
}
