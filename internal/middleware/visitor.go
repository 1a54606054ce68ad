package middleware

import (
	"net"

	"github.com/gin-gonic/gin"
)

type visitorTracker interface {
	Track(ip string)
}

// VisitorTracking records unique visitor IPs off the request path.
// Loopback and unparsable addresses are skipped.
func VisitorTracking(tracker visitorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ip := net.ParseIP(c.ClientIP()); ip != nil && !ip.IsLoopback() {
			tracker.Track(ip.String())
		}
		c.Next()
	}
}
