package models

import "time"

// VisitorIP records unique public-endpoint visitors for abuse review.
type VisitorIP struct {
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	VisitCount int       `db:"visit_count" json:"visitCount"`
	FirstSeen  time.Time `db:"first_seen" json:"firstSeen"`
	LastSeen   time.Time `db:"last_seen" json:"lastSeen"`
}
