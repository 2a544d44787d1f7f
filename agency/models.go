package agency

import "time"

// Profile captures the subset of agency data exposed to the presentation layer.
type Profile struct {
	ID        string
	Name      string
	LicenseNo string
	Verified  bool
	CreatedAt time.Time
}
