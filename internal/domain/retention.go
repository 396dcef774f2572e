package domain

import "time"

// RetentionExpired reports whether doc is still active and has reached its
// retention date at now.
func RetentionExpired(doc *Document, now time.Time) bool {
	if doc == nil || doc.RetentionUntil == nil {
		return false
	}
	if doc.Status != DocumentStatusActive {
		return false
	}
	return !now.Before(*doc.RetentionUntil)
}
