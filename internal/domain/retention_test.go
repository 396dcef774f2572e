package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firmdocs/internal/domain"
)

func TestRetentionExpired(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, domain.RetentionExpired(nil, now))
	assert.False(t, domain.RetentionExpired(&domain.Document{Status: domain.DocumentStatusActive}, now))
	assert.True(t, domain.RetentionExpired(&domain.Document{Status: domain.DocumentStatusActive, RetentionUntil: &past}, now))
	assert.True(t, domain.RetentionExpired(&domain.Document{Status: domain.DocumentStatusActive, RetentionUntil: &now}, now))
	assert.False(t, domain.RetentionExpired(&domain.Document{Status: domain.DocumentStatusActive, RetentionUntil: &future}, now))
	assert.False(t, domain.RetentionExpired(&domain.Document{Status: domain.DocumentStatusArchived, RetentionUntil: &past}, now))
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, domain.SeverityRank(domain.SeverityLow), domain.SeverityRank(domain.SeverityMedium))
	assert.Less(t, domain.SeverityRank(domain.SeverityHigh), domain.SeverityRank(domain.SeverityCritical))
	assert.Equal(t, -1, domain.SeverityRank("bogus"))
	assert.Equal(t, domain.SeverityMedium, domain.MaxSeverity(domain.SeverityLow, domain.SeverityMedium))
	assert.Equal(t, domain.SeverityCritical, domain.MaxSeverity(domain.SeverityCritical, domain.SeverityHigh))
}
