package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTier_Rank(t *testing.T) {
	// Ordering matters more than the exact numbers.
	assert.Greater(t, TierCritical.Rank(), TierHigh.Rank())
	assert.Greater(t, TierHigh.Rank(), TierMedium.Rank())
	assert.Greater(t, TierMedium.Rank(), TierLow.Rank())
	assert.Greater(t, TierLow.Rank(), TierTrivial.Rank())
}

func TestTier_Valid(t *testing.T) {
	for _, tier := range AllTiers {
		assert.True(t, tier.Valid(), "tier %q should be valid", tier)
	}
	assert.False(t, Tier("").Valid())
	assert.False(t, Tier("legendary").Valid())
	assert.False(t, Tier("HIGH").Valid())
}

func TestTier_BaseScore(t *testing.T) {
	assert.Equal(t, 1.0, TierCritical.BaseScore())
	assert.Equal(t, 0.8, TierHigh.BaseScore())
	assert.Equal(t, 0.5, TierMedium.BaseScore())
	assert.Equal(t, 0.3, TierLow.BaseScore())
	assert.Equal(t, 0.15, TierTrivial.BaseScore())
}

func TestSensitivity_Rank(t *testing.T) {
	assert.Greater(t, SensitivityPrivate.Rank(), SensitivitySensitive.Rank())
	assert.Greater(t, SensitivitySensitive.Rank(), SensitivityNormal.Rank())
	assert.Greater(t, SensitivityNormal.Rank(), SensitivityPublic.Rank())
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases",
			input:    "Sarah Chen",
			expected: "sarah chen",
		},
		{
			name:     "trims whitespace",
			input:    "  Sarah  ",
			expected: "sarah",
		},
		{
			name:     "already normalized",
			input:    "sarah",
			expected: "sarah",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestEntity_IsActive(t *testing.T) {
	assert.True(t, (&Entity{Status: StatusActive}).IsActive())
	assert.False(t, (&Entity{Status: StatusArchived}).IsActive())
}
