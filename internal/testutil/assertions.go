package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// AssertCredentialEqual compares two credential records field by field.
// Expiry is compared with a tolerance since providers return relative lifetimes.
func AssertCredentialEqual(t *testing.T, expected, actual models.CredentialRecord) {
	t.Helper()

	assert.Equal(t, expected.AccessToken, actual.AccessToken, "AccessToken should match")
	assert.Equal(t, expected.RefreshToken, actual.RefreshToken, "RefreshToken should match")
	assert.Equal(t, expected.TokenEndpoint, actual.TokenEndpoint, "TokenEndpoint should match")
	assert.Equal(t, expected.ClientID, actual.ClientID, "ClientID should match")
	assert.Equal(t, expected.ClientSecret, actual.ClientSecret, "ClientSecret should match")
	assert.Equal(t, expected.Scopes, actual.Scopes, "Scopes should match")

	if !expected.Expiry.IsZero() {
		AssertTimeAlmostEqual(t, expected.Expiry, actual.Expiry, 2*time.Second)
	}
}

// AssertFileNames checks the display names of records, in order.
func AssertFileNames(t *testing.T, records []models.FileRecord, names ...string) {
	t.Helper()

	got := make([]string, 0, len(records))
	for _, r := range records {
		got = append(got, r.DisplayName)
	}
	assert.Equal(t, names, got)
}

// AssertTimeAlmostEqual checks if two times are within a tolerance.
func AssertTimeAlmostEqual(t *testing.T, expected, actual time.Time, tolerance time.Duration) {
	t.Helper()

	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}

	assert.True(t, diff <= tolerance,
		"Times should be within %v of each other. Expected: %v, Actual: %v, Diff: %v",
		tolerance, expected, actual, diff)
}
