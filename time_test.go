package account_test

import (
	"testing"
	"time"

	account "github.com/goliatone/go-account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	tests := []struct {
		name      string
		inputTime time.Time
		pattern   string
		expected  bool
		expectErr bool
	}{
		{
			name:      "within one hour",
			inputTime: time.Now().Add(-30 * time.Minute),
			pattern:   "1h",
			expected:  true,
		},
		{
			name:      "outside one hour",
			inputTime: time.Now().Add(-90 * time.Minute),
			pattern:   "1h",
			expected:  false,
		},
		{
			name:      "composite duration",
			inputTime: time.Now().Add(-2 * time.Hour),
			pattern:   "2h30m",
			expected:  true,
		},
		{
			name:      "future time",
			inputTime: time.Now().Add(time.Hour),
			pattern:   "1h",
			expected:  true,
		},
		{
			name:      "invalid pattern",
			inputTime: time.Now(),
			pattern:   "soon",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := account.IsWithinThresholdPeriod(tt.inputTime, tt.pattern)

			if tt.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	got, err := account.IsOutsideThresholdPeriod(time.Now().Add(-2*time.Hour), "1h")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = account.IsOutsideThresholdPeriod(time.Now().Add(-10*time.Minute), "1h")
	require.NoError(t, err)
	assert.False(t, got)

	_, err = account.IsOutsideThresholdPeriod(time.Now(), "later")
	require.Error(t, err)
}
