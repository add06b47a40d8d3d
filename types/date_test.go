package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateNormalizesOverflow(t *testing.T) {
	assert.Equal(t, NewDate(2024, time.March, 1), NewDate(2024, time.February, 30))
	assert.Equal(t, NewDate(2025, time.January, 2), NewDate(2024, time.December, 31).Add(2))
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", d.String())

	_, err = ParseDate("07/01/2024")
	assert.Error(t, err)
}

func TestDateOfRespectsLocation(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	ts := time.Date(2024, 7, 2, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2024, time.July, 1), DateOf(ts, toronto))
}

func TestDateAt(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	at := NewDate(2024, time.July, 1).At(16, 0, toronto)
	assert.Equal(t, 16, at.Hour())
	assert.Equal(t, "America/Toronto", at.Location().String())
}
