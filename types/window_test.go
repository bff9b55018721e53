package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowValidate(t *testing.T) {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	_, err := NewWindow(start, end)
	assert.NoError(t, err)

	_, err = NewWindow(end, start)
	assert.Error(t, err)

	_, err = NewWindow(time.Time{}, end)
	assert.Error(t, err)
}

func TestWindowDays(t *testing.T) {
	w, err := NewWindow(
		time.Date(2025, 7, 30, 9, 15, 0, 0, time.UTC),
		time.Date(2025, 8, 2, 23, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-07-30", "2025-07-31", "2025-08-01", "2025-08-02"}, w.Days())
}

func TestWindowDaysSingleDay(t *testing.T) {
	w, err := NewWindow(
		time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 30, 18, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-07-30"}, w.Days())
}

func TestWindowContains(t *testing.T) {
	w := Window{
		Start: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.True(t, w.Contains(time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
}
