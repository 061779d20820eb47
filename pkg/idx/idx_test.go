package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewProducesSortableIDs(t *testing.T) {
	t.Parallel()

	prev := New()
	for range 50 {
		next := New()
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	id := New()
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalid)
	_, err = Parse("not-a-ulid")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := NewAt(at)
	require.WithinDuration(t, at, id.Time(), time.Millisecond)
	require.True(t, Zero.IsZero())
}
