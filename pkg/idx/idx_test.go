package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	t.Parallel()

	id := idx.New()
	require.False(t, id.IsZero())
	require.Len(t, id.String(), 26)

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		_, err := idx.Parse(in)
		require.ErrorIs(t, err, idx.ErrInvalid, "input %q", in)
	}
}

func TestMonotonicWithinSameMillisecond(t *testing.T) {
	// Not parallel: another goroutine drawing from a different millisecond
	// in between would reseed the entropy.
	at := time.Unix(1600000000, 0).UTC()
	a := idx.NewAt(at)
	b := idx.NewAt(at)

	require.Less(t, a.String(), b.String())
}

func TestTimeExtraction(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000000, 0).UTC()
	require.True(t, at.Equal(idx.NewAt(at).Time()))
	require.True(t, idx.Zero.Time().IsZero())
}
