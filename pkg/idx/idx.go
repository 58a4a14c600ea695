package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26 character form. We use these for
// request IDs so log lines sort by time across processes.
type ID string

// Zero is the empty ID.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	sourceOnce sync.Once
	source     *monotonic
)

// monotonic hands out ULIDs from a shared monotonic entropy source. The
// entropy reader is not safe for concurrent use so it sits behind a mutex.
type monotonic struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (m *monotonic) at(t time.Time) ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), m.entropy).String())
}

func initSource() {
	source = &monotonic{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a fresh ID stamped with the current UTC time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt returns an ID stamped with t. Handy in tests.
func NewAt(t time.Time) ID {
	sourceOnce.Do(initSource)
	return source.at(t)
}

// Parse validates s as a strict ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded timestamp, or the zero time for invalid IDs.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
