package cache

import "time"

// Policy configures entry lifetime and cache capacity.
type Policy struct {
	// TTL is how long an entry lives after it is written.
	// Zero means entries never expire.
	TTL time.Duration

	// MaxEntries caps the number of stored entries. When full, the oldest
	// written entry is evicted. Zero means unbounded.
	MaxEntries int

	// SweepInterval is how often expired entries are removed in the
	// background. Zero disables sweeping; expired entries are still
	// dropped on read.
	SweepInterval time.Duration
}

// DefaultPolicy returns the default idempotency policy.
// TTL: 24 hours, MaxEntries: 100000, SweepInterval: 1 minute
func DefaultPolicy() Policy {
	return Policy{
		TTL:           24 * time.Hour,
		MaxEntries:    100000,
		SweepInterval: time.Minute,
	}
}

// UnboundedPolicy returns a policy under which entries never expire and are
// never evicted.
func UnboundedPolicy() Policy {
	return Policy{}
}

// Expires reports whether entries written under this policy expire.
func (p Policy) Expires() bool {
	return p.TTL > 0
}

// Bounded reports whether the policy caps the number of entries.
func (p Policy) Bounded() bool {
	return p.MaxEntries > 0
}

// ExpiresAt returns the expiry time for an entry written at now, or the zero
// time when entries do not expire.
func (p Policy) ExpiresAt(now time.Time) time.Time {
	if !p.Expires() {
		return time.Time{}
	}
	return now.Add(p.TTL)
}
