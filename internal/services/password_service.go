package services

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword is hashed once per Hasher so that lookups for unknown
// accounts still spend one bcrypt comparison.
const dummyPassword = "vocabapp-timing-equalizer"

// Hasher hashes and verifies passwords using bcrypt. Plaintext passwords are
// never logged or persisted.
type Hasher struct {
	Cost      int
	dummyHash []byte
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4..31.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	h := &Hasher{Cost: cost}
	h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	return h
}

func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil when password matches hash.
func (h *Hasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// CompareDummy burns the same time as a real comparison and always fails.
func (h *Hasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}
