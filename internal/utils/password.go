package utils

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// bcrypt ignores everything past this many bytes; newer x/crypto versions
// return an error instead, so inputs are cut here first.
const maxPasswordBytes = 72

// PasswordCodec hashes and verifies passwords with bcrypt.
type PasswordCodec struct {
	cost int
}

// NewPasswordCodec returns a codec using cost, clamped to bcrypt's
// accepted range.  A zero cost selects DefaultBcryptCost.
func NewPasswordCodec(cost int) PasswordCodec {
	switch {
	case cost == 0:
		cost = DefaultBcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return PasswordCodec{cost: cost}
}

// Cost returns the configured work factor.
func (p PasswordCodec) Cost() int { return p.cost }

// Hash returns a salted bcrypt hash of plain.
func (p PasswordCodec) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(clip(plain), p.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a bcrypt hash and a plain password.  Malformed
// hashes simply fail to match.
func (p PasswordCodec) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), clip(plain)) == nil
}

func clip(plain string) []byte {
	b := []byte(plain)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
