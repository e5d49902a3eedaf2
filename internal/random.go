package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// ChallengeID is the opaque identifier of one live OTP challenge.
type ChallengeID [16]byte

// NewChallengeID generates a random challenge identifier.
func NewChallengeID() (ChallengeID, error) {
	var cid ChallengeID
	_, err := rand.Read(cid[:])
	return cid, err
}

// Bytes returns the raw identifier bytes.
func (c ChallengeID) Bytes() []byte {
	return c[:]
}

// String renders the identifier as compact unpadded base64url.
func (c ChallengeID) String() string {
	return base64.RawURLEncoding.EncodeToString(c[:])
}

// ParseChallengeID decodes a challenge identifier produced by String.
func ParseChallengeID(challengeID string) (ChallengeID, error) {
	var cid ChallengeID

	raw, err := base64.RawURLEncoding.DecodeString(challengeID)
	if err != nil {
		return cid, err
	}
	if len(raw) != len(cid) {
		return cid, errors.New("invalid challenge id size")
	}

	copy(cid[:], raw)
	return cid, nil
}
