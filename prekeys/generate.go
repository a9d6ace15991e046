// Package prekeys provides batch generation of one-time and signed
// pre-keys, the operation a directory-facing client runs at install time
// and whenever its published pre-key supply runs low (spec.md §3).
package prekeys

import (
	"fmt"
	"time"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
)

// GenerateBatch creates count one-time pre-key records with consecutive
// ids starting at startID, wrapping per spec.md §6's medium (the id space
// is 24 bits wide in real Signal; here it simply wraps at 2^32 since
// nothing in this module enforces the narrower range).
func GenerateBatch(startID uint32, count int) ([]*prekey.Record, error) {
	if count <= 0 {
		return nil, fmt.Errorf("prekeys: count must be positive, got %d", count)
	}
	out := make([]*prekey.Record, 0, count)
	id := startID
	for i := 0; i < count; i++ {
		kp, err := ecc.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("prekeys: generating one-time pre-key %d: %w", id, err)
		}
		out = append(out, &prekey.Record{ID: id, KeyPair: kp})
		id++
	}
	return out, nil
}

// GenerateSignedPreKey creates one signed pre-key under identityKeyPair,
// the medium-lived key a directory serves until it is rotated.
func GenerateSignedPreKey(identityKeyPair *identity.KeyPair, id uint32) (*prekey.SignedRecord, error) {
	kp, err := ecc.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("prekeys: generating signed pre-key %d: %w", id, err)
	}
	sig := identityKeyPair.Sign(kp.Public.Serialize())
	return &prekey.SignedRecord{
		ID:        id,
		KeyPair:   kp,
		Signature: sig,
		Timestamp: time.Now(),
	}, nil
}
