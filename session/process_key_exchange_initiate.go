package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/logger"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/state/record"
)

// InitiateKeyExchange starts an outbound interactive key exchange —
// spec.md §4.2.3's "process()" with no arguments. It always negotiates
// version 2 on the wire so the peer can upgrade via MaxVersion; this is
// preserved verbatim from the source behavior (spec.md §9, DESIGN.md Open
// Question 3), not changed to CurrentVersion.
func (b *Builder) InitiateKeyExchange(ctx context.Context) (*protocol.KeyExchangeMessage, error) {
	sequence, err := randomSequence()
	if err != nil {
		return nil, err
	}

	baseKey, err := ecc.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	ratchetKey, err := ecc.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	ourIdentityKeyPair, err := b.stores.IdentityKey.GetIdentityKeyPair(ctx)
	if err != nil {
		return nil, err
	}

	sessionRecord, err := b.stores.Session.LoadSession(ctx, b.remoteAddress)
	if err != nil {
		return nil, err
	}
	sessionRecord.SessionState().PendingKeyExchange = &record.PendingKeyExchange{
		Sequence:    sequence,
		BaseKey:     baseKey,
		RatchetKey:  ratchetKey,
		IdentityKey: ourIdentityKeyPair,
	}
	if err := b.stores.Session.StoreSession(ctx, b.remoteAddress, sessionRecord); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "initiated key exchange", "remote", b.remoteAddress.String(), "sequence", sequence)

	return &protocol.KeyExchangeMessage{
		Version:     protocol.MinimumVersion,
		MaxVersion:  protocol.CurrentVersion,
		Sequence:    sequence,
		Flags:       protocol.KeyExchangeInitiate,
		BaseKey:     baseKey.Public,
		BaseKeySig:  ourIdentityKeyPair.Sign(baseKey.Public.Serialize()),
		RatchetKey:  ratchetKey.Public,
		IdentityKey: ourIdentityKeyPair.PublicKey(),
	}, nil
}

func randomSequence() (uint32, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return uint32(binary.BigEndian.Uint16(b[:])), nil
}
