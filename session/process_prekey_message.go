package session

import (
	"context"
	"fmt"

	"github.com/mikalv/libaxolotl/logger"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/ratchet"
	"github.com/mikalv/libaxolotl/signalerror"
	"github.com/mikalv/libaxolotl/state/record"
	"github.com/mikalv/libaxolotl/util/optional"
)

// ProcessPreKeyMessage builds a new session from a session record and the
// first inbound message of a pre-key-bundle-based establishment — the
// "Bob" path (spec.md §4.2.2). It returns the one-time pre-key id the
// caller must delete from the store, or an empty optional if none should
// be deleted (already consumed, or none was used).
//
// The caller owns committing sessionRecord and deleting the returned
// pre-key id — this split lets a single decrypt-and-commit transaction be
// composed atomically by the caller, the same division of labor spec.md
// §4.2.2 describes.
func (b *Builder) ProcessPreKeyMessage(ctx context.Context, sessionRecord *record.Session, message protocol.PreKeySignalMessage) (optional.Uint32, error) {
	trusted, err := b.stores.IdentityKey.IsTrustedIdentity(ctx, b.remoteAddress.Name(), message.IdentityKey)
	if err != nil {
		return optional.Uint32{}, err
	}
	if !trusted {
		return optional.Uint32{}, signalerror.ErrUntrustedIdentity
	}

	var preKeyID optional.Uint32
	switch message.Version {
	case 3:
		preKeyID, err = b.processV3(ctx, sessionRecord, message)
	case 2:
		preKeyID, err = b.processV2(ctx, sessionRecord, message)
	default:
		return optional.Uint32{}, fmt.Errorf("%w: unknown version %d", signalerror.ErrInvalidMessage, message.Version)
	}
	if err != nil {
		return optional.Uint32{}, err
	}

	if err := b.stores.IdentityKey.SaveIdentity(ctx, b.remoteAddress.Name(), message.IdentityKey); err != nil {
		return optional.Uint32{}, err
	}
	return preKeyID, nil
}

func (b *Builder) processV3(ctx context.Context, sessionRecord *record.Session, message protocol.PreKeySignalMessage) (optional.Uint32, error) {
	if sessionRecord.HasSessionState(message.Version, message.BaseKey.Serialize()) {
		logger.Debug(ctx, "duplicate v3 first message, session already established", "remote", b.remoteAddress.String())
		return optional.NewEmptyUint32(), nil
	}

	ourSignedPreKeyRecord, err := b.stores.SignedPreKey.LoadSignedPreKey(ctx, message.SignedPreKeyID)
	if err != nil {
		return optional.Uint32{}, err
	}

	params := ratchet.BobParameters{
		TheirIdentityKey: message.IdentityKey,
		TheirBaseKey:     message.BaseKey,
		OurSignedPreKey:  ourSignedPreKeyRecord.KeyPair,
		OurRatchetKey:    ourSignedPreKeyRecord.KeyPair,
	}

	var consumedPreKeyID optional.Uint32
	if !message.PreKeyID.IsEmpty {
		oneTimePreKeyRecord, err := b.stores.PreKey.LoadPreKey(ctx, message.PreKeyID.Value)
		if err != nil {
			return optional.Uint32{}, err
		}
		params.OurOneTimePreKey = oneTimePreKeyRecord.KeyPair
		consumedPreKeyID = message.PreKeyID
	} else {
		consumedPreKeyID = optional.NewEmptyUint32()
	}

	ourIdentityKeyPair, err := b.stores.IdentityKey.GetIdentityKeyPair(ctx)
	if err != nil {
		return optional.Uint32{}, err
	}
	params.OurIdentityKey = ourIdentityKeyPair

	if !sessionRecord.IsFresh() {
		sessionRecord.ArchiveCurrentState()
	}

	derived, err := ratchet.CalculateReceiverSession(params)
	if err != nil {
		return optional.Uint32{}, err
	}

	state := sessionRecord.SessionState()
	state.Version = protocol.CurrentVersion
	state.RemoteIdentityKey = message.IdentityKey
	state.LocalIdentityKey = ourIdentityKeyPair.PublicKey()
	state.SetSenderChain(ourSignedPreKeyRecord.KeyPair, derived.ChainKey)
	state.RootKey = derived.RootKey

	state.LocalRegistrationID, err = b.stores.IdentityKey.GetLocalRegistrationID(ctx)
	if err != nil {
		return optional.Uint32{}, err
	}
	state.RemoteRegistrationID = message.RegistrationID
	state.AliceBaseKey = message.BaseKey.Serialize()
	sessionRecord.MarkInstalled()

	return consumedPreKeyID, nil
}

func (b *Builder) processV2(ctx context.Context, sessionRecord *record.Session, message protocol.PreKeySignalMessage) (optional.Uint32, error) {
	if message.PreKeyID.IsEmpty {
		return optional.Uint32{}, fmt.Errorf("%w: V2 requires one time prekey id", signalerror.ErrInvalidKeyID)
	}

	hasPreKey, err := b.stores.PreKey.ContainsPreKey(ctx, message.PreKeyID.Value)
	if err != nil {
		return optional.Uint32{}, err
	}
	if !hasPreKey {
		hasSession, err := b.stores.Session.ContainsSession(ctx, b.remoteAddress)
		if err != nil {
			return optional.Uint32{}, err
		}
		if hasSession {
			logger.Debug(ctx, "V2 prekey already consumed, session already exists", "remote", b.remoteAddress.String())
			return optional.NewEmptyUint32(), nil
		}
		return optional.Uint32{}, fmt.Errorf("%w: one-time pre-key %d", signalerror.ErrInvalidKeyID, message.PreKeyID.Value)
	}

	oneTimePreKeyRecord, err := b.stores.PreKey.LoadPreKey(ctx, message.PreKeyID.Value)
	if err != nil {
		return optional.Uint32{}, err
	}

	ourIdentityKeyPair, err := b.stores.IdentityKey.GetIdentityKeyPair(ctx)
	if err != nil {
		return optional.Uint32{}, err
	}

	params := ratchet.BobParameters{
		OurIdentityKey:   ourIdentityKeyPair,
		OurSignedPreKey:  oneTimePreKeyRecord.KeyPair, // v2 has no signed/one-time distinction
		OurRatchetKey:    oneTimePreKeyRecord.KeyPair,
		TheirIdentityKey: message.IdentityKey,
		TheirBaseKey:     message.BaseKey,
	}

	if !sessionRecord.IsFresh() {
		sessionRecord.ArchiveCurrentState()
	}

	derived, err := ratchet.CalculateReceiverSession(params)
	if err != nil {
		return optional.Uint32{}, err
	}

	state := sessionRecord.SessionState()
	state.Version = protocol.MinimumVersion
	state.RemoteIdentityKey = message.IdentityKey
	state.LocalIdentityKey = ourIdentityKeyPair.PublicKey()
	state.SetSenderChain(oneTimePreKeyRecord.KeyPair, derived.ChainKey)
	state.RootKey = derived.RootKey

	state.LocalRegistrationID, err = b.stores.IdentityKey.GetLocalRegistrationID(ctx)
	if err != nil {
		return optional.Uint32{}, err
	}
	state.RemoteRegistrationID = message.RegistrationID
	state.AliceBaseKey = message.BaseKey.Serialize()
	sessionRecord.MarkInstalled()

	return message.PreKeyID, nil
}
