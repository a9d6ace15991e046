package session

import (
	"context"
	"fmt"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/logger"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/ratchet"
	"github.com/mikalv/libaxolotl/signalerror"
	"github.com/mikalv/libaxolotl/state/record"
)

// ProcessKeyExchange handles an inbound KeyExchangeMessage — spec.md
// §4.2.4. An INITIATE message yields a RESPONSE message to send back; a
// RESPONSE message yields no reply (nil, nil) on success.
func (b *Builder) ProcessKeyExchange(ctx context.Context, message protocol.KeyExchangeMessage) (*protocol.KeyExchangeMessage, error) {
	trusted, err := b.stores.IdentityKey.IsTrustedIdentity(ctx, b.remoteAddress.Name(), message.IdentityKey)
	if err != nil {
		return nil, err
	}
	if !trusted {
		return nil, signalerror.ErrUntrustedIdentity
	}

	if message.IsInitiate() {
		return b.processKeyExchangeInitiate(ctx, message)
	}
	return nil, b.processKeyExchangeResponse(ctx, message)
}

func (b *Builder) processKeyExchangeInitiate(ctx context.Context, message protocol.KeyExchangeMessage) (*protocol.KeyExchangeMessage, error) {
	if message.Version >= 3 {
		if !identity.VerifySignature(message.IdentityKey, message.BaseKey.Serialize(), message.BaseKeySig) {
			return nil, fmt.Errorf("%w: bad signature", signalerror.ErrInvalidKey)
		}
	}

	sessionRecord, err := b.stores.Session.LoadSession(ctx, b.remoteAddress)
	if err != nil {
		return nil, err
	}
	state := sessionRecord.SessionState()

	var ourBaseKey, ourRatchetKey *ecc.ECKeyPair
	var ourIdentityKeyPair *identity.KeyPair
	responseFlags := protocol.KeyExchangeResponse

	if pending := state.PendingKeyExchange; pending != nil {
		// Simultaneous initiate: we already called InitiateKeyExchange
		// ourselves. Reuse our own pending material rather than
		// generating fresh keys, and flag the response so the peer
		// knows our own initiate collided with theirs and lost.
		ourBaseKey = pending.BaseKey
		ourRatchetKey = pending.RatchetKey
		ourIdentityKeyPair = pending.IdentityKey
		responseFlags |= protocol.KeyExchangeSimultaneousInitiate
	} else {
		ourBaseKey, err = ecc.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		ourRatchetKey, err = ecc.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		ourIdentityKeyPair, err = b.stores.IdentityKey.GetIdentityKeyPair(ctx)
		if err != nil {
			return nil, err
		}
	}

	negotiatedVersion := minInt(int(message.MaxVersion), protocol.CurrentVersion)

	if err := b.initializeSymmetric(ctx, sessionRecord, negotiatedVersion,
		ourBaseKey, ourRatchetKey, ourIdentityKeyPair,
		message.BaseKey, message.RatchetKey, message.IdentityKey); err != nil {
		return nil, err
	}

	if err := b.stores.Session.StoreSession(ctx, b.remoteAddress, sessionRecord); err != nil {
		return nil, err
	}
	if err := b.stores.IdentityKey.SaveIdentity(ctx, b.remoteAddress.Name(), message.IdentityKey); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "responded to key exchange initiate", "remote", b.remoteAddress.String(), "sequence", message.Sequence)

	return &protocol.KeyExchangeMessage{
		Version:     uint32(negotiatedVersion),
		MaxVersion:  protocol.CurrentVersion,
		Sequence:    message.Sequence,
		Flags:       responseFlags,
		BaseKey:     ourBaseKey.Public,
		BaseKeySig:  ourIdentityKeyPair.Sign(ourBaseKey.Public.Serialize()),
		RatchetKey:  ourRatchetKey.Public,
		IdentityKey: ourIdentityKeyPair.PublicKey(),
	}, nil
}

func (b *Builder) processKeyExchangeResponse(ctx context.Context, message protocol.KeyExchangeMessage) error {
	sessionRecord, err := b.stores.Session.LoadSession(ctx, b.remoteAddress)
	if err != nil {
		return err
	}
	state := sessionRecord.SessionState()

	pending := state.PendingKeyExchange
	hasPending := pending != nil && pending.Sequence == message.Sequence
	if !hasPending {
		if message.IsResponseForSimultaneousInitiate() {
			// Our own initiate collided with the peer's and won;
			// their flagged response to our initiate is stale but
			// expected, not an error.
			logger.Debug(ctx, "ignoring stale simultaneous-initiate response", "remote", b.remoteAddress.String())
			return nil
		}
		return signalerror.ErrStaleKeyExchange
	}

	negotiatedVersion := minInt(int(message.MaxVersion), protocol.CurrentVersion)

	// Checked before initializeSymmetric mutates sessionRecord's live
	// state: the session must not be touched at all if this fails (spec.md
	// §4.2.4 processResponse, §7 "error MUST leave stores unchanged").
	if negotiatedVersion >= 3 {
		if !identity.VerifySignature(message.IdentityKey, message.BaseKey.Serialize(), message.BaseKeySig) {
			return fmt.Errorf("%w: base key signature doesn't match", signalerror.ErrInvalidKey)
		}
	}

	if err := b.initializeSymmetric(ctx, sessionRecord, negotiatedVersion,
		pending.BaseKey, pending.RatchetKey, pending.IdentityKey,
		message.BaseKey, message.RatchetKey, message.IdentityKey); err != nil {
		return err
	}

	if err := b.stores.Session.StoreSession(ctx, b.remoteAddress, sessionRecord); err != nil {
		return err
	}
	if err := b.stores.IdentityKey.SaveIdentity(ctx, b.remoteAddress.Name(), message.IdentityKey); err != nil {
		return err
	}

	logger.Debug(ctx, "completed key exchange", "remote", b.remoteAddress.String(), "sequence", message.Sequence)
	return nil
}

// initializeSymmetric resolves role assignment (WeAreAlice), derives the
// root/chain secrets, and populates sessionRecord's current state. A
// pending key exchange is cleared exactly here — whenever an initiate or a
// matching response installs a session (spec.md §3 invariant 3).
func (b *Builder) initializeSymmetric(ctx context.Context, sessionRecord *record.Session, negotiatedVersion int,
	ourBaseKey, ourRatchetKey *ecc.ECKeyPair, ourIdentityKeyPair *identity.KeyPair,
	theirBaseKey, theirRatchetKey ecc.PublicKey, theirIdentityKey identity.Key) error {

	params := ratchet.SymmetricParameters{
		OurBaseKey:       ourBaseKey,
		OurRatchetKey:    ourRatchetKey,
		OurIdentityKey:   ourIdentityKeyPair,
		TheirBaseKey:     theirBaseKey,
		TheirRatchetKey:  theirRatchetKey,
		TheirIdentityKey: theirIdentityKey,
	}
	weAreAlice := ratchet.WeAreAlice(ourBaseKey.Public, theirBaseKey)

	if !sessionRecord.IsFresh() {
		sessionRecord.ArchiveCurrentState()
	}

	derived, err := ratchet.CalculateSymmetricSession(weAreAlice, params)
	if err != nil {
		return err
	}

	state := sessionRecord.SessionState()
	state.Version = negotiatedVersion
	state.RemoteIdentityKey = theirIdentityKey
	state.LocalIdentityKey = ourIdentityKeyPair.PublicKey()

	if weAreAlice {
		sendingChain, err := derived.RootKey.CreateChain(theirRatchetKey, ourRatchetKey)
		if err != nil {
			return err
		}
		state.AddReceiverChain(theirRatchetKey, derived.ChainKey)
		state.SetSenderChain(ourRatchetKey, sendingChain.ChainKey)
		state.RootKey = sendingChain.RootKey
		state.AliceBaseKey = ourBaseKey.Public.Serialize()
	} else {
		state.SetSenderChain(ourRatchetKey, derived.ChainKey)
		state.RootKey = derived.RootKey
		state.AliceBaseKey = theirBaseKey.Serialize()
	}

	localRegID, err := b.stores.IdentityKey.GetLocalRegistrationID(ctx)
	if err != nil {
		return err
	}
	state.LocalRegistrationID = localRegID
	state.PendingKeyExchange = nil
	sessionRecord.MarkInstalled()
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
