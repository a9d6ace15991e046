package session

import (
	"context"
	"fmt"

	"github.com/mikalv/libaxolotl/ecc"
	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
	"github.com/mikalv/libaxolotl/logger"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/ratchet"
	"github.com/mikalv/libaxolotl/signalerror"
	"github.com/mikalv/libaxolotl/state/record"
	"github.com/mikalv/libaxolotl/util/optional"
)

// ProcessBundle builds a new session from a pre-key bundle retrieved from
// a directory — the outbound, "Alice" initiation path (spec.md §4.2.1).
func (b *Builder) ProcessBundle(ctx context.Context, bundle prekey.Bundle) error {
	trusted, err := b.stores.IdentityKey.IsTrustedIdentity(ctx, b.remoteAddress.Name(), bundle.IdentityKey)
	if err != nil {
		return err
	}
	if !trusted {
		return signalerror.ErrUntrustedIdentity
	}

	if bundle.HasSignedPreKey() {
		if !identity.VerifySignature(bundle.IdentityKey, bundle.SignedPreKey.Serialize(), bundle.SignedPreKeySig) {
			return fmt.Errorf("%w: invalid signature on device key", signalerror.ErrInvalidKey)
		}
	} else if !bundle.HasOneTimePreKey() {
		return fmt.Errorf("%w: both prekeys absent", signalerror.ErrInvalidKey)
	}

	supportsV3 := bundle.HasSignedPreKey()

	ourBaseKey, err := ecc.GenerateKeyPair()
	if err != nil {
		return err
	}

	theirSignedPreKey := bundle.SignedPreKey
	if !supportsV3 {
		theirSignedPreKey = *bundle.PreKey
	}
	theirOneTimePreKeyID := optional.NewEmptyUint32()
	if bundle.HasOneTimePreKey() {
		theirOneTimePreKeyID = bundle.PreKeyID
	}

	ourIdentityKeyPair, err := b.stores.IdentityKey.GetIdentityKeyPair(ctx)
	if err != nil {
		return err
	}

	params := ratchet.AliceParameters{
		OurBaseKey:        ourBaseKey,
		OurIdentityKey:    ourIdentityKeyPair,
		TheirIdentityKey:  bundle.IdentityKey,
		TheirSignedPreKey: theirSignedPreKey,
		TheirRatchetKey:   theirSignedPreKey,
	}
	if supportsV3 && bundle.HasOneTimePreKey() {
		params.TheirOneTimePreKey = bundle.PreKey
	}

	sessionRecord, err := b.stores.Session.LoadSession(ctx, b.remoteAddress)
	if err != nil {
		return err
	}
	if !sessionRecord.IsFresh() {
		sessionRecord.ArchiveCurrentState()
	}

	derived, err := ratchet.CalculateSenderSession(params)
	if err != nil {
		return err
	}

	// Generate the ephemeral ratchet key we advertise to the responder,
	// and ratchet the derived root once more to get our own sending
	// chain distinct from the chain attributed to their ratchet key.
	sendingRatchetKey, err := ecc.GenerateKeyPair()
	if err != nil {
		return err
	}
	sendingChain, err := derived.RootKey.CreateChain(params.TheirRatchetKey, sendingRatchetKey)
	if err != nil {
		return err
	}

	version := protocol.MinimumVersion
	if supportsV3 {
		version = protocol.CurrentVersion
	}

	state := sessionRecord.SessionState()
	state.Version = version
	state.RemoteIdentityKey = bundle.IdentityKey
	state.LocalIdentityKey = ourIdentityKeyPair.PublicKey()
	state.AddReceiverChain(params.TheirRatchetKey, derived.ChainKey)
	state.SetSenderChain(sendingRatchetKey, sendingChain.ChainKey)
	state.RootKey = sendingChain.RootKey

	state.LocalRegistrationID, err = b.stores.IdentityKey.GetLocalRegistrationID(ctx)
	if err != nil {
		return err
	}
	state.RemoteRegistrationID = bundle.RegistrationID
	state.AliceBaseKey = ourBaseKey.Public.Serialize()
	state.UnacknowledgedPreKeyMessage = &record.UnacknowledgedPreKeyMessage{
		PreKeyID:       theirOneTimePreKeyID,
		SignedPreKeyID: bundle.SignedPreKeyID,
		BaseKey:        ourBaseKey.Public,
	}
	sessionRecord.MarkInstalled()

	// Commit ordering matters: session commit precedes identity pinning,
	// so a crash between them leaves a recoverable, session-less state
	// rather than a pinned-identity-without-session state (spec.md §4.2.1).
	if err := b.stores.Session.StoreSession(ctx, b.remoteAddress, sessionRecord); err != nil {
		return err
	}
	if err := b.stores.IdentityKey.SaveIdentity(ctx, b.remoteAddress.Name(), bundle.IdentityKey); err != nil {
		return err
	}

	logger.Debug(ctx, "established outbound session from pre-key bundle",
		"remote", b.remoteAddress.String(), "version", version)
	return nil
}
