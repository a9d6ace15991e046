// Command axolotl-demo exercises all four SessionBuilder entry points
// against in-memory stores: Alice building a session from a published
// pre-key bundle, Bob accepting the resulting first message, and two
// peers racing a simultaneous interactive key exchange.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"

	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
	"github.com/mikalv/libaxolotl/prekeys"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/session"
	"github.com/mikalv/libaxolotl/state/store"
	"github.com/mikalv/libaxolotl/state/store/memstore"
	"github.com/mikalv/libaxolotl/util/optional"
)

func main() {
	_ = godotenv.Load()

	consoleLog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	exzerolog.SetupDefaults(&consoleLog)
	ctx := consoleLog.WithContext(context.Background())

	if err := run(ctx); err != nil {
		consoleLog.Error().Err(err).Msg("demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	alice, err := newPeer("alice")
	if err != nil {
		return fmt.Errorf("setting up alice: %w", err)
	}
	bob, err := newPeer("bob")
	if err != nil {
		return fmt.Errorf("setting up bob: %w", err)
	}
	fmt.Printf("alice run id %s, bob run id %s\n", alice.runID, bob.runID)

	signedPreKey, err := prekeys.GenerateSignedPreKey(bob.identityKeyPair, 1)
	if err != nil {
		return fmt.Errorf("generating bob's signed pre-key: %w", err)
	}
	if err := bob.stores.SignedPreKey.StoreSignedPreKey(ctx, signedPreKey.ID, signedPreKey); err != nil {
		return err
	}
	oneTimePreKeys, err := prekeys.GenerateBatch(1, 1)
	if err != nil {
		return fmt.Errorf("generating bob's one-time pre-keys: %w", err)
	}
	for _, rec := range oneTimePreKeys {
		if err := bob.stores.PreKey.StorePreKey(ctx, rec.ID, rec); err != nil {
			return err
		}
	}

	bobAddress := protocol.NewAddress("bob", 1)
	bundle := prekey.NewBundle(
		bob.registrationID, 1,
		optional.NewUint32(oneTimePreKeys[0].ID), &oneTimePreKeys[0].KeyPair.Public,
		signedPreKey.ID, signedPreKey.KeyPair.Public, signedPreKey.Signature, true,
		bob.identityKeyPair.PublicKey(),
	)

	aliceBuilder := session.NewBuilder(alice.stores, bobAddress)
	if err := aliceBuilder.ProcessBundle(ctx, bundle); err != nil {
		return fmt.Errorf("alice processing bob's bundle: %w", err)
	}
	fmt.Println("alice established an outbound session from bob's pre-key bundle")

	aliceAddress := protocol.NewAddress("alice", 1)
	bobBuilder := session.NewBuilder(bob.stores, aliceAddress)

	aliceSession, err := alice.stores.Session.LoadSession(ctx, bobAddress)
	if err != nil {
		return err
	}
	aliceState := aliceSession.SessionState()
	message := protocol.PreKeySignalMessage{
		Version:        protocol.CurrentVersion,
		RegistrationID: alice.registrationID,
		PreKeyID:       aliceState.UnacknowledgedPreKeyMessage.PreKeyID,
		SignedPreKeyID: aliceState.UnacknowledgedPreKeyMessage.SignedPreKeyID,
		BaseKey:        aliceState.UnacknowledgedPreKeyMessage.BaseKey,
		IdentityKey:    alice.identityKeyPair.PublicKey(),
	}

	bobSession, err := bob.stores.Session.LoadSession(ctx, aliceAddress)
	if err != nil {
		return err
	}
	consumed, err := bobBuilder.ProcessPreKeyMessage(ctx, bobSession, message)
	if err != nil {
		return fmt.Errorf("bob processing alice's first message: %w", err)
	}
	if err := bob.stores.Session.StoreSession(ctx, aliceAddress, bobSession); err != nil {
		return err
	}
	if !consumed.IsEmpty {
		if err := bob.stores.PreKey.RemovePreKey(ctx, consumed.Value); err != nil {
			return err
		}
	}
	fmt.Println("bob established an inbound session and consumed the one-time pre-key")

	carol, err := newPeer("carol")
	if err != nil {
		return fmt.Errorf("setting up carol: %w", err)
	}
	dave, err := newPeer("dave")
	if err != nil {
		return fmt.Errorf("setting up dave: %w", err)
	}
	if err := raceSimultaneousInitiate(ctx, carol, dave); err != nil {
		return fmt.Errorf("simultaneous key exchange: %w", err)
	}
	fmt.Println("simultaneous key exchange converged on both sides")
	return nil
}

// raceSimultaneousInitiate has carol and dave each call InitiateKeyExchange
// before either has seen the other's message, then feeds each side the
// other's INITIATE and, finally, the (now stale) RESPONSE it produced. Both
// sessions converge from the INITIATE exchange alone; the trailing RESPONSE
// messages exercise the SIMULTANEOUS_INITIATE no-op path (spec.md §4.2.3).
func raceSimultaneousInitiate(ctx context.Context, carol, dave *peer) error {
	carolAddress := protocol.NewAddress("carol", 1)
	daveAddress := protocol.NewAddress("dave", 1)

	carolBuilder := session.NewBuilder(carol.stores, daveAddress)
	daveBuilder := session.NewBuilder(dave.stores, carolAddress)

	carolInitiate, err := carolBuilder.InitiateKeyExchange(ctx)
	if err != nil {
		return fmt.Errorf("carol initiating: %w", err)
	}
	daveInitiate, err := daveBuilder.InitiateKeyExchange(ctx)
	if err != nil {
		return fmt.Errorf("dave initiating: %w", err)
	}

	carolResponse, err := carolBuilder.ProcessKeyExchange(ctx, *daveInitiate)
	if err != nil {
		return fmt.Errorf("carol processing dave's initiate: %w", err)
	}
	daveResponse, err := daveBuilder.ProcessKeyExchange(ctx, *carolInitiate)
	if err != nil {
		return fmt.Errorf("dave processing carol's initiate: %w", err)
	}

	if !daveResponse.IsResponseForSimultaneousInitiate() {
		return fmt.Errorf("expected dave's response to carry SIMULTANEOUS_INITIATE")
	}
	if !carolResponse.IsResponseForSimultaneousInitiate() {
		return fmt.Errorf("expected carol's response to carry SIMULTANEOUS_INITIATE")
	}

	if _, err := carolBuilder.ProcessKeyExchange(ctx, *daveResponse); err != nil {
		return fmt.Errorf("carol processing dave's stale response: %w", err)
	}
	if _, err := daveBuilder.ProcessKeyExchange(ctx, *carolResponse); err != nil {
		return fmt.Errorf("dave processing carol's stale response: %w", err)
	}

	carolHasSession, err := carol.stores.Session.ContainsSession(ctx, daveAddress)
	if err != nil {
		return err
	}
	daveHasSession, err := dave.stores.Session.ContainsSession(ctx, carolAddress)
	if err != nil {
		return err
	}
	if !carolHasSession || !daveHasSession {
		return fmt.Errorf("simultaneous initiate did not install a session on both sides")
	}
	return nil
}

// peer bundles one local identity's key material and stores, for the demo
// only; a real client keeps these behind its own session-establishment
// service (spec.md §5).
type peer struct {
	name            string
	runID           string
	registrationID  uint32
	identityKeyPair *identity.KeyPair
	stores          store.All
}

func newPeer(name string) (*peer, error) {
	identityKeyPair, err := identity.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating identity key pair for %s: %w", name, err)
	}
	registrationID, err := randomRegistrationID()
	if err != nil {
		return nil, fmt.Errorf("generating registration id for %s: %w", name, err)
	}
	memStore := memstore.New(identityKeyPair, registrationID)
	return &peer{
		name:            name,
		runID:           uuid.New().String(),
		registrationID:  registrationID,
		identityKeyPair: identityKeyPair,
		stores:          memStore.Bundle(),
	}, nil
}

// randomRegistrationID picks a registration id the way a real client would
// at install time: once, from a CSPRNG, never reused across reinstalls.
func randomRegistrationID() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
