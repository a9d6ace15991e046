// Package store declares the four persistence interfaces the session
// builder is built against (spec.md §4.1). Concrete implementations live
// in state/store/memstore (in-memory, used by tests) and
// storage/sqlitestore (a real backend).
package store

import (
	"context"

	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/state/record"
)

// Session is the persistent lookup/save surface for session records.
type Session interface {
	// LoadSession returns the record for addr, or a fresh blank record if
	// none exists yet — callers never see a nil record or a not-found
	// error from this method.
	LoadSession(ctx context.Context, addr protocol.Address) (*record.Session, error)
	ContainsSession(ctx context.Context, addr protocol.Address) (bool, error)
	StoreSession(ctx context.Context, addr protocol.Address, rec *record.Session) error
	DeleteSession(ctx context.Context, addr protocol.Address) error
}

// PreKey is the persistent lookup/save surface for one-time pre-keys.
type PreKey interface {
	// LoadPreKey returns signalerror.ErrInvalidKeyID if id is absent.
	LoadPreKey(ctx context.Context, id uint32) (*prekey.Record, error)
	ContainsPreKey(ctx context.Context, id uint32) (bool, error)
	StorePreKey(ctx context.Context, id uint32, rec *prekey.Record) error
	RemovePreKey(ctx context.Context, id uint32) error
}

// SignedPreKey is the persistent lookup/save surface for signed pre-keys.
type SignedPreKey interface {
	// LoadSignedPreKey returns signalerror.ErrInvalidKeyID if id is absent.
	LoadSignedPreKey(ctx context.Context, id uint32) (*prekey.SignedRecord, error)
	ContainsSignedPreKey(ctx context.Context, id uint32) (bool, error)
	StoreSignedPreKey(ctx context.Context, id uint32, rec *prekey.SignedRecord) error
	RemoveSignedPreKey(ctx context.Context, id uint32) error
}

// IdentityKey is the persistent lookup/save surface for the local identity
// and the trust-on-first-use pinning of remote identities.
type IdentityKey interface {
	GetIdentityKeyPair(ctx context.Context) (*identity.KeyPair, error)
	GetLocalRegistrationID(ctx context.Context) (uint32, error)

	// IsTrustedIdentity reports true if no identity is pinned yet for
	// name, or if key matches the pinned identity (spec.md §4.1).
	IsTrustedIdentity(ctx context.Context, name string, key identity.Key) (bool, error)

	// SaveIdentity pins key for name. Once pinned, a later call with a
	// different key must not silently overwrite it — callers enforce
	// that by checking IsTrustedIdentity first (spec.md §3 invariant 4).
	SaveIdentity(ctx context.Context, name string, key identity.Key) error
}

// All bundles the four store interfaces, the same way the vendored
// libsignal accepts a single object implementing store.SignalProtocol in
// NewBuilderFromSignal. A struct holding four interface values, not an
// embedding hierarchy (spec.md §9 Design Notes).
type All struct {
	Session      Session
	PreKey       PreKey
	SignedPreKey SignedPreKey
	IdentityKey  IdentityKey
}
