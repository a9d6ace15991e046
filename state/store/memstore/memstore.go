// Package memstore is an in-memory implementation of the four store
// interfaces (state/store), used by the test suite and suitable as a
// reference implementation for anyone bringing up a new backend. Grounded
// on the method shapes of vendor/go.mau.fi/libsignal/state/store/*.go.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/signalerror"
	"github.com/mikalv/libaxolotl/state/record"
	"github.com/mikalv/libaxolotl/state/store"
)

// Store is a sync.Mutex-guarded, in-memory implementation of
// store.Session, store.PreKey, store.SignedPreKey, and store.IdentityKey.
type Store struct {
	mu sync.Mutex

	identityKeyPair    *identity.KeyPair
	localRegistrationID uint32
	trustedIdentities   map[string]identity.Key

	sessions map[string]*record.Session

	preKeys       map[uint32]*prekey.Record
	signedPreKeys map[uint32]*prekey.SignedRecord
}

var _ store.Session = (*Store)(nil)
var _ store.PreKey = (*Store)(nil)
var _ store.SignedPreKey = (*Store)(nil)
var _ store.IdentityKey = (*Store)(nil)

// New constructs a Store seeded with a local identity key pair and
// registration id.
func New(identityKeyPair *identity.KeyPair, localRegistrationID uint32) *Store {
	return &Store{
		identityKeyPair:     identityKeyPair,
		localRegistrationID: localRegistrationID,
		trustedIdentities:   make(map[string]identity.Key),
		sessions:            make(map[string]*record.Session),
		preKeys:             make(map[uint32]*prekey.Record),
		signedPreKeys:       make(map[uint32]*prekey.SignedRecord),
	}
}

// Bundle returns the four interfaces as a store.All for convenience.
func (s *Store) Bundle() store.All {
	return store.All{Session: s, PreKey: s, SignedPreKey: s, IdentityKey: s}
}

// -- store.Session --

func (s *Store) LoadSession(_ context.Context, addr protocol.Address) (*record.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[addr.String()]; ok {
		return rec, nil
	}
	return record.NewSession(), nil
}

func (s *Store) ContainsSession(_ context.Context, addr protocol.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[addr.String()]
	return ok, nil
}

func (s *Store) StoreSession(_ context.Context, addr protocol.Address, rec *record.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[addr.String()] = rec
	return nil
}

func (s *Store) DeleteSession(_ context.Context, addr protocol.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, addr.String())
	return nil
}

// -- store.PreKey --

func (s *Store) LoadPreKey(_ context.Context, id uint32) (*prekey.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.preKeys[id]
	if !ok {
		return nil, fmt.Errorf("%w: one-time pre-key %d", signalerror.ErrInvalidKeyID, id)
	}
	return rec, nil
}

func (s *Store) ContainsPreKey(_ context.Context, id uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.preKeys[id]
	return ok, nil
}

func (s *Store) StorePreKey(_ context.Context, id uint32, rec *prekey.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preKeys[id] = rec
	return nil
}

func (s *Store) RemovePreKey(_ context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.preKeys, id)
	return nil
}

// -- store.SignedPreKey --

func (s *Store) LoadSignedPreKey(_ context.Context, id uint32) (*prekey.SignedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.signedPreKeys[id]
	if !ok {
		return nil, fmt.Errorf("%w: signed pre-key %d", signalerror.ErrInvalidKeyID, id)
	}
	return rec, nil
}

func (s *Store) ContainsSignedPreKey(_ context.Context, id uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.signedPreKeys[id]
	return ok, nil
}

func (s *Store) StoreSignedPreKey(_ context.Context, id uint32, rec *prekey.SignedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedPreKeys[id] = rec
	return nil
}

func (s *Store) RemoveSignedPreKey(_ context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signedPreKeys, id)
	return nil
}

// -- store.IdentityKey --

func (s *Store) GetIdentityKeyPair(_ context.Context) (*identity.KeyPair, error) {
	return s.identityKeyPair, nil
}

func (s *Store) GetLocalRegistrationID(_ context.Context) (uint32, error) {
	return s.localRegistrationID, nil
}

func (s *Store) IsTrustedIdentity(_ context.Context, name string, key identity.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned, ok := s.trustedIdentities[name]
	if !ok {
		return true, nil
	}
	return pinned.Equal(key), nil
}

func (s *Store) SaveIdentity(_ context.Context, name string, key identity.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trustedIdentities[name] = key
	return nil
}
