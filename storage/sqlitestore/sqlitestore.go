// Package sqlitestore is a SQLite-backed implementation of the four
// state/store interfaces, for anything longer-lived than a test process.
// Grounded on go.mau.fi/util/dbutil's migration/query conventions (the
// teacher's own persistence layer dependency, one level removed via
// go.mau.fi/util) rather than a hand-rolled database/sql wrapper.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"

	"github.com/mikalv/libaxolotl/keys/identity"
	"github.com/mikalv/libaxolotl/keys/prekey"
	"github.com/mikalv/libaxolotl/protocol"
	"github.com/mikalv/libaxolotl/signalerror"
	"github.com/mikalv/libaxolotl/state/record"
	"github.com/mikalv/libaxolotl/state/store"
)

var upgradeTable dbutil.UpgradeTable

func init() {
	upgradeTable.Register(-1, 1, 0, "Initial schema", dbutil.TxnModeOn, func(ctx context.Context, db *dbutil.Database) error {
		_, err := db.Exec(ctx, `
			CREATE TABLE local_identity (
				id              INTEGER PRIMARY KEY CHECK (id = 0),
				ec_public       BLOB NOT NULL,
				ec_private      BLOB NOT NULL,
				sign_public     BLOB NOT NULL,
				sign_private    BLOB NOT NULL,
				registration_id INTEGER NOT NULL
			)`)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `
			CREATE TABLE trusted_identity (
				name        TEXT PRIMARY KEY,
				ec_public   BLOB NOT NULL,
				sign_public BLOB NOT NULL
			)`)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `
			CREATE TABLE pre_key (
				id       INTEGER PRIMARY KEY,
				key_pair BLOB NOT NULL
			)`)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `
			CREATE TABLE signed_pre_key (
				id        INTEGER PRIMARY KEY,
				key_pair  BLOB NOT NULL,
				signature BLOB NOT NULL,
				timestamp INTEGER NOT NULL
			)`)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `
			CREATE TABLE session (
				name      TEXT NOT NULL,
				device_id INTEGER NOT NULL,
				record    BLOB NOT NULL,
				PRIMARY KEY (name, device_id)
			)`)
		return err
	})
}

// Store is a SQLite-backed implementation of store.Session, store.PreKey,
// store.SignedPreKey, and store.IdentityKey, sharing one *dbutil.Database.
type Store struct {
	db *dbutil.Database
}

var _ store.Session = (*Store)(nil)
var _ store.PreKey = (*Store)(nil)
var _ store.SignedPreKey = (*Store)(nil)
var _ store.IdentityKey = (*Store)(nil)

// Open opens (creating if needed) a SQLite database at path and migrates it
// to the latest schema.
func Open(ctx context.Context, path string) (*Store, error) {
	rawDB, err := dbutil.NewWithDialect(path, "sqlite3")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening database: %w", err)
	}
	rawDB.UpgradeTable = upgradeTable
	if err := rawDB.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("sqlitestore: migrating schema: %w", err)
	}
	return &Store{db: rawDB}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bundle returns the four interfaces as a store.All for convenience.
func (s *Store) Bundle() store.All {
	return store.All{Session: s, PreKey: s, SignedPreKey: s, IdentityKey: s}
}

// SeedIdentity installs the local identity key pair and registration id.
// Callers do this once, at install time, before the store is used.
func (s *Store) SeedIdentity(ctx context.Context, kp *identity.KeyPair, registrationID uint32) error {
	ecPub, err := dbutil.JSON{Data: &kp.Public.ECPublic}.Value()
	if err != nil {
		return err
	}
	ecPriv, err := dbutil.JSON{Data: &kp.ECPrivate}.Value()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO local_identity (id, ec_public, ec_private, sign_public, sign_private, registration_id)
		VALUES (0, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			ec_public=excluded.ec_public, ec_private=excluded.ec_private,
			sign_public=excluded.sign_public, sign_private=excluded.sign_private,
			registration_id=excluded.registration_id`,
		ecPub, ecPriv, []byte(kp.Public.SignPublic), []byte(kp.SignPrivate), registrationID)
	return err
}

// -- store.IdentityKey --

func (s *Store) GetIdentityKeyPair(ctx context.Context) (*identity.KeyPair, error) {
	var ecPub, ecPriv, signPub, signPriv []byte
	row := s.db.QueryRow(ctx, `SELECT ec_public, ec_private, sign_public, sign_private FROM local_identity WHERE id = 0`)
	if err := row.Scan(&ecPub, &ecPriv, &signPub, &signPriv); err != nil {
		return nil, fmt.Errorf("sqlitestore: loading local identity: %w", err)
	}
	kp := &identity.KeyPair{SignPrivate: signPriv}
	kp.Public.SignPublic = signPub
	if err := dbutil.JSON{Data: &kp.Public.ECPublic}.Scan(ecPub); err != nil {
		return nil, err
	}
	if err := dbutil.JSON{Data: &kp.ECPrivate}.Scan(ecPriv); err != nil {
		return nil, err
	}
	return kp, nil
}

func (s *Store) GetLocalRegistrationID(ctx context.Context) (uint32, error) {
	var id uint32
	row := s.db.QueryRow(ctx, `SELECT registration_id FROM local_identity WHERE id = 0`)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlitestore: loading registration id: %w", err)
	}
	return id, nil
}

func (s *Store) IsTrustedIdentity(ctx context.Context, name string, key identity.Key) (bool, error) {
	var ecPub, signPub []byte
	row := s.db.QueryRow(ctx, `SELECT ec_public, sign_public FROM trusted_identity WHERE name = $1`, name)
	err := row.Scan(&ecPub, &signPub)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("sqlitestore: loading trusted identity: %w", err)
	}
	var pinned identity.Key
	if err := dbutil.JSON{Data: &pinned.ECPublic}.Scan(ecPub); err != nil {
		return false, err
	}
	pinned.SignPublic = signPub
	return pinned.Equal(key), nil
}

func (s *Store) SaveIdentity(ctx context.Context, name string, key identity.Key) error {
	ecPub, err := dbutil.JSON{Data: &key.ECPublic}.Value()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO trusted_identity (name, ec_public, sign_public) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET ec_public=excluded.ec_public, sign_public=excluded.sign_public`,
		name, ecPub, []byte(key.SignPublic))
	return err
}

// -- store.PreKey --

func (s *Store) LoadPreKey(ctx context.Context, id uint32) (*prekey.Record, error) {
	var blob []byte
	row := s.db.QueryRow(ctx, `SELECT key_pair FROM pre_key WHERE id = $1`, id)
	if err := row.Scan(&blob); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: one-time pre-key %d", signalerror.ErrInvalidKeyID, id)
	} else if err != nil {
		return nil, err
	}
	rec := &prekey.Record{ID: id}
	if err := dbutil.JSON{Data: &rec.KeyPair}.Scan(blob); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) ContainsPreKey(ctx context.Context, id uint32) (bool, error) {
	var exists bool
	row := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pre_key WHERE id = $1)`, id)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) StorePreKey(ctx context.Context, id uint32, rec *prekey.Record) error {
	blob, err := dbutil.JSON{Data: rec.KeyPair}.Value()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO pre_key (id, key_pair) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET key_pair=excluded.key_pair`, id, blob)
	return err
}

func (s *Store) RemovePreKey(ctx context.Context, id uint32) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pre_key WHERE id = $1`, id)
	return err
}

// -- store.SignedPreKey --

func (s *Store) LoadSignedPreKey(ctx context.Context, id uint32) (*prekey.SignedRecord, error) {
	var blob, sig []byte
	var ts int64
	row := s.db.QueryRow(ctx, `SELECT key_pair, signature, timestamp FROM signed_pre_key WHERE id = $1`, id)
	if err := row.Scan(&blob, &sig, &ts); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: signed pre-key %d", signalerror.ErrInvalidKeyID, id)
	} else if err != nil {
		return nil, err
	}
	rec := &prekey.SignedRecord{ID: id, Signature: sig, Timestamp: unixToTime(ts)}
	if err := dbutil.JSON{Data: &rec.KeyPair}.Scan(blob); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) ContainsSignedPreKey(ctx context.Context, id uint32) (bool, error) {
	var exists bool
	row := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM signed_pre_key WHERE id = $1)`, id)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) StoreSignedPreKey(ctx context.Context, id uint32, rec *prekey.SignedRecord) error {
	blob, err := dbutil.JSON{Data: rec.KeyPair}.Value()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO signed_pre_key (id, key_pair, signature, timestamp) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key_pair=excluded.key_pair, signature=excluded.signature, timestamp=excluded.timestamp`,
		id, blob, rec.Signature, rec.Timestamp.Unix())
	return err
}

func (s *Store) RemoveSignedPreKey(ctx context.Context, id uint32) error {
	_, err := s.db.Exec(ctx, `DELETE FROM signed_pre_key WHERE id = $1`, id)
	return err
}

// -- store.Session --

func (s *Store) LoadSession(ctx context.Context, addr protocol.Address) (*record.Session, error) {
	var blob []byte
	row := s.db.QueryRow(ctx, `SELECT record FROM session WHERE name = $1 AND device_id = $2`, addr.Name(), addr.DeviceID())
	if err := row.Scan(&blob); errors.Is(err, sql.ErrNoRows) {
		return record.NewSession(), nil
	} else if err != nil {
		return nil, err
	}
	return record.Deserialize(blob)
}

func (s *Store) ContainsSession(ctx context.Context, addr protocol.Address) (bool, error) {
	var exists bool
	row := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM session WHERE name = $1 AND device_id = $2)`, addr.Name(), addr.DeviceID())
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) StoreSession(ctx context.Context, addr protocol.Address, rec *record.Session) error {
	blob, err := rec.Serialize()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO session (name, device_id, record) VALUES ($1, $2, $3)
		ON CONFLICT (name, device_id) DO UPDATE SET record=excluded.record`,
		addr.Name(), addr.DeviceID(), blob)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, addr protocol.Address) error {
	_, err := s.db.Exec(ctx, `DELETE FROM session WHERE name = $1 AND device_id = $2`, addr.Name(), addr.DeviceID())
	return err
}

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
