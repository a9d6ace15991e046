// Package signalerror is the tagged error taxonomy surfaced at every
// SessionBuilder entry point (spec §7). Errors are plain sentinels; raise
// sites wrap them with fmt.Errorf("%w: ...") to attach context, mirroring
// the vendored libsignal session builder's error style.
package signalerror

import "errors"

var (
	// ErrUntrustedIdentity is returned when the presented identity key
	// disagrees with the one already pinned for this remote address.
	ErrUntrustedIdentity = errors.New("untrusted identity")

	// ErrInvalidKey covers signature-verification failures, a pre-key
	// bundle with neither a signed nor a one-time pre-key, and a
	// key-exchange base-key signature that fails to verify.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidKeyID is returned when a pre-key or signed-pre-key store
	// lookup misses.
	ErrInvalidKeyID = errors.New("invalid key id")

	// ErrInvalidMessage is returned for an unrecognized protocol version.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrStaleKeyExchange is returned by the key-exchange response path
	// when there is no matching pending exchange and the response is not
	// a simultaneous-initiate collision.
	ErrStaleKeyExchange = errors.New("stale key exchange")

	// ErrNoSession is reserved for the (out-of-scope) decrypt path; the
	// builder never raises it directly, but it is part of the taxonomy
	// callers compose this package with.
	ErrNoSession = errors.New("no session")
)
