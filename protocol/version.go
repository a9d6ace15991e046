package protocol

// CurrentVersion is the highest protocol version this core negotiates.
// Pre-key-bundle establishment chooses it whenever the bundle carries a
// signed pre-key; otherwise it falls back to V2 (spec.md §6).
const CurrentVersion = 3

// MinimumVersion is the lowest inbound protocol version still accepted.
const MinimumVersion = 2

// Key-exchange flag bits (spec.md §6). These are a wire contract with the
// peer: values are fixed, never renumbered.
const (
	KeyExchangeInitiate            uint32 = 0x01
	KeyExchangeResponse            uint32 = 0x02
	KeyExchangeSimultaneousInitiate uint32 = 0x04
)
