// Package byteid implements the 160-bit agent and artifact identifiers used
// throughout the overlay. An ID is a fixed-size byte array with elementwise
// bitwise algebra, the same "raw bytes plus a handful of accessors" shape the
// teacher uses for its own fixed-width wire types (inetdiag.cookieType,
// inetdiag.ipType).
package byteid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Len is the fixed size, in bytes, of every ID.
const Len = 20

// ID is a 160-bit identifier. The zero value is the all-zero ID.
type ID [Len]byte

// Random returns a uniformly random ID, read from crypto/rand. This is the
// "injected source of randomness" the core treats as an external collaborator;
// callers that need determinism (tests, simulations) should construct an ID
// directly instead of calling Random.
func Random() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("byteid: could not read random bytes: %w", err)
	}
	return id, nil
}

// Byte returns the byte at index, modulo Len.
func (id ID) Byte(index int) byte {
	return id[index%Len]
}

// SetByte sets the byte at index, modulo Len.
func (id *ID) SetByte(index int, val byte) {
	id[index%Len] = val
}

// And returns the elementwise bitwise AND of id and other.
func (id ID) And(other ID) ID {
	var ret ID
	for i := range ret {
		ret[i] = id[i] & other[i]
	}
	return ret
}

// Or returns the elementwise bitwise OR of id and other.
func (id ID) Or(other ID) ID {
	var ret ID
	for i := range ret {
		ret[i] = id[i] | other[i]
	}
	return ret
}

// Xor returns the elementwise bitwise XOR of id and other.
func (id ID) Xor(other ID) ID {
	var ret ID
	for i := range ret {
		ret[i] = id[i] ^ other[i]
	}
	return ret
}

// Not returns the elementwise bitwise complement of id.
func (id ID) Not() ID {
	var ret ID
	for i := range ret {
		ret[i] = ^id[i]
	}
	return ret
}

// Equal reports whether id and other hold the same 20 bytes.
func (id ID) Equal(other ID) bool {
	return id == other
}

// String renders the ID as lowercase hex, for logging and CSV diagnostics.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}
