// Package wireaddr implements Address, a wire-representable UDP endpoint
// (an IPv4 quad plus a 16-bit port). It follows the same "fixed byte layout,
// explicit accessors, errors.New sentinel errors" shape the teacher uses for
// its LinuxSockID fields in inetdiag/structs.go.
package wireaddr

import (
	"errors"
	"fmt"
	"net"
)

// ErrUnsupportedAddressForm reports an address form other than IPv4.
// FromUDPAddr returns it for a non-IPv4 IP, and codec's decoder names it in
// the DecodingFailure it returns for the reserved IPv6 family tag. IPv6 is
// reserved on the wire but not implemented.
var ErrUnsupportedAddressForm = errors.New("wireaddr: unsupported address form (only IPv4 is implemented)")

// Wire family tags, shared with package codec: FamilyIPv4 is the only
// constructible form, FamilyIPv6 is reserved and always rejected on decode.
const (
	FamilyIPv4 byte = 4
	FamilyIPv6 byte = 6
)

// Address is an IPv4 address and UDP port, the only address form the overlay
// implements on the wire.
type Address struct {
	IP   [4]byte
	Port uint16
}

// FromUDPAddr converts a *net.UDPAddr into an Address. It fails if addr does
// not carry a 4-byte (IPv4) IP.
func FromUDPAddr(addr *net.UDPAddr) (Address, error) {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return Address{}, ErrUnsupportedAddressForm
	}
	var a Address
	copy(a.IP[:], ip4)
	a.Port = uint16(addr.Port)
	return a, nil
}

// UDPAddr converts the Address back into a *net.UDPAddr.
func (a Address) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(a.IP[0], a.IP[1], a.IP[2], a.IP[3]),
		Port: int(a.Port),
	}
}

// Equal reports whether a and other name the same IP and port.
func (a Address) Equal(other Address) bool {
	return a == other
}

// String renders the address as dotted-quad:port, for logging.
func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}
