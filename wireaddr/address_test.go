package wireaddr

import (
	"net"
	"testing"
)

func TestFromUDPAddrRoundTrip(t *testing.T) {
	udp := &net.UDPAddr{IP: net.IPv4(10, 1, 2, 3), Port: 4321}
	a, err := FromUDPAddr(udp)
	if err != nil {
		t.Fatalf("FromUDPAddr: %v", err)
	}
	if a.IP != [4]byte{10, 1, 2, 3} || a.Port != 4321 {
		t.Errorf("FromUDPAddr() = %+v, want IP=10.1.2.3 Port=4321", a)
	}

	back := a.UDPAddr()
	if !back.IP.Equal(udp.IP) || back.Port != udp.Port {
		t.Errorf("UDPAddr() = %+v, want %+v", back, udp)
	}
}

func TestFromUDPAddrRejectsIPv6(t *testing.T) {
	udp := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 1}
	if _, err := FromUDPAddr(udp); err != ErrUnsupportedAddressForm {
		t.Errorf("FromUDPAddr(::1) error = %v, want ErrUnsupportedAddressForm", err)
	}
}

func TestEqual(t *testing.T) {
	a := Address{IP: [4]byte{1, 2, 3, 4}, Port: 80}
	same := Address{IP: [4]byte{1, 2, 3, 4}, Port: 80}
	diffPort := Address{IP: [4]byte{1, 2, 3, 4}, Port: 81}
	diffIP := Address{IP: [4]byte{1, 2, 3, 5}, Port: 80}

	if !a.Equal(same) {
		t.Error("Equal() = false for identical addresses")
	}
	if a.Equal(diffPort) {
		t.Error("Equal() = true for differing ports")
	}
	if a.Equal(diffIP) {
		t.Error("Equal() = true for differing IPs")
	}
}

func TestString(t *testing.T) {
	a := Address{IP: [4]byte{192, 168, 0, 1}, Port: 9090}
	want := "192.168.0.1:9090"
	if got := a.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
