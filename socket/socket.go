// Package socket implements the UDP transport RPCs travel over: a bound,
// SO_REUSEADDR-tuned datagram socket with a single reused receive buffer
// sized to codec.MaxPacketSize. The socket option tuning follows the same
// golang.org/x/sys/unix.SetsockoptInt idiom the teacher uses for raw socket
// setup, applied here through net.ListenConfig's Control hook instead of a
// hand-rolled unix.Socket/unix.Bind pair, since net.ListenConfig.ListenPacket
// already gives us a *net.UDPConn to build on.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/m-lab/overlay/codec"
	"github.com/m-lab/overlay/location"
	"github.com/m-lab/overlay/rpc"
	"github.com/m-lab/overlay/wireaddr"
)

// ErrTransportFailure wraps any I/O error from the underlying UDP socket.
var ErrTransportFailure = errors.New("socket: transport failure")

// Socket is a bound UDP endpoint that sends and receives RPC values.
type Socket[L comparable] struct {
	conn *net.UDPConn
	loc  location.Codec[L]
	buf  []byte
}

// Bind opens a UDP socket at addr (an empty IP binds all interfaces) with
// SO_REUSEADDR set, so a restarted node can rebind its old port immediately.
func Bind[L comparable](ctx context.Context, addr wireaddr.Address, loc location.Codec[L]) (*Socket[L], error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	udpAddr := addr.UDPAddr()
	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("%s:%d", udpAddr.IP, udpAddr.Port))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("%w: ListenPacket did not return a UDP connection", ErrTransportFailure)
	}
	return &Socket[L]{conn: conn, loc: loc, buf: make([]byte, codec.MaxPacketSize)}, nil
}

// LocalAddress reports the address the socket is bound to.
func (s *Socket[L]) LocalAddress() (wireaddr.Address, error) {
	udpAddr, ok := s.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return wireaddr.Address{}, fmt.Errorf("%w: unexpected local address type", ErrTransportFailure)
	}
	return wireaddr.FromUDPAddr(udpAddr)
}

// Send encodes r and writes it to dest in a single datagram. An oversize
// encoding is reported as codec.ErrOversizePacket, not wrapped, so callers
// can distinguish it from a transport failure.
func (s *Socket[L]) Send(r rpc.RPC[L], dest wireaddr.Address) error {
	b, err := codec.Encode(s.loc, r)
	if err != nil {
		return err
	}
	_, err = s.conn.WriteToUDP(b, dest.UDPAddr())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	return nil
}

// Receive blocks until one datagram arrives, decodes it, and returns the RPC
// together with the sender's address. The returned RPC does not alias the
// socket's internal receive buffer.
func (s *Socket[L]) Receive() (rpc.RPC[L], wireaddr.Address, error) {
	n, from, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		return rpc.RPC[L]{}, wireaddr.Address{}, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	owned := make([]byte, n)
	copy(owned, s.buf[:n])
	fromAddr, err := wireaddr.FromUDPAddr(from)
	if err != nil {
		return rpc.RPC[L]{}, wireaddr.Address{}, err
	}
	r, err := codec.Decode(s.loc, owned)
	if err != nil {
		return rpc.RPC[L]{}, fromAddr, err
	}
	return r, fromAddr, nil
}

// SetReadDeadline bounds the next call to Receive. A host that wants
// DispatchOnce to return even when nothing arrives — a finite dispatch
// budget, a shutdown probe — sets one before calling it; a zero time.Time
// clears the deadline and restores blocking reads.
func (s *Socket[L]) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close releases the underlying socket.
func (s *Socket[L]) Close() error {
	return s.conn.Close()
}
