// overlaynode runs a single overlay participant: it binds a UDP socket,
// optionally joins an existing network, heartbeats its neighbors on a timer,
// and dispatches inbound RPCs until canceled. It plays the same role for the
// overlay core that main.go plays for the teacher's collector: all of the
// ambient stack (flags, logging, metrics, signal handling) lives here, while
// the core packages stay free of any of it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/overlay/diagnostics"
	"github.com/m-lab/overlay/event"
	"github.com/m-lab/overlay/eventsocket"
	"github.com/m-lab/overlay/node"
	"github.com/m-lab/overlay/wireaddr"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	listenAddr   = flag.String("overlay.listen", ":0", "Address to bind the overlay UDP socket to.")
	advertise    = flag.String("overlay.address", "", "Advertised address, host:port. 'auto' resolves the advertised IPv4 via netlink address discovery, using the bound port.")
	joinAddr     = flag.String("overlay.join", "", "Address of an existing overlay member to bootstrap membership from. Empty skips joining.")
	maxNeighbors = flag.Int("overlay.max-neighbors", node.DefaultMaxNeighbors, "Maximum neighbor table size.")
	heartbeat    = flag.Duration("overlay.heartbeat", 5*time.Second, "Interval between heartbeat rounds.")
	promPort     = flag.String("prom", ":9090", "Prometheus metrics export address and port.")
	dumpPath     = flag.String("overlay.dump", "", "Optional path prefix for periodic CSV neighbor-table and event-log dumps. Empty disables dumping.")
	reps         = flag.Int("overlay.reps", 0, "How many RPCs to dispatch before returning; 0 runs until canceled. A nonzero value bounds each dispatch on a short read deadline, for smoke testing and scripted runs rather than long-lived service.")
)

// finiteDispatchTimeout bounds each DispatchOnce call while -overlay.reps is
// nonzero, so a rep is "spent" whether or not a datagram actually arrived.
const finiteDispatchTimeout = 200 * time.Millisecond

// ringLoc is the default location type this binary instantiates the core
// with: a single uint64 coordinate on a Chord-style ring. The core itself is
// agnostic to this choice; any type satisfying location.Metric/Codec works.
type ringLoc uint64

// ringMetric counts differing bits between two ring positions. Popcount of
// the XOR (the Hamming distance) respects the triangle inequality.
func ringMetric(a, b ringLoc) int {
	x := a ^ b
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}

var errShortRingBuffer = errors.New("ringCodec: short buffer")

type ringCodec struct{}

func (ringCodec) Encode(v ringLoc) ([]byte, error) {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b, nil
}

func (ringCodec) Decode(b []byte) (ringLoc, []byte, error) {
	if len(b) < 8 {
		return 0, nil, errShortRingBuffer
	}
	var v ringLoc
	for i := 0; i < 8; i++ {
		v |= ringLoc(b[i]) << (8 * i)
	}
	return v, b[8:], nil
}

// logReactor logs every delivered message and republishes it over the
// eventsocket tap (a NullServer when no tap is configured).
type logReactor struct {
	tap eventsocket.Server
}

func (r logReactor) React(msg event.Message[ringLoc]) error {
	log.Printf("dispatched %s from %s", msg.Event.Kind(), msg.FromAgent.Address())
	r.tap.Publish(eventsocket.Event{
		Kind:      msg.Event.Kind().String(),
		Timestamp: time.Now(),
		FromAgent: msg.FromAgent.ID().String(),
		FromAddr:  msg.FromAgent.Address().String(),
	})
	return nil
}

// recordingReactor wraps another Reactor and appends every delivered message
// to a bounded event log before forwarding it, so -overlay.dump has
// something to write.
type recordingReactor struct {
	inner interface {
		React(event.Message[ringLoc]) error
	}
	log *diagnostics.EventLog[ringLoc]
}

func (r recordingReactor) React(msg event.Message[ringLoc]) error {
	r.log.Record(time.Now(), msg)
	return r.inner.React(msg)
}

// resolveAdvertised resolves the -overlay.address flag. An empty flag means
// "same as the bound address"; "auto" resolves the host's primary
// non-loopback IPv4 via netlink, keeping the port the socket bound. run only
// logs the result: the node's own Agent, which JOIN and HRTBT carry to
// peers, keeps the bound address.
func resolveAdvertised(flagVal string, bound wireaddr.Address) (wireaddr.Address, error) {
	switch flagVal {
	case "":
		return bound, nil
	case "auto":
		addrs, err := netlink.AddrList(nil, netlink.FAMILY_V4)
		if err != nil {
			return wireaddr.Address{}, err
		}
		for _, a := range addrs {
			if a.IP.IsLoopback() || a.IP.To4() == nil {
				continue
			}
			udp := &net.UDPAddr{IP: a.IP.To4(), Port: int(bound.Port)}
			return wireaddr.FromUDPAddr(udp)
		}
		return bound, nil
	default:
		udpAddr, err := net.ResolveUDPAddr("udp4", flagVal)
		if err != nil {
			return wireaddr.Address{}, err
		}
		return wireaddr.FromUDPAddr(udpAddr)
	}
}

func parseListenAddr(s string) (wireaddr.Address, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", s)
	if err != nil {
		return wireaddr.Address{}, err
	}
	return wireaddr.FromUDPAddr(udpAddr)
}

func periodicDump(ctx context.Context, n *node.Node[ringLoc], events *diagnostics.EventLog[ringLoc], prefix string) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeDump(n, events, prefix)
		}
	}
}

func writeDump(n *node.Node[ringLoc], events *diagnostics.EventLog[ringLoc], prefix string) {
	nf, err := os.Create(prefix + ".neighbors.csv")
	if err != nil {
		log.Printf("dump: could not create neighbors file: %v", err)
		return
	}
	defer nf.Close()
	if err := diagnostics.DumpNeighbors[ringLoc](nf, n.Neighbors(), ringCodec{}, nil); err != nil {
		log.Printf("dump: could not write neighbors: %v", err)
	}

	ef, err := os.Create(prefix + ".events.csv")
	if err != nil {
		log.Printf("dump: could not create events file: %v", err)
		return
	}
	defer ef.Close()
	if err := diagnostics.DumpEvents[ringLoc](ef, events, ringCodec{}, nil); err != nil {
		log.Printf("dump: could not write events: %v", err)
	}
}

func heartbeatLoop(ctx context.Context, n *node.Node[ringLoc], interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.Heartbeat(); err != nil {
				log.Printf("heartbeat error: %v", err)
			}
		}
	}
}

// dispatchLoop drives n.DispatchOnce either forever (reps == 0, the normal
// service mode) or for exactly reps calls. In finite mode each call gets a
// short read deadline so a rep is consumed whether or not a datagram
// actually arrived; the resulting timeout is expected, not logged. ctx
// cancellation ends either mode: run closes the node's socket when ctx is
// done, which turns the blocking call a continuous dispatchLoop is sitting
// in into an error this function recognizes as shutdown rather than fault.
func dispatchLoop(ctx context.Context, n *node.Node[ringLoc], reps int) error {
	for count := 0; reps == 0 || count < reps; count++ {
		if ctx.Err() != nil {
			return nil
		}
		if reps > 0 {
			if err := n.SetReadDeadline(time.Now().Add(finiteDispatchTimeout)); err != nil {
				return fmt.Errorf("could not set dispatch deadline: %w", err)
			}
		}
		err := n.DispatchOnce()
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if reps > 0 && strings.Contains(err.Error(), "timeout") {
			continue
		}
		log.Printf("dispatch error: %v", err)
	}
	return nil
}

// run performs one complete node lifecycle: bind, join, serve, dispatch.
// It returns once ctx is canceled (continuous mode) or once -overlay.reps
// dispatch attempts have been made (finite mode), making it the unit main
// hands to a test in place of calling DispatchOnce forever itself.
func run(ctx context.Context) error {
	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	bindAddr, err := parseListenAddr(*listenAddr)
	if err != nil {
		return fmt.Errorf("could not parse -overlay.listen %q: %w", *listenAddr, err)
	}

	n, err := node.Bind[ringLoc](ctx, bindAddr, 0, ringMetric, ringCodec{}, *maxNeighbors)
	if err != nil {
		return fmt.Errorf("could not bind overlay node: %w", err)
	}
	defer n.Close()
	go func() {
		<-ctx.Done()
		n.Close()
	}()

	advertised, err := resolveAdvertised(*advertise, n.Address())
	if err != nil {
		return fmt.Errorf("could not resolve advertised address: %w", err)
	}
	log.Printf("overlaynode: id=%s bound=%s advertised=%s", n.Self().ID(), n.Address(), advertised)

	var tap eventsocket.Server = eventsocket.NullServer()
	if *eventsocket.Filename != "" {
		tap = eventsocket.New(*eventsocket.Filename)
		if err := tap.Listen(); err != nil {
			return fmt.Errorf("could not listen on eventsocket %q: %w", *eventsocket.Filename, err)
		}
		go tap.Serve(ctx)
	}

	events := diagnostics.NewEventLog[ringLoc](1000)
	n.SetReactor(recordingReactor{inner: logReactor{tap: tap}, log: events})

	if *joinAddr != "" {
		joinTarget, err := net.ResolveUDPAddr("udp4", *joinAddr)
		if err != nil {
			return fmt.Errorf("could not resolve -overlay.join %q: %w", *joinAddr, err)
		}
		joinWire, err := wireaddr.FromUDPAddr(joinTarget)
		if err != nil {
			return fmt.Errorf("could not convert join address: %w", err)
		}
		if err := n.Join(joinWire); err != nil {
			return fmt.Errorf("could not send initial JOIN: %w", err)
		}
	}

	if *dumpPath != "" {
		go periodicDump(ctx, n, events, *dumpPath)
	}

	go heartbeatLoop(ctx, n, *heartbeat)

	return dispatchLoop(ctx, n, *reps)
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rtx.Must(run(ctx), "overlaynode exited with an error")
}
