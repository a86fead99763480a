// Package eventsocket republishes a node's dispatched overlay messages as
// newline-delimited JSON over a Unix domain socket, so a dashboard, a
// debugger, or any other process on the same host can tail a running node's
// event stream without scraping Prometheus or waiting for a CSV dump. The
// teacher's own eventsocket package plays the same role for TCP flow
// open/close notifications; this one carries an overlay Event instead, and
// groups the subscriber bookkeeping into its own clientSet type rather than
// a bare mutex-guarded map threaded through server's methods directly.
package eventsocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// Event is one line of the JSONL stream: a rendering of an overlay Message
// that does not depend on the host's location type L, so this package stays
// non-generic. Payload's meaning depends on Kind: a hex-encoded location for
// AvoidLocation/Converge, a hex agent/artifact id otherwise.
type Event struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	FromAgent string    `json:"from_agent"`
	FromAddr  string    `json:"from_addr"`
	Payload   string    `json:"payload,omitempty"`
}

// Server is the interface that actually serves events over the unix domain
// socket. Construct one with eventsocket.New, or use NullServer when no
// subscriber tap is wanted but the caller still needs a Server value.
type Server interface {
	Listen() error
	Serve(context.Context) error
	Publish(Event)
}

// clientSet holds the subscriber connections currently attached to a server
// and the fan-out logic over them, so a server's own methods never touch a
// map or mutex directly.
type clientSet struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newClientSet() *clientSet {
	return &clientSet{conns: make(map[net.Conn]struct{})}
}

func (cs *clientSet) add(c net.Conn) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conns[c] = struct{}{}
}

func (cs *clientSet) size() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.conns)
}

// broadcast writes line to every connected client. Connections whose write
// fails are collected rather than dropped mid-scan, then removed from the
// set and closed once the scan finishes, so a slow or gone client never
// forces broadcast to mutate the map it is still ranging over.
func (cs *clientSet) broadcast(line string) {
	cs.mu.Lock()
	var dead []net.Conn
	for c := range cs.conns {
		if _, err := fmt.Fprintln(c, line); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(cs.conns, c)
	}
	cs.mu.Unlock()

	for _, c := range dead {
		c.Close()
	}
}

type server struct {
	events   chan *Event
	filename string
	clients  *clientSet
	listener net.Listener
	wg       sync.WaitGroup
}

// relayEvents drains published events and fans each one out to the current
// client set until ctx is canceled. A nil event is a no-op; tests use one to
// exercise the loop without needing a real payload.
func (s *server) relayEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if ev == nil {
				continue
			}
			b, err := json.Marshal(*ev)
			if err != nil {
				log.Printf("eventsocket: dropping event that would not marshal: %+v: %v\n", ev, err)
				continue
			}
			s.clients.broadcast(string(b))
		}
	}
}

// Listen binds the unix domain socket. Run it once, before Serve. Any
// socket file an unclean shutdown left behind is removed first, since its
// presence would otherwise make the bind fail.
func (s *server) Listen() error {
	os.Remove(s.filename)
	l, err := net.Listen("unix", s.filename)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Serve accepts subscriber connections and relays published events to them
// until ctx is canceled, then closes the listener and waits for its
// background work to wind down before returning. Cancellation is treated as
// a normal shutdown and reports nil even though the interrupted Accept call
// itself returns an error.
func (s *server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.relayEvents(ctx)
	}()
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.listener.Close()
	}()

	var acceptErr error
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			acceptErr = err
			break
		}
		s.clients.add(conn)
	}
	cancel()
	s.wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return acceptErr
}

// Publish queues ev for delivery to every currently connected client.
func (s *server) Publish(ev Event) {
	s.events <- &ev
}

// New builds a Server that will serve subscribers on filename once Listen
// and Serve are called on it.
func New(filename string) Server {
	return &server{
		filename: filename,
		events:   make(chan *Event, 100),
		clients:  newClientSet(),
	}
}

// nullServer discards everything; it lets a host that never configured an
// eventsocket still hold a Server value instead of branching on nil.
type nullServer struct{}

func (nullServer) Listen() error               { return nil }
func (nullServer) Serve(context.Context) error { return nil }
func (nullServer) Publish(Event)               {}

// NullServer returns a Server with no observable effect.
func NullServer() Server {
	return nullServer{}
}
