package eventsocket

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"strings"

	"github.com/m-lab/go/rtx"
)

var (
	// Filename is a command-line flag holding the name of the unix-domain
	// socket that should be used by the client and server. It is put here in
	// an attempt to have just one standard flag name.
	Filename = flag.String("overlay.eventsocket", "", "The filename of the unix-domain socket on which node events are served.")
)

// Handler is the interface that all interested subscribers of the event
// socket stream should implement.
type Handler interface {
	OnEvent(ctx context.Context, ev Event)
}

// MustRun dials socket and hands every Event read from it to handler until
// ctx is canceled. Any failure other than the expected shutdown is fatal.
func MustRun(ctx context.Context, socket string, handler Handler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := net.Dial("unix", socket)
	rtx.Must(err, "eventsocket: could not dial %q", socket)
	go closeWhenDone(ctx, conn)

	rtx.Must(subscribe(ctx, conn, handler), "eventsocket: subscriber loop on %q died", socket)
}

// closeWhenDone closes conn once ctx is canceled. That's what actually
// unblocks subscribe's scanner: a closed unix-domain connection makes its
// pending read return at once instead of waiting on the server.
func closeWhenDone(ctx context.Context, conn net.Conn) {
	<-ctx.Done()
	conn.Close()
}

// subscribe decodes newline-delimited Events from conn and hands each to
// handler until the stream ends. The scan loop exits either because the
// peer closed the connection (a plain EOF, which bufio.Scanner swallows) or
// because closeWhenDone tore the connection down on our side; the latter
// surfaces as an unexported "closed network connection" error rather than
// EOF, so it is recognized by its ctx state and message text and treated as
// a clean exit rather than a failure.
func subscribe(ctx context.Context, conn net.Conn, handler Handler) error {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return fmt.Errorf("could not unmarshal %q: %w", scanner.Text(), err)
		}
		handler.OnEvent(ctx, ev)
	}
	if err := scanner.Err(); err != nil && !closedByShutdown(ctx, err) {
		return err
	}
	return nil
}

func closedByShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && strings.Contains(err.Error(), "use of closed network connection")
}
