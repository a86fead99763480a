// example-eventsocket-client is a minimal reference implementation of an
// overlay eventsocket client: it connects to a running overlaynode's event
// socket and logs every dispatched message it sees.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/overlay/eventsocket"
)

var (
	mainCtx, mainCancel = context.WithCancel(context.Background())
)

// handler implements the eventsocket.Handler interface.
type handler struct {
	events chan eventsocket.Event
}

// OnEvent is called synchronously and blocks for every dispatched message.
func (h *handler) OnEvent(ctx context.Context, ev eventsocket.Event) {
	log.Println("event", ev.Kind, ev.FromAgent, ev.Payload)
	h.events <- ev
}

// ProcessEvents reads and processes events received by the handler.
func (h *handler) ProcessEvents(ctx context.Context) {
	for {
		select {
		case e := <-h.events:
			log.Println("processing", e)
		case <-ctx.Done():
			log.Println("shutdown")
			return
		}
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	if *eventsocket.Filename == "" {
		panic("-overlay.eventsocket path is required")
	}

	h := &handler{events: make(chan eventsocket.Event)}

	// Process events received by the eventsocket handler. The goroutine will
	// block until an event occurs.
	go h.ProcessEvents(mainCtx)

	// Begin listening on the eventsocket for new events, and dispatch them to
	// the given handler.
	go eventsocket.MustRun(mainCtx, *eventsocket.Filename, h)

	<-mainCtx.Done()
	fmt.Println("ok")
}
