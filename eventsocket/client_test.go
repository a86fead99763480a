package eventsocket

import (
	"context"
	"io/ioutil"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
)

type testHandler struct {
	mu     sync.Mutex
	events []Event
	wg     sync.WaitGroup
}

func (t *testHandler) OnEvent(ctx context.Context, ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	t.wg.Done()
}

func TestClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir, err := ioutil.TempDir("", "TestEventSocketClient")
	rtx.Must(err, "Could not create tempdir")
	defer os.RemoveAll(dir)

	srv := New(dir + "/overlay.sock").(*server)
	srv.Listen()
	srvCtx, srvCancel := context.WithCancel(context.Background())
	go srv.Serve(srvCtx)
	defer srvCancel()

	th := &testHandler{}
	clientWg := sync.WaitGroup{}
	clientWg.Add(1)
	go func() {
		MustRun(ctx, dir+"/overlay.sock", th)
		clientWg.Done()
	}()
	th.wg.Add(2)

	// Send a first event.
	srv.Publish(Event{Kind: "Artifact", Timestamp: time.Now(), FromAgent: "fakeagent"})
	// Send a second event.
	srv.Publish(Event{Kind: "Converge", Timestamp: time.Now(), FromAgent: "fakeagent"})
	th.wg.Wait() // Wait until the handler gets both events!

	// Cancel the context and wait until the client stops running.
	cancel()
	clientWg.Wait()
}
