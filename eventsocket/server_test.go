package eventsocket

import (
	"bufio"
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/m-lab/go/rtx"
)

// waitUntil polls cond every 2ms until it returns true, failing the test if
// it hasn't within a second. Used instead of a tight spin loop to wait on
// the server's asynchronous client bookkeeping.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir, err := ioutil.TempDir("", "TestEventSocketServer")
	rtx.Must(err, "Could not create tempdir")
	defer os.RemoveAll(dir)

	sockPath := dir + "/overlay.sock"
	srv := New(sockPath).(*server)
	rtx.Must(srv.Listen(), "Could not listen")
	go srv.Serve(ctx)

	conn, err := net.Dial("unix", sockPath)
	rtx.Must(err, "Could not dial %q", sockPath)

	waitUntil(t, "the server to register the client", func() bool {
		return srv.clients.size() > 0
	})

	srv.Publish(Event{Kind: "Converge", FromAgent: "fakeagent", FromAddr: "10.0.0.1:9000"})
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatal("could not scan the first published line")
	}
	var got Event
	rtx.Must(json.Unmarshal(scanner.Bytes(), &got), "could not unmarshal")
	if got.Kind != "Converge" || got.FromAgent != "fakeagent" {
		t.Errorf("got %+v, want Kind=Converge FromAgent=fakeagent", got)
	}

	before := time.Now()
	srv.Publish(Event{Kind: "Artifact", Timestamp: time.Now(), FromAgent: "fakeagent2", Payload: "deadbeef"})
	if !scanner.Scan() {
		t.Fatal("could not scan the second published line")
	}
	rtx.Must(json.Unmarshal(scanner.Bytes(), &got), "could not unmarshal")
	after := time.Now()
	if got.Timestamp.Before(before) || got.Timestamp.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", got.Timestamp, before, after)
	}
	got.Timestamp = time.Time{}
	if diff := deep.Equal(got, Event{Kind: "Artifact", FromAgent: "fakeagent2", Payload: "deadbeef"}); diff != nil {
		t.Errorf("event differed from expected: %v", diff)
	}

	// Closing the client and publishing again forces the next broadcast to
	// observe the write failure and drop the connection from the set.
	conn.Close()
	srv.events <- nil // a nil event must not panic relayEvents
	srv.Publish(Event{Kind: "Converge", FromAgent: "fakeagent"})
	waitUntil(t, "the server to drop the closed client", func() bool {
		return srv.clients.size() == 0
	})

	cancel()
	srv.wg.Wait()
}

func TestNullServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := NullServer()
	rtx.Must(srv.Listen(), "Could not listen")
	rtx.Must(srv.Serve(ctx), "Could not serve")
	srv.Publish(Event{Kind: "Converge"})
}
