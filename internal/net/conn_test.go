package net

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mirthwood/server/internal/net/packet"
	"go.uber.org/zap"
)

// newTestPair opens a real websocket pair and returns the server-side
// connection with the given outbound byte ceiling, pumps not started.
func newTestPair(t *testing.T, ceiling int64) (*Conn, *websocket.Conn) {
	t.Helper()
	connCh := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- NewConn(ws, "test", 64, ceiling, 65536, 100, zap.NewNop())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	sc := <-connCh
	t.Cleanup(sc.Close)
	return sc, client
}

func notice(text string) packet.Envelope {
	return packet.New(packet.SNotify, map[string]string{"text": text})
}

func TestSendQueueBoundedByBytesNotCount(t *testing.T) {
	sc, client := newTestPair(t, 16<<20)

	// With the writer not yet started everything stays queued. Hundreds of
	// small messages sit far under the byte ceiling and must not drop the
	// connection.
	const n = 600
	for i := 0; i < n; i++ {
		sc.Send(notice("queued"))
	}
	if sc.IsClosed() {
		t.Fatal("connection dropped with queued bytes far under the ceiling")
	}
	if sc.Buffered() == 0 {
		t.Fatal("queued bytes should be counted")
	}

	sc.Start()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < n; i++ {
		if _, _, err := client.ReadMessage(); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
}

func TestSendClosesOnlyPastCeiling(t *testing.T) {
	sc, _ := newTestPair(t, 200)

	for i := 0; i < 20 && !sc.IsClosed(); i++ {
		sc.Send(notice("overrun"))
	}
	if !sc.IsClosed() {
		t.Fatal("connection should drop once queued bytes overrun the ceiling")
	}
	if sc.Buffered() > 200 {
		t.Errorf("buffered = %d, want at most the ceiling", sc.Buffered())
	}
}
