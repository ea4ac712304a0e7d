package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubDeliversToEverySessionOfUser(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	userID := uuid.New()
	channel := UserChannel(userID.String())

	tabA := hub.NewSSEClient(userID)
	tabB := hub.NewSSEClient(userID)
	other := hub.NewSSEClient(uuid.New())
	hub.AddChannel(tabA, channel)
	hub.AddChannel(tabB, channel)
	hub.AddChannel(other, UserChannel(other.UserID.String()))

	n := hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseEnrolled, Data: map[string]any{"courseId": "c1"}})
	if n != 2 {
		t.Fatalf("Broadcast: want=2 deliveries got=%d", n)
	}
	if got := recvMessage(t, tabA.Outbound, time.Second); got.Event != SSEEventCourseEnrolled {
		t.Fatalf("tabA: want=%s got=%s", SSEEventCourseEnrolled, got.Event)
	}
	if got := recvMessage(t, tabB.Outbound, time.Second); got.Event != SSEEventCourseEnrolled {
		t.Fatalf("tabB: want=%s got=%s", SSEEventCourseEnrolled, got.Event)
	}
	select {
	case msg := <-other.Outbound:
		t.Fatalf("other user must not receive %s", msg.Event)
	default:
	}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventProgressChanged, Data: map[string]any{"version": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseEnrolled})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventProgressChanged {
		t.Fatalf("first event: want=%s got=%s", SSEEventProgressChanged, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventCourseEnrolled {
		t.Fatalf("second event: want=%s got=%s", SSEEventCourseEnrolled, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if hub.Subscribers(channel) != 0 {
		t.Fatalf("closed client must be unsubscribed")
	}
	if n := hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseEnrolled}); n != 0 {
		t.Fatalf("Broadcast with no subscribers: want=0 got=%d", n)
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPaymentRejected})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventPaymentRejected {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventPaymentRejected, got.Event)
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	for i := 0; i < defaultOutboundBuffer; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventProgressChanged})
	}
	if n := hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventProgressChanged}); n != 0 {
		t.Fatalf("full buffer: want drop got %d deliveries", n)
	}
}

func TestSSEHubServeHTTPWritesNamedEvents(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	userID := uuid.New()
	client := hub.NewSSEClient(userID)
	hub.AddChannel(client, userID.String())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, client)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type: want text/event-stream got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line: want connected comment got %q", line)
	}

	hub.Broadcast(SSEMessage{Channel: userID.String(), Event: SSEEventCourseEnrolled, Data: map[string]any{"courseId": "c1"}})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	if eventLine != string(SSEEventCourseEnrolled) {
		t.Fatalf("event: want=%s got=%s", SSEEventCourseEnrolled, eventLine)
	}
	if !strings.Contains(dataLine, `"courseId":"c1"`) {
		t.Fatalf("data: unexpected %s", dataLine)
	}
	hub.CloseClient(client)
}

func TestCloseAllReleasesStreams(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	a := hub.NewSSEClient(uuid.New())
	b := hub.NewSSEClient(uuid.New())
	hub.AddChannel(a, a.UserID.String())
	hub.AddChannel(b, b.UserID.String())

	hub.CloseAll()
	for _, c := range []*SSEClient{a, b} {
		select {
		case <-c.done:
		default:
			t.Fatalf("client %s still open", c.ID)
		}
		if hub.Subscribers(c.UserID.String()) != 0 {
			t.Fatalf("client %s still subscribed", c.ID)
		}
	}
}
