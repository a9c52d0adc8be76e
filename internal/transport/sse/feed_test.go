package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tdlobby/internal/testutil"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		data     string
		expected string
	}{
		{
			name:     "single line data",
			event:    "serverList",
			data:     `[{"id":1}]`,
			expected: "event: serverList\ndata: [{\"id\":1}]\n\n",
		},
		{
			name:     "multi-line data",
			event:    "serverList",
			data:     "[\n  1,\n  2\n]",
			expected: "event: serverList\ndata: [\ndata:   1,\ndata:   2\ndata: ]\n\n",
		},
		{
			name:     "empty data",
			event:    "ping",
			data:     "",
			expected: "event: ping\ndata: \n\n",
		},
		{
			name:     "carriage returns",
			event:    "test",
			data:     "line1\r\nline2",
			expected: "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatMessage(tt.event, tt.data)))
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single line", input: "hello", expected: []string{"hello"}},
		{name: "two lines", input: "line1\nline2", expected: []string{"line1", "line2"}},
		{name: "trailing newline", input: "line1\n", expected: []string{"line1"}},
		{name: "empty string", input: "", expected: []string{""}},
		{name: "crlf line endings", input: "line1\r\nline2\r\n", expected: []string{"line1", "line2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitLines(tt.input))
		})
	}
}

func newTestClient() *Client {
	return newClient("test")
}

func TestFeed_SubscribeAndPublish(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	go feed.Run()
	defer feed.Close()

	client := newTestClient()
	require.True(t, feed.subscribe(client))
	assert.Equal(t, 1, feed.ClientCount())

	feed.Publish("serverList", []int{1, 2})

	select {
	case msg := <-client.send:
		assert.Equal(t, "event: serverList\ndata: [1,2]\n\n", string(msg.data))
		assert.Equal(t, uint64(1), msg.seq)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}
}

func TestFeed_PublishToMultipleClients(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	go feed.Run()
	defer feed.Close()

	clients := []*Client{newTestClient(), newTestClient(), newTestClient()}
	for _, c := range clients {
		require.True(t, feed.subscribe(c))
	}

	feed.Publish("serverList", "x")

	for i, c := range clients {
		select {
		case msg := <-c.send:
			assert.Equal(t, "event: serverList\ndata: \"x\"\n\n", string(msg.data), "client %d", i)
		case <-time.After(time.Second):
			t.Fatalf("client %d did not receive message", i)
		}
	}
}

func TestFeed_Unsubscribe(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	go feed.Run()
	defer feed.Close()

	client := newTestClient()
	require.True(t, feed.subscribe(client))
	feed.unsubscribe(client)

	require.Eventually(t, func() bool { return feed.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

func TestFeed_CloseDisconnectsClients(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	go feed.Run()

	client := newTestClient()
	require.True(t, feed.subscribe(client))

	feed.Close()
	feed.Close()

	select {
	case _, open := <-client.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}
	assert.False(t, feed.subscribe(newTestClient()))
}

func TestHandler_StreamsSnapshotAndUpdates(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	go feed.Run()
	defer feed.Close()

	snapshot := func(ctx context.Context) (string, any, error) {
		return "serverList", []string{}, nil
	}
	server := httptest.NewServer(NewHandler(feed, snapshot))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readMessage := func() string {
		var b strings.Builder
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\n" {
				return b.String()
			}
			b.WriteString(line)
		}
	}

	assert.Equal(t, "event: serverList\ndata: []\n", readMessage())

	require.Eventually(t, func() bool { return feed.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	feed.Publish("serverList", []int{7})
	assert.Equal(t, "event: serverList\ndata: [7]\n", readMessage())
}

func TestHandler_SkipsMessagesOlderThanSnapshot(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	go feed.Run()
	defer feed.Close()

	client := newTestClient()
	require.True(t, feed.subscribe(client))

	// Queued for the client before its snapshot is read
	feed.Publish("serverList", "stale")
	require.Eventually(t, func() bool { return len(client.send) == 1 }, time.Second, 5*time.Millisecond)

	snapshot := func(ctx context.Context) (string, any, error) {
		feed.Publish("serverList", "newer")
		require.Eventually(t, func() bool { return len(client.send) == 2 }, time.Second, 5*time.Millisecond)
		feed.unsubscribe(client)
		return "serverList", "fresh", nil
	}

	rec := httptest.NewRecorder()
	NewHandler(feed, snapshot).stream(context.Background(), rec, rec, client)

	assert.Equal(t,
		"event: serverList\ndata: \"fresh\"\n\n"+
			"event: serverList\ndata: \"newer\"\n\n",
		rec.Body.String())
}

func TestFeed_SequenceCountsPublishes(t *testing.T) {
	feed := NewFeed(testutil.NopLogger())
	defer feed.Close()

	assert.Equal(t, uint64(0), feed.Sequence())
	feed.Publish("serverList", 1)
	feed.Publish("serverList", 2)
	assert.Equal(t, uint64(2), feed.Sequence())
}
