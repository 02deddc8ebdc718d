package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// drainRequestHeaders reads and discards request lines up to and
// including the blank line terminating the header block, reporting
// whether it found one before the connection closed.
func drainRequestHeaders(r *bufio.Reader) bool {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return false
		}
		if line == "\r\n" || line == "\n" {
			return true
		}
	}
}

// serveCannedResponses answers each request on conn, in order, with
// the next entry in responses, then stops.
func serveCannedResponses(conn net.Conn, responses []string) {
	r := bufio.NewReader(conn)
	for _, resp := range responses {
		if !drainRequestHeaders(r) {
			return
		}
		if _, err := conn.Write([]byte(resp)); err != nil {
			return
		}
	}
}

func pipeDialer(dialCount *int32, responses []string) DialFunc {
	return func(ctx context.Context, origin Origin) (net.Conn, error) {
		atomic.AddInt32(dialCount, 1)
		client, server := net.Pipe()
		go serveCannedResponses(server, responses)
		return client, nil
	}
}

func TestAgent_SendRejectsOriginMismatch(t *testing.T) {
	agent := NewAgent(testOrigin(), AgentOptions{})
	req := NewRequest("GET", "http://other.example.com/foo")

	_, err := agent.Send(req)
	assert.Error(t, err)
	kind, ok := errors2.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors2.OriginMismatch, kind)
}

func TestAgent_SendFailsFastWhenBusy(t *testing.T) {
	dialBlock := make(chan struct{})
	agent := NewAgent(testOrigin(), AgentOptions{
		Dial: func(ctx context.Context, origin Origin) (net.Conn, error) {
			<-dialBlock
			return nil, errors.New("dial aborted for test")
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		agent.Send(NewRequest("GET", "http://example.com/foo"))
	}()

	// give the goroutine above a chance to set busyFlag and block in Dial.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, agent.IsIdle())

	_, err := agent.Send(NewRequest("GET", "http://example.com/bar"))
	assert.Error(t, err)
	kind, ok := errors2.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors2.AgentBusy, kind)

	close(dialBlock)
	wg.Wait()
}

func TestAgent_WhenIdleResolvesAfterBodyConsumed(t *testing.T) {
	var dialCount int32
	agent := NewAgent(testOrigin(), AgentOptions{
		Dial: pipeDialer(&dialCount, []string{"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"}),
	})

	assert.True(t, agent.IsIdle())

	resp, err := agent.Send(NewRequest("GET", "http://example.com/foo"))
	assert.NoError(t, err)
	assert.False(t, agent.IsIdle())

	idle := agent.WhenIdle()
	select {
	case <-idle:
		t.Fatal("agent reported idle before its body was consumed")
	default:
	}

	text, err := resp.Body().Text()
	assert.NoError(t, err)
	assert.Equal(t, "ok", text)

	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("agent never returned to idle after body was consumed")
	}
	assert.True(t, agent.IsIdle())
}

func TestAgent_ConnectionReusedAcrossRequestsWhenFramed(t *testing.T) {
	var dialCount int32
	agent := NewAgent(testOrigin(), AgentOptions{
		Dial: pipeDialer(&dialCount, []string{
			"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
			"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
		}),
	})

	for i := 0; i < 2; i++ {
		resp, err := agent.Send(NewRequest("GET", "http://example.com/foo"))
		assert.NoError(t, err)
		_, err = resp.Body().Text()
		assert.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&dialCount))
}

func TestAgent_CancelForcesConnectionClose(t *testing.T) {
	var dialCount int32
	agent := NewAgent(testOrigin(), AgentOptions{
		Dial: pipeDialer(&dialCount, []string{
			"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
			"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
		}),
	})

	resp, err := agent.Send(NewRequest("GET", "http://example.com/foo"))
	assert.NoError(t, err)
	assert.NoError(t, resp.Body().Cancel())

	<-agent.WhenIdle()

	_, err = agent.Send(NewRequest("GET", "http://example.com/foo"))
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&dialCount))
}
