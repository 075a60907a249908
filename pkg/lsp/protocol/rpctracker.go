package protocol

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
)

// RPCMessage is one request or response seen by the server.
type RPCMessage struct {
	Method   string
	Request  *jrpc2.Request
	Response *jrpc2.Response
	Time     time.Time
}

var _ jrpc2.RPCLogger = (*RPCTracker)(nil)

// RPCTracker records traffic so tests can assert on what the server saw.
type RPCTracker struct {
	mu sync.RWMutex

	messages     []RPCMessage
	knownMethods map[string]string // request id -> method
}

func NewRPCTracker() *RPCTracker {
	return &RPCTracker{knownMethods: make(map[string]string)}
}

func (t *RPCTracker) LogRequest(ctx context.Context, req *jrpc2.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id := req.ID(); id != "" {
		t.knownMethods[id] = req.Method()
	}
	t.messages = append(t.messages, RPCMessage{Method: req.Method(), Request: req, Time: time.Now()})
}

func (t *RPCTracker) LogResponse(ctx context.Context, resp *jrpc2.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, RPCMessage{Method: t.knownMethods[resp.ID()], Response: resp, Time: time.Now()})
}

// Messages returns a copy of everything tracked so far.
func (t *RPCTracker) Messages() []RPCMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// RequestMethods lists the methods of tracked requests in arrival order.
func (t *RPCTracker) RequestMethods() []string {
	var out []string
	for _, msg := range t.Messages() {
		if msg.Request != nil {
			out = append(out, msg.Method)
		}
	}
	return out
}
