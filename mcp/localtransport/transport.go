// Package localtransport provides an in-process MCP transport, the
// caller passes a JSON-RPC message and gets the server response back.
package localtransport

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/metoro-io/mcp-golang/transport"
)

// ErrNotConnected is returned when no server is connected to the transport.
var ErrNotConnected = errors.New("transport is not connected")

// Transport implements transport.Transport for a server in the same
// process.
type Transport struct {
	lock           sync.RWMutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	responses      map[int64]chan *transport.BaseJsonRpcMessage
	counter        atomic.Int64
}

var _ transport.Transport = (*Transport)(nil)

// New returns the transport.
func New() *Transport {
	return &Transport{
		responses: make(map[int64]chan *transport.BaseJsonRpcMessage),
	}
}

// Start does nothing, the transport is stateless.
func (t *Transport) Start(_ context.Context) error {
	return nil
}

// Close calls the close handler.
func (t *Transport) Close() error {
	t.lock.RLock()
	handler := t.closeHandler
	t.lock.RUnlock()
	if handler != nil {
		handler()
	}
	return nil
}

// SetCloseHandler sets the callback for when the transport is closed.
func (t *Transport) SetCloseHandler(handler func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler sets the callback for the transport errors.
func (t *Transport) SetErrorHandler(handler func(error)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler sets the callback of the server for the incoming messages.
func (t *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.messageHandler = handler
}

// Send delivers the server response to the pending HandleMessage call.
// Messages without an id, such as notifications, are dropped.
func (t *Transport) Send(_ context.Context, message *transport.BaseJsonRpcMessage) error {
	id, ok := responseID(message)
	if !ok {
		return nil
	}

	t.lock.RLock()
	ch := t.responses[int64(id)]
	t.lock.RUnlock()
	if ch == nil {
		return errors.Newf("no pending request with id %d", id)
	}
	ch <- message
	return nil
}

// HandleMessage passes the request to the server and returns its
// response with the id of the request. A notification returns nil
// response.
func (t *Transport) HandleMessage(ctx context.Context, body []byte) (*transport.BaseJsonRpcMessage, error) {
	t.lock.RLock()
	handler := t.messageHandler
	t.lock.RUnlock()
	if handler == nil {
		return nil, errors.WithStack(ErrNotConnected)
	}

	var request transport.BaseJSONRPCRequest
	if err := json.Unmarshal(body, &request); err != nil {
		var notification transport.BaseJSONRPCNotification
		if nerr := json.Unmarshal(body, &notification); nerr != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC request")
		}
		handler(ctx, transport.NewBaseMessageNotification(&notification))
		return nil, nil
	}

	// ids of the callers may collide, the server gets a unique one
	key := t.counter.Add(1)
	ch := make(chan *transport.BaseJsonRpcMessage, 1)
	t.lock.Lock()
	t.responses[key] = ch
	t.lock.Unlock()
	defer func() {
		t.lock.Lock()
		delete(t.responses, key)
		t.lock.Unlock()
	}()

	callerID := request.Id
	request.Id = transport.RequestId(key)
	handler(ctx, transport.NewBaseMessageRequest(&request))

	select {
	case res := <-ch:
		setResponseID(res, callerID)
		return res, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

func responseID(m *transport.BaseJsonRpcMessage) (transport.RequestId, bool) {
	switch {
	case m == nil:
		return 0, false
	case m.JsonRpcResponse != nil:
		return m.JsonRpcResponse.Id, true
	case m.JsonRpcError != nil:
		return m.JsonRpcError.Id, true
	}
	return 0, false
}

func setResponseID(m *transport.BaseJsonRpcMessage, id transport.RequestId) {
	switch {
	case m.JsonRpcResponse != nil:
		m.JsonRpcResponse.Id = id
	case m.JsonRpcError != nil:
		m.JsonRpcError.Id = id
	}
}
