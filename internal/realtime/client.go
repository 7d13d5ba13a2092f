// Package realtime implements the operational-transform client for the
// notebook realtime protocol.
//
// The client keeps a local mirror of one notebook, applies local operations
// optimistically, sends them over a WebSocket and reconciles the mirror with
// acknowledgements, rejections and operations broadcast by the server.
//
// The mirror is always the server-confirmed snapshot plus the pending local
// edits in send order. Remote operations and acknowledgements advance the
// snapshot; a rejected edit is dropped and the mirror rebuilt, so nothing is
// ever undone by inversion.
//
// Concurrency model:
//   - readLoop decodes server messages, applies remote operations and resolves
//     waiters keyed by op id
//   - writeLoop drains a bounded queue (capacity 128) onto the socket
//   - pingLoop keeps the connection alive with control frames
//
// One mutex guards the mirror and the waiter map. It is never held while
// waiting on the network.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fiberplane/fp-sub000/internal/notebook"
)

const (
	sendQueueSize = 128
	maxAttempts   = 3
	writeTimeout  = 10 * time.Second
)

var (
	// ErrRejected is returned when the server keeps rejecting an operation.
	ErrRejected = errors.New("operation rejected")

	// ErrClosed is returned for requests on a closed connection.
	ErrClosed = errors.New("realtime connection closed")
)

var tracer = otel.Tracer("github.com/fiberplane/fp-sub000/internal/realtime")

// ServerError is an Err reply from the server.
type ServerError struct {
	OpID    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error for %s: %s", e.OpID, e.Message)
}

// Options configures Dial.
type Options struct {
	// URL is the WebSocket endpoint (see config.WebSocketURL).
	URL string

	// Token is the bearer token sent in the Authenticate message.
	Token string

	// Notebook is the initial snapshot the mirror starts from.
	Notebook *notebook.Notebook

	// Dialer overrides the default dialer.
	Dialer *websocket.Dialer

	// PingInterval defaults to 30 seconds.
	PingInterval time.Duration
}

// Client is a realtime connection subscribed to one notebook.
type Client struct {
	conn         *websocket.Conn
	notebookID   string
	pingInterval time.Duration

	// mu protects everything below it.
	mu        sync.Mutex
	confirmed *notebook.Notebook
	pending   []*localEdit
	mirror    *notebook.Notebook
	waiters   map[string]chan ServerMessage
	err       error

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects, authenticates and subscribes to opts.Notebook.
//
// Parameters:
//   - ctx: Context for the handshake and the first two round trips
//   - opts: Connection options
//
// Returns:
//   - *Client: A subscribed client
//   - error: Any error during connect, authenticate or subscribe
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Notebook == nil {
		return nil, errors.New("realtime: initial notebook is required")
	}

	ctx, span := tracer.Start(ctx, "realtime.Dial", trace.WithAttributes(attribute.String("notebook.id", opts.Notebook.ID)))
	defer span.End()

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 30 * time.Second,
		}
	}

	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unable to connect to web socket server: %w", err)
	}
	log.Debug("Connected realtime client", "url", opts.URL)

	c := &Client{
		conn:         conn,
		notebookID:   opts.Notebook.ID,
		pingInterval: opts.PingInterval,
		confirmed:    opts.Notebook.Clone(),
		mirror:       opts.Notebook.Clone(),
		waiters:      make(map[string]chan ServerMessage),
		queue:        make(chan []byte, sendQueueSize),
		done:         make(chan struct{}),
	}
	if c.pingInterval <= 0 {
		c.pingInterval = 30 * time.Second
	}

	go c.readLoop()
	go c.writeLoop()
	go c.pingLoop()

	reply, err := c.request(ctx, "auth", TypeAuthenticate, AuthenticateMessage{OpID: "auth", Token: opts.Token})
	if err := expectAck(reply, err); err != nil {
		c.Close()
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	log.Debug("Authenticated realtime client")

	subID := "sub_" + c.notebookID
	reply, err = c.request(ctx, subID, TypeSubscribe, SubscribeMessage{OpID: subID, NotebookID: c.notebookID})
	if err := expectAck(reply, err); err != nil {
		c.Close()
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("subscribe to %s: %w", c.notebookID, err)
	}
	log.Debug("Subscribed realtime client", "notebook_id", c.notebookID)

	return c, nil
}

func expectAck(reply ServerMessage, err error) error {
	if err != nil {
		return err
	}
	switch reply.Type {
	case TypeAck:
		return nil
	case TypeErr:
		return &ServerError{OpID: reply.OpID, Message: reply.Error}
	default:
		return fmt.Errorf("unexpected %s reply", reply.Type)
	}
}

// NotebookID returns the id of the subscribed notebook.
func (c *Client) NotebookID() string {
	return c.notebookID
}

// Revision returns the mirror's current revision.
func (c *Client) Revision() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.Revision
}

// Notebook returns a copy of the mirror.
func (c *Client) Notebook() *notebook.Notebook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.Clone()
}

// Cell returns a copy of a mirrored cell.
func (c *Client) Cell(id string) (notebook.Cell, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.Cell(id)
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection closed, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
		return nil
	}
}

// ApplyOperation applies op locally and sends it, retrying on rejection.
func (c *Client) ApplyOperation(ctx context.Context, op notebook.Operation) error {
	return c.send(ctx, false, func(*notebook.Notebook) ([]notebook.Operation, error) {
		return []notebook.Operation{op}, nil
	})
}

// ApplyOperationBatch applies ops locally as one revision and sends them,
// retrying on rejection.
func (c *Client) ApplyOperationBatch(ctx context.Context, ops []notebook.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	return c.send(ctx, true, func(*notebook.Notebook) ([]notebook.Operation, error) {
		return ops, nil
	})
}

// AddCells appends cells after the last cell of the notebook. Cells without
// an id get a fresh one. The returned cells carry the ids the server acknowledged.
func (c *Client) AddCells(ctx context.Context, cells ...notebook.Cell) ([]notebook.Cell, error) {
	added := make([]notebook.Cell, len(cells))
	for i, cell := range cells {
		if cell.ID == "" {
			cell.ID = uuid.NewString()
		}
		added[i] = cell
	}

	err := c.send(ctx, false, func(nb *notebook.Notebook) ([]notebook.Operation, error) {
		op := notebook.AddCellsOperation{}
		for i, cell := range added {
			op.Cells = append(op.Cells, notebook.CellWithIndex{Cell: cell, Index: uint32(len(nb.Cells) + i)})
		}
		return []notebook.Operation{op}, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// AppendText appends text (and formatting relative to the append point) to
// the end of a cell. The offset is recomputed from the mirror on every attempt.
func (c *Client) AppendText(ctx context.Context, cellID, text string, formatting notebook.Formatting) error {
	if text == "" {
		return nil
	}
	return c.send(ctx, false, func(nb *notebook.Notebook) ([]notebook.Operation, error) {
		cell, ok := nb.Cell(cellID)
		if !ok {
			return nil, fmt.Errorf("append to %s: %w", cellID, notebook.ErrCellNotFound)
		}
		return []notebook.Operation{notebook.ReplaceTextOperation{
			CellID:        cellID,
			Offset:        uint32(cell.CharCount()),
			NewText:       text,
			NewFormatting: formatting,
		}}, nil
	})
}

// localEdit is an operation applied to the mirror but not yet confirmed.
type localEdit struct {
	opID     string
	ops      []notebook.Operation
	revision uint32
}

// send runs the Local -> Sent -> Ack | Rejected -> Rebased -> Sent cycle.
func (c *Client) send(ctx context.Context, batch bool, build func(*notebook.Notebook) ([]notebook.Operation, error)) error {
	ctx, span := tracer.Start(ctx, "realtime.ApplyOperation", trace.WithAttributes(attribute.String("notebook.id", c.notebookID)))
	defer span.End()

	var lastReason string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		edit, err := c.applyLocal(build)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.AddEvent("send", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.Int64("revision", int64(edit.revision)),
			attribute.String("op_id", edit.opID),
			attribute.String("operation", string(edit.ops[0].Kind())),
		))

		var reply ServerMessage
		if batch {
			reply, err = c.request(ctx, edit.opID, TypeApplyOperationBatch, ApplyOperationBatchMessage{
				OpID:       edit.opID,
				NotebookID: c.notebookID,
				Operations: edit.ops,
				Revision:   edit.revision,
			})
		} else {
			reply, err = c.request(ctx, edit.opID, TypeApplyOperation, ApplyOperationMessage{
				OpID:       edit.opID,
				NotebookID: c.notebookID,
				Operation:  edit.ops[0],
				Revision:   edit.revision,
			})
		}
		if err != nil {
			c.discard(edit.opID)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		// handle has already confirmed or dropped the edit.
		switch reply.Type {
		case TypeAck, TypeApplyOperation, TypeApplyOperationBatch:
			return nil
		case TypeRejected:
			lastReason = reply.Reason
			log.Debug("Operation rejected", "op_id", edit.opID, "revision", edit.revision, "attempt", attempt, "reason", reply.Reason)
		case TypeErr:
			err := &ServerError{OpID: edit.opID, Message: reply.Error}
			span.SetStatus(codes.Error, err.Error())
			return err
		default:
			c.discard(edit.opID)
			return fmt.Errorf("unexpected %s reply to %s", reply.Type, edit.opID)
		}
	}

	span.SetStatus(codes.Error, "rejected")
	return fmt.Errorf("%w after %d attempts: %s", ErrRejected, maxAttempts, lastReason)
}

// applyLocal builds the operations from the current mirror, applies them and
// records them as pending under the next revision.
func (c *Client) applyLocal(build func(*notebook.Notebook) ([]notebook.Operation, error)) (*localEdit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.closedErrLocked()
	}

	ops, err := build(c.mirror)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, errors.New("realtime: no operations to send")
	}

	next, err := applyAll(c.mirror, ops)
	if err != nil {
		return nil, fmt.Errorf("apply operation locally: %w", err)
	}
	next.Revision = c.mirror.Revision + 1

	edit := &localEdit{
		opID:     uuid.NewString(),
		ops:      ops,
		revision: next.Revision,
	}
	c.pending = append(c.pending, edit)
	c.mirror = next
	return edit, nil
}

// discard drops an edit whose outcome is unknown, e.g. after the request
// was cancelled.
func (c *Client) discard(opID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.takePendingLocked(opID) != nil {
		c.rebuildLocked()
	}
}

func (c *Client) takePendingLocked(opID string) *localEdit {
	for i, edit := range c.pending {
		if edit.opID == opID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return edit
		}
	}
	return nil
}

// confirmLocked moves an acknowledged edit into the confirmed snapshot.
// revision is the server's revision for it, or 0 when the reply carried none.
func (c *Client) confirmLocked(edit *localEdit, revision uint32) {
	next, err := applyAll(c.confirmed, edit.ops)
	if err != nil {
		log.Warn("Acknowledged operation does not apply to the confirmed notebook", "op_id", edit.opID, "err", err)
		next = c.confirmed.Clone()
	}
	if revision == 0 {
		revision = max(edit.revision, c.confirmed.Revision+1)
	}
	next.Revision = max(c.confirmed.Revision, revision)
	c.confirmed = next
}

// rebuildLocked recomputes the mirror from the confirmed snapshot and the
// pending edits. Edits that no longer apply are left out of the content
// until the server answers them; they still count towards the revision so
// it never decreases outside of a rejection.
func (c *Client) rebuildLocked() {
	next := c.confirmed.Clone()
	for _, edit := range c.pending {
		applied, err := applyAll(next, edit.ops)
		if err != nil {
			log.Debug("Pending operation no longer applies", "op_id", edit.opID, "err", err)
			continue
		}
		next = applied
	}
	next.Revision = c.confirmed.Revision + uint32(len(c.pending))
	c.mirror = next
}

// applyAll applies ops to a copy of nb.
func applyAll(nb *notebook.Notebook, ops []notebook.Operation) (*notebook.Notebook, error) {
	next := nb.Clone()
	for _, op := range ops {
		if err := next.ApplyOperation(op); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// request queues a message and waits for the reply carrying the same op id.
func (c *Client) request(ctx context.Context, opID string, kind MessageType, payload interface{}) (ServerMessage, error) {
	data, err := encodeClientMessage(kind, payload)
	if err != nil {
		return ServerMessage{}, err
	}

	reply := make(chan ServerMessage, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.closedErrLocked()
		c.mu.Unlock()
		return ServerMessage{}, err
	}
	c.waiters[opID] = reply
	c.mu.Unlock()

	log.Debug("Queueing message", "type", kind, "op_id", opID)
	select {
	case c.queue <- data:
	case <-ctx.Done():
		c.dropWaiter(opID)
		return ServerMessage{}, ctx.Err()
	case <-c.done:
		c.dropWaiter(opID)
		return ServerMessage{}, c.closedErr()
	}

	select {
	case msg := <-reply:
		return msg, nil
	case <-ctx.Done():
		c.dropWaiter(opID)
		return ServerMessage{}, ctx.Err()
	case <-c.done:
		c.dropWaiter(opID)
		return ServerMessage{}, c.closedErr()
	}
}

func (c *Client) dropWaiter(opID string) {
	c.mu.Lock()
	delete(c.waiters, opID)
	c.mu.Unlock()
}

// handle processes one inbound frame.
func (c *Client) handle(data []byte) {
	msg, err := decodeServerMessage(data)
	if err != nil {
		log.Debug("Failed to decode server message", "err", err, "data", string(data))
		return
	}
	log.Debug("Received message", "type", msg.Type, "op_id", msg.OpID, "revision", msg.Revision)

	c.mu.Lock()
	var waiter chan ServerMessage
	if msg.OpID != "" {
		waiter = c.waiters[msg.OpID]
		delete(c.waiters, msg.OpID)
	}

	switch msg.Type {
	case TypeApplyOperation, TypeApplyOperationBatch:
		if msg.NotebookID != "" && msg.NotebookID != c.notebookID {
			log.Debug("Ignoring operation for another notebook", "notebook_id", msg.NotebookID)
			break
		}
		// An echo of our own operation acknowledges it.
		if edit := c.takePendingLocked(msg.OpID); edit != nil {
			c.confirmLocked(edit, msg.Revision)
		} else {
			c.applyRemoteLocked(msg)
		}
		c.rebuildLocked()
	case TypeAck, TypeRejected, TypeErr:
		if edit := c.takePendingLocked(msg.OpID); edit != nil {
			if msg.Type == TypeAck {
				c.confirmLocked(edit, msg.Revision)
			}
			c.rebuildLocked()
		}
	case TypeSubscriberAdded, TypeSubscriberRemoved, TypeSubscriberFocus, TypeDebugResponse, TypeMention:
		log.Debug("Ignoring server notification", "type", msg.Type)
	}
	c.mu.Unlock()

	if waiter != nil {
		waiter <- msg
	}
}

// applyRemoteLocked applies a broadcast operation to the confirmed snapshot.
func (c *Client) applyRemoteLocked(msg ServerMessage) {
	next, err := applyAll(c.confirmed, msg.Operations)
	if err != nil {
		log.Warn("Failed to apply remote operation", "revision", msg.Revision, "err", err)
		next = c.confirmed.Clone()
	}
	next.Revision = max(c.confirmed.Revision, msg.Revision)
	c.confirmed = next
}

func (c *Client) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("read: %w", err))
			return
		}
		switch msgType {
		case websocket.TextMessage:
			c.handle(data)
		default:
			log.Debug("Received unexpected binary content")
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

// fail records the first connection error and tears the connection down.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedErrLocked()
}

func (c *Client) closedErrLocked() error {
	if c.err == nil || errors.Is(c.err, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}

// Close sends a normal closure frame and stops the client. Pending and
// future requests fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()

	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second),
		)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
