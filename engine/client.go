package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/deque"
	"laserdamage/model"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	writeWait               = 10 * time.Second
)

// Session is a licensed connection to a solver engine. Requests are executed
// one at a time in submission order.
type Session interface {
	Solve(ctx context.Context, req *SolveRequest) (*SolveResponse, error)
	Close() error
}

type Options struct {
	HandshakeTimeout time.Duration
}

const (
	stateQueued = iota
	stateInflight
	stateDone
)

type result struct {
	resp *SolveResponse
	err  error
}

type request struct {
	id      string
	ctx     context.Context
	payload json.RawMessage
	state   int
	done    chan result
}

// Client is the websocket Session implementation.
type Client struct {
	conn *ws.Conn
	url  string

	mu       sync.Mutex
	queue    *deque.ArrDeque[*request] // 等待发送的请求
	inflight map[string]chan model.Msg
	broken   error

	writeMu sync.Mutex
	wake    chan struct{}
	done    chan struct{} // closed on shutdown or connection loss
	once    sync.Once
}

// Dial connects to the engine and waits for it to grant a session.
// Any failure is reported as ErrEngineUnavailable.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	dialer := ws.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(model.ErrEngineUnavailable, "dial %s: %v", url, err)
	}

	// 等待引擎分配许可
	_ = conn.SetReadDeadline(time.Now().Add(opts.HandshakeTimeout))
	var hello model.Msg
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(model.ErrEngineUnavailable, "handshake %s: %v", url, err)
	}
	if hello.Type != TypeReady {
		_ = conn.Close()
		return nil, errors.Wrapf(model.ErrEngineUnavailable, "engine %s refused session: %s", url, hello.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:     conn,
		url:      url,
		queue:    deque.NewArrDeque[*request](0),
		inflight: make(map[string]chan model.Msg),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	go c.pump()

	log.WithField("url", url).Info("engine session opened")
	return c, nil
}

// Solve queues req and waits for its result. When ctx expires first the
// request is withdrawn from the queue, or cancelled on the engine if it was
// already sent, and ErrEngineTimeout is returned.
func (c *Client) Solve(ctx context.Context, req *SolveRequest) (*SolveResponse, error) {
	resp, err := c.solve(ctx, req)
	countRequest(ctx, err)
	return resp, err
}

func (c *Client) solve(ctx context.Context, req *SolveRequest) (*SolveResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode solve request")
	}
	r := &request{
		id:      uuid.NewString(),
		ctx:     ctx,
		payload: payload,
		done:    make(chan result, 1),
	}

	c.mu.Lock()
	if c.broken != nil {
		err := c.broken
		c.mu.Unlock()
		return nil, errors.Wrap(model.ErrEngineUnavailable, err.Error())
	}
	c.queue.AddLast(r)
	pending := c.queue.Size()
	c.mu.Unlock()
	log.WithFields(log.Fields{"id": r.id, "queued": pending}).Debug("solve request queued")

	select {
	case c.wake <- struct{}{}:
	default:
	}

	select {
	case res := <-r.done:
		return res.resp, res.err
	case <-ctx.Done():
	}

	c.mu.Lock()
	if r.state == stateQueued {
		c.queue.Traverse(func(i int, item *request) bool {
			if item == r {
				c.queue.Remove(i)
				return false
			}
			return true
		})
		r.state = stateDone
		c.mu.Unlock()
		return nil, contextError(ctx, r.id)
	}
	c.mu.Unlock()

	// 已发送的请求由 pump 负责取消
	res := <-r.done
	return res.resp, res.err
}

func contextError(ctx context.Context, id string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(model.ErrEngineTimeout, "request %s", id)
	}
	return errors.Wrapf(model.ErrCanceled, "request %s", id)
}

func (r *request) finish(resp *SolveResponse, err error) {
	r.done <- result{resp: resp, err: err}
}

// next blocks until a request is queued, or returns nil on shutdown.
func (c *Client) next() *request {
	for {
		c.mu.Lock()
		if !c.queue.IsEmpty() {
			r := c.queue.RemoveFirst()
			r.state = stateInflight
			c.mu.Unlock()
			return r
		}
		c.mu.Unlock()

		select {
		case <-c.wake:
		case <-c.done:
			return nil
		}
	}
}

// pump sends queued requests one at a time.
func (c *Client) pump() {
	for {
		r := c.next()
		if r == nil {
			return
		}
		c.execute(r)
	}
}

func (c *Client) execute(r *request) {
	defer func() {
		c.mu.Lock()
		r.state = stateDone
		delete(c.inflight, r.id)
		c.mu.Unlock()
	}()

	if r.ctx.Err() != nil {
		r.finish(nil, contextError(r.ctx, r.id))
		return
	}

	reply := make(chan model.Msg, 1)
	c.mu.Lock()
	c.inflight[r.id] = reply
	c.mu.Unlock()

	start := time.Now()
	if err := c.write(model.Msg{Type: TypeSolve, ID: r.id, Content: r.payload}); err != nil {
		c.fail(err)
		r.finish(nil, errors.Wrapf(model.ErrEngineUnavailable, "send request %s: %v", r.id, err))
		return
	}

	select {
	case msg := <-reply:
		resp, err := decodeReply(msg)
		log.WithFields(log.Fields{"id": r.id, "type": msg.Type, "elapsed": time.Since(start)}).Debug("solve reply")
		r.finish(resp, err)
	case <-r.ctx.Done():
		if err := c.write(model.Msg{Type: TypeCancel, ID: r.id}); err != nil {
			log.WithError(err).Warn("cancel request not delivered")
		}
		log.WithFields(log.Fields{"id": r.id, "elapsed": time.Since(start)}).Warn("solve request abandoned")
		r.finish(nil, contextError(r.ctx, r.id))
	case <-c.done:
		r.finish(nil, errors.Wrapf(model.ErrEngineUnavailable, "request %s: %v", r.id, c.err()))
	}
}

func decodeReply(msg model.Msg) (*SolveResponse, error) {
	switch msg.Type {
	case TypeSolved:
		var resp SolveResponse
		if err := json.Unmarshal(msg.Content, &resp); err != nil {
			return nil, errors.Wrap(model.ErrDataInconsistency, err.Error())
		}
		if resp.Field == nil {
			return nil, errors.Wrap(model.ErrDataInconsistency, "engine returned no field")
		}
		return &resp, nil
	case TypeFailed:
		var f Failure
		if err := json.Unmarshal(msg.Content, &f); err != nil {
			return nil, errors.Wrap(model.ErrDataInconsistency, err.Error())
		}
		return nil, f.Err()
	case TypeCancelled:
		return nil, errors.Wrap(model.ErrCanceled, "cancelled by engine")
	default:
		return nil, errors.Wrapf(model.ErrDataInconsistency, "unexpected reply %q", msg.Type)
	}
}

func (c *Client) write(msg model.Msg) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(&msg)
}

// readLoop routes replies to the request waiting for them.
func (c *Client) readLoop() {
	for {
		var msg model.Msg
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
			return
		}
		if msg.Type == TypePong {
			continue
		}

		c.mu.Lock()
		ch, ok := c.inflight[msg.ID]
		c.mu.Unlock()
		if !ok {
			log.WithFields(log.Fields{"id": msg.ID, "type": msg.Type}).Debug("stale engine reply dropped")
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func (c *Client) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// fail marks the session unusable and releases every queued request.
func (c *Client) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.broken = err
		var queued []*request
		for !c.queue.IsEmpty() {
			r := c.queue.RemoveFirst()
			r.state = stateDone
			queued = append(queued, r)
		}
		c.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
		for _, r := range queued {
			r.finish(nil, errors.Wrapf(model.ErrEngineUnavailable, "request %s: %v", r.id, err))
		}
		log.WithError(err).WithField("url", c.url).Info("engine session closed")
	})
}

func (c *Client) Close() error {
	c.fail(errors.New("session closed"))
	return nil
}
