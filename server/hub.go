package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/calculator"
	"laserdamage/engine"
	"laserdamage/executor"
	"laserdamage/geometry"
	"laserdamage/model"
)

const writeWait = 10 * time.Second

type job struct {
	id      string
	content json.RawMessage
	ctx     context.Context
}

// Hub serves one session: requests are read in order, solves run one at a
// time, replies go through a single writer.
type Hub struct {
	conn *websocket.Conn
	e    *executor.Executor

	// request
	msg chan model.Msg
	// response
	replies chan model.Msg
	// 排队等待求解
	jobs chan job

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewHub(conn *websocket.Conn, e *executor.Executor) *Hub {
	return &Hub{
		conn:    conn,
		e:       e,
		msg:     make(chan model.Msg, 10),
		replies: make(chan model.Msg, 10),
		jobs:    make(chan job, 64),
		cancels: make(map[string]context.CancelFunc),
	}
}

func (h *Hub) handleResponse(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-h.replies:
			_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteJSON(&reply); err != nil {
				log.WithError(err).Warn("write reply")
			}
		}
	}
}

func (h *Hub) reply(ctx context.Context, msg model.Msg) {
	select {
	case h.replies <- msg:
	case <-ctx.Done():
	}
}

func (h *Hub) handleRequest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.msg:
			switch msg.Type {
			case engine.TypePing:
				h.reply(ctx, model.Msg{Type: engine.TypePong, ID: msg.ID})
			case engine.TypeSolve:
				jctx, cancel := context.WithCancel(ctx)
				h.mu.Lock()
				h.cancels[msg.ID] = cancel
				h.mu.Unlock()
				select {
				case h.jobs <- job{id: msg.ID, content: msg.Content, ctx: jctx}:
				case <-ctx.Done():
					cancel()
					return
				}
			case engine.TypeCancel:
				h.mu.Lock()
				cancel, ok := h.cancels[msg.ID]
				h.mu.Unlock()
				if ok {
					cancel()
				}
			default:
				log.WithField("type", msg.Type).Warn("no such type")
				h.reply(ctx, failed(msg.ID, engine.CodeInvalid, "no such type "+msg.Type))
			}
		}
	}
}

func (h *Hub) handleSolve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-h.jobs:
			h.reply(ctx, h.solve(j))
			h.mu.Lock()
			if cancel, ok := h.cancels[j.id]; ok {
				cancel()
				delete(h.cancels, j.id)
			}
			h.mu.Unlock()
		}
	}
}

func failed(id, code, message string) model.Msg {
	content, _ := json.Marshal(engine.Failure{Code: code, Message: message})
	return model.Msg{Type: engine.TypeFailed, ID: id, Content: content}
}

func (h *Hub) solve(j job) model.Msg {
	if j.ctx.Err() != nil {
		return model.Msg{Type: engine.TypeCancelled, ID: j.id}
	}
	var req engine.SolveRequest
	if err := json.Unmarshal(j.content, &req); err != nil {
		return failed(j.id, engine.CodeInvalid, err.Error())
	}
	start := time.Now()
	field, err := Solve(j.ctx, &req, h.e)
	if err != nil {
		if errors.Is(err, model.ErrCanceled) {
			return model.Msg{Type: engine.TypeCancelled, ID: j.id}
		}
		log.WithError(err).WithField("id", j.id).Warn("solve failed")
		return failed(j.id, engine.CodeOf(err), err.Error())
	}
	content, err := json.Marshal(engine.SolveResponse{Field: field})
	if err != nil {
		return failed(j.id, engine.CodeInternal, err.Error())
	}
	log.WithFields(log.Fields{"id": j.id, "steps": req.Steps, "elapsed": time.Since(start)}).Info("solve finished")
	return model.Msg{Type: engine.TypeSolved, ID: j.id, Content: content}
}

// Solve runs a request through the finite-difference calculator.
func Solve(ctx context.Context, req *engine.SolveRequest, e *executor.Executor) (*model.ThermalField, error) {
	if req.Mesh == nil {
		return nil, model.Configf("request has no mesh")
	}
	topo, err := geometry.Analyze(req.Mesh)
	if err != nil {
		return nil, err
	}
	c, err := calculator.NewCalculator(&calculator.Problem{
		Topology:   topo,
		Material:   req.Material,
		Ambient:    req.Ambient,
		Convection: req.Convection,
		Flux:       req.Flux,
		Windows:    req.Windows,
		TimeStep:   req.TimeStep,
		Steps:      req.Steps,
	}, e)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx)
}
