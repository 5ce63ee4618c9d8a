package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/calculator"
	"laserdamage/engine"
	"laserdamage/geometry"
	"laserdamage/material"
	"laserdamage/model"
	"laserdamage/server"
)

var upgrader = ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func solveRequest(t *testing.T) *engine.SolveRequest {
	mesh, err := geometry.Plate{Length: 2e-3, Width: 2e-3, Thickness: 0.5e-3, NX: 4, NY: 4, NZ: 2}.Mesh()
	require.NoError(t, err)
	topo, err := geometry.Analyze(mesh)
	require.NoError(t, err)
	m, err := material.Default().Lookup(material.Aluminum6061)
	require.NoError(t, err)

	flux := make([]float64, len(mesh.Nodes))
	for i := range flux {
		if topo.IrradiatedArea[i] > 0 {
			flux[i] = 5e7
		}
	}
	return &engine.SolveRequest{
		Mesh:       mesh,
		Material:   m,
		Ambient:    293.15,
		Convection: 10,
		Flux:       flux,
		Windows:    [][2]float64{{0, 1}},
		TimeStep:   0.5 * calculator.StableTimeStep(topo, m, 10, 293.15),
		Steps:      5,
	}
}

func engineServer(t *testing.T, sessions int) *httptest.Server {
	ts := httptest.NewServer(server.NewServer("", upgrader, sessions).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSolveAgainstEngine(t *testing.T) {
	ts := engineServer(t, 1)
	c, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	require.NoError(t, err)
	defer c.Close()

	req := solveRequest(t)
	resp, err := c.Solve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Field.Times, req.Steps+1)
	require.NoError(t, resp.Field.Check(len(req.Mesh.Nodes), req.Steps, req.Ambient))
	assert.Greater(t, resp.Field.Peak(), req.Ambient)

	// 会话可以连续求解
	_, err = c.Solve(context.Background(), req)
	require.NoError(t, err)
}

func TestSolveReportsInstability(t *testing.T) {
	ts := engineServer(t, 1)
	c, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	require.NoError(t, err)
	defer c.Close()

	req := solveRequest(t)
	req.TimeStep *= 10
	_, err = c.Solve(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrNumericalInstability)
}

func TestDialUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(ts)
	ts.Close()

	_, err := engine.Dial(context.Background(), url, engine.Options{HandshakeTimeout: time.Second})
	assert.ErrorIs(t, err, model.ErrEngineUnavailable)
}

func TestSessionLicense(t *testing.T) {
	ts := engineServer(t, 1)
	first, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	require.NoError(t, err)

	_, err = engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	assert.ErrorIs(t, err, model.ErrEngineUnavailable)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		c, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)
}

// silentEngine grants a session and records requests without ever replying.
type silentEngine struct {
	mu   sync.Mutex
	msgs []model.Msg
	drop bool
}

func (s *silentEngine) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.WriteJSON(&model.Msg{Type: engine.TypeReady})
	for {
		var msg model.Msg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		s.msgs = append(s.msgs, msg)
		drop := s.drop
		s.mu.Unlock()
		if drop {
			return
		}
	}
}

func (s *silentEngine) received(typ string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, m := range s.msgs {
		if m.Type == typ {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func silentServer(t *testing.T, s *silentEngine) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestSolveTimeoutCancelsInflight(t *testing.T) {
	fake := &silentEngine{}
	ts := silentServer(t, fake)
	c, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Solve(ctx, solveRequest(t))
	assert.ErrorIs(t, err, model.ErrEngineTimeout)

	require.Eventually(t, func() bool {
		solves, cancels := fake.received(engine.TypeSolve), fake.received(engine.TypeCancel)
		return len(solves) == 1 && len(cancels) == 1 && solves[0] == cancels[0]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSolveTimeoutWithdrawsQueued(t *testing.T) {
	fake := &silentEngine{}
	ts := silentServer(t, fake)
	c, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	require.NoError(t, err)
	defer c.Close()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Solve(firstCtx, solveRequest(t))
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return len(fake.received(engine.TypeSolve)) == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Solve(ctx, solveRequest(t))
	assert.ErrorIs(t, err, model.ErrEngineTimeout)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, model.ErrCanceled)

	// 被撤回的请求从未发送到引擎
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, fake.received(engine.TypeSolve), 1)
}

func TestConnectionLoss(t *testing.T) {
	fake := &silentEngine{drop: true}
	ts := silentServer(t, fake)
	c, err := engine.Dial(context.Background(), wsURL(ts), engine.Options{})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = c.Solve(ctx, solveRequest(t))
	assert.ErrorIs(t, err, model.ErrEngineUnavailable)

	_, err = c.Solve(ctx, solveRequest(t))
	assert.ErrorIs(t, err, model.ErrEngineUnavailable)
}
