package engine

import (
	"github.com/pkg/errors"

	"laserdamage/model"
)

// 消息类型
const (
	TypeReady     = "ready"
	TypeBusy      = "busy"
	TypeSolve     = "solve"
	TypeCancel    = "cancel"
	TypeSolved    = "solved"
	TypeFailed    = "failed"
	TypeCancelled = "cancelled"
	TypePing      = "ping"
	TypePong      = "pong"
)

// 失败原因
const (
	CodeInstability = "instability"
	CodeInvalid     = "invalid"
	CodeCanceled    = "canceled"
	CodeInternal    = "internal"
)

// SolveRequest is a transient thermal solve: mesh, material, boundary
// conditions and time parameters.
type SolveRequest struct {
	Mesh       *model.GeometryMesh      `json:"mesh"`
	Material   model.MaterialProperties `json:"material"`
	Ambient    float64                  `json:"ambient"`
	Convection float64                  `json:"convection"`
	Flux       []float64                `json:"flux"`
	Windows    [][2]float64             `json:"windows"`
	TimeStep   float64                  `json:"time_step"`
	Steps      int                      `json:"steps"`
}

type SolveResponse struct {
	Field *model.ThermalField `json:"field"`
}

type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Err maps a failure reported by the engine onto the error taxonomy.
func (f Failure) Err() error {
	switch f.Code {
	case CodeInstability:
		return errors.Wrap(model.ErrNumericalInstability, f.Message)
	case CodeInvalid:
		return errors.Wrap(model.ErrConfiguration, f.Message)
	case CodeCanceled:
		return errors.Wrap(model.ErrCanceled, f.Message)
	default:
		return errors.Errorf("engine failure %s: %s", f.Code, f.Message)
	}
}

// CodeOf is the inverse of Failure.Err for errors raised while solving.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, model.ErrNumericalInstability):
		return CodeInstability
	case errors.Is(err, model.ErrConfiguration), errors.Is(err, model.ErrDataInconsistency):
		return CodeInvalid
	case errors.Is(err, model.ErrCanceled):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
