package simulation

import (
	"math"
	"time"

	"laserdamage/geometry"
	"laserdamage/model"
)

// Scenario is one laser engagement of a plate target.
type Scenario struct {
	Name     string                `json:"name"`
	Laser    model.LaserParameters `json:"laser"`
	Material string                `json:"material"`
	Plate    geometry.Plate        `json:"plate"`
	Duration float64               `json:"duration"`  // s
	TimeStep float64               `json:"time_step"` // s
}

// Options are the run settings shared by every scenario of a runner.
type Options struct {
	Ambient     float64 // K
	Convection  float64 // W/(m²·K)
	MaxAttempts int

	EngineTimeout time.Duration
	EngineRetries int

	// 单元级并行的工作协程数
	Workers int
}

var DefaultOptions = Options{
	Ambient:       293.15,
	Convection:    10,
	MaxAttempts:   6,
	EngineTimeout: 30 * time.Second,
}

func (o Options) Validate() error {
	switch {
	case !(o.Ambient > 0) || math.IsInf(o.Ambient, 0):
		return model.Configf("ambient temperature must be positive, got %v", o.Ambient)
	case o.Convection < 0 || math.IsNaN(o.Convection):
		return model.Configf("convection coefficient must be non-negative, got %v", o.Convection)
	case o.MaxAttempts < 1:
		return model.Configf("max attempts must be at least 1, got %d", o.MaxAttempts)
	case o.EngineTimeout <= 0:
		return model.Configf("engine timeout must be positive, got %v", o.EngineTimeout)
	case o.EngineRetries < 0:
		return model.Configf("engine retries must be non-negative, got %d", o.EngineRetries)
	}
	return nil
}
