package thermal

import (
	"math"

	"laserdamage/geometry"
	"laserdamage/laser"
	"laserdamage/model"
)

// 温度场记录的上限（步数 × 节点数）
const maxSamples = 200_000_000

// Problem is one irradiation of a meshed target.
type Problem struct {
	Topology   *geometry.Topology
	Material   model.MaterialProperties
	Source     *laser.Source
	Ambient    float64 // K
	Convection float64 // W/(m²·K)
	Duration   float64 // s
	TimeStep   float64 // s

	// 由引擎策略填写的超时重试次数
	EngineRetries int
}

func (p *Problem) Validate() error {
	switch {
	case p.Topology == nil:
		return model.Configf("thermal problem has no mesh")
	case p.Source == nil:
		return model.Configf("thermal problem has no laser source")
	case !(p.Duration > 0) || math.IsInf(p.Duration, 0):
		return model.Configf("duration must be positive, got %v", p.Duration)
	case !(p.TimeStep > 0):
		return model.Configf("time step must be positive, got %v", p.TimeStep)
	case !(p.Ambient > 0):
		return model.Configf("ambient temperature must be positive, got %v", p.Ambient)
	case p.Convection < 0:
		return model.Configf("convection coefficient must be non-negative, got %v", p.Convection)
	}
	return nil
}

// Steps is the number of time steps needed to cover the duration.
func (p *Problem) Steps() int {
	return int(math.Ceil(p.Duration/p.TimeStep - 1e-9))
}

func (p *Problem) checkSize() error {
	steps := p.Steps()
	if float64(steps+1)*float64(len(p.Topology.Mesh.Nodes)) > maxSamples {
		return model.Configf("%d steps on %d nodes exceeds the field size limit", steps, len(p.Topology.Mesh.Nodes))
	}
	return nil
}

// Flux is the absorbed on-time flux (W/m²) at each irradiated node.
func (p *Problem) Flux() []float64 {
	flux := make([]float64, len(p.Topology.Mesh.Nodes))
	for i, node := range p.Topology.Mesh.Nodes {
		if p.Topology.IrradiatedArea[i] > 0 {
			flux[i] = p.Material.Absorptivity * p.Source.Intensity(p.Topology.RadialDistance(node))
		}
	}
	return flux
}
