package geometry

import (
	"laserdamage/model"
)

// Plate is a rectangular target panel in metres, irradiated on its top face
// (z = Thickness). NX, NY, NZ are element divisions along each axis.
type Plate struct {
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Thickness float64 `json:"thickness"`
	NX        int     `json:"nx"`
	NY        int     `json:"ny"`
	NZ        int     `json:"nz"`
}

func (p Plate) Validate() error {
	if !(p.Length > 0 && p.Width > 0 && p.Thickness > 0) {
		return model.Configf("plate dimensions must be positive, got %vx%vx%v", p.Length, p.Width, p.Thickness)
	}
	if p.NX < 1 || p.NY < 1 || p.NZ < 1 {
		return model.Configf("plate divisions must be at least 1, got %dx%dx%d", p.NX, p.NY, p.NZ)
	}
	return nil
}

// 节点编号 i + (NX+1)*(j + (NY+1)*k)，k=0 为背面
func (p Plate) node(i, j, k int) int {
	return i + (p.NX+1)*(j+(p.NY+1)*k)
}

// Mesh builds a structured hexahedral mesh of the plate.
func (p Plate) Mesh() (*model.GeometryMesh, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dx := p.Length / float64(p.NX)
	dy := p.Width / float64(p.NY)
	dz := p.Thickness / float64(p.NZ)

	m := &model.GeometryMesh{
		Nodes:    make([]model.Vec3, 0, (p.NX+1)*(p.NY+1)*(p.NZ+1)),
		Elements: make([]model.Element, 0, p.NX*p.NY*p.NZ),
	}
	for k := 0; k <= p.NZ; k++ {
		for j := 0; j <= p.NY; j++ {
			for i := 0; i <= p.NX; i++ {
				m.Nodes = append(m.Nodes, model.Vec3{X: float64(i) * dx, Y: float64(j) * dy, Z: float64(k) * dz})
			}
		}
	}
	for k := 0; k < p.NZ; k++ {
		for j := 0; j < p.NY; j++ {
			for i := 0; i < p.NX; i++ {
				e := model.Element{
					Nodes: [8]int{
						p.node(i, j, k), p.node(i+1, j, k), p.node(i+1, j+1, k), p.node(i, j+1, k),
						p.node(i, j, k+1), p.node(i+1, j, k+1), p.node(i+1, j+1, k+1), p.node(i, j+1, k+1),
					},
					IrradiatedFace: -1,
				}
				if k == p.NZ-1 {
					e.IrradiatedFace = 1
				}
				m.Elements = append(m.Elements, e)
			}
		}
	}
	return m, nil
}
