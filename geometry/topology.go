package geometry

import (
	"math"
	"sort"

	"laserdamage/model"
)

// Face is a boundary face of the mesh.
type Face struct {
	Element    int
	Index      int // HexFaces 下标
	Nodes      [4]int
	Area       float64
	Center     model.Vec3
	Normal     model.Vec3 // 外法线
	Irradiated bool
}

// Topology holds the geometric quantities derived once from an immutable mesh
// and shared by every solver stage.
type Topology struct {
	Mesh *model.GeometryMesh

	Volumes   []float64
	Centroids []model.Vec3
	// 单元沿照射面法线方向的尺寸
	Extents []float64

	Boundary []Face

	// 照射面外法线、照射面位置（沿法线的投影）以及照射区中心
	Normal  model.Vec3
	Surface float64
	Center  model.Vec3

	NodeDepth    []float64
	ElementDepth []float64

	// 节点分摊的照射面积与其余外表面积
	IrradiatedArea []float64
	ExposedArea    []float64

	TotalVolume    float64
	ReferenceDepth float64
}

// Analyze validates the mesh and derives its topology.
func Analyze(m *model.GeometryMesh) (*Topology, error) {
	if m == nil || len(m.Elements) == 0 || len(m.Nodes) == 0 {
		return nil, model.Configf("mesh is empty")
	}
	t := &Topology{
		Mesh:           m,
		Volumes:        make([]float64, len(m.Elements)),
		Centroids:      make([]model.Vec3, len(m.Elements)),
		Extents:        make([]float64, len(m.Elements)),
		NodeDepth:      make([]float64, len(m.Nodes)),
		ElementDepth:   make([]float64, len(m.Elements)),
		IrradiatedArea: make([]float64, len(m.Nodes)),
		ExposedArea:    make([]float64, len(m.Nodes)),
	}

	for e, el := range m.Elements {
		for _, n := range el.Nodes {
			if n < 0 || n >= len(m.Nodes) {
				return nil, model.Configf("element %d references node %d outside mesh", e, n)
			}
		}
		if el.IrradiatedFace < -1 || el.IrradiatedFace > 5 {
			return nil, model.Configf("element %d has invalid irradiated face %d", e, el.IrradiatedFace)
		}
		t.Volumes[e] = HexVolume(m.Nodes, el.Nodes)
		if !(t.Volumes[e] > 0) {
			return nil, model.Configf("element %d is degenerate", e)
		}
		t.TotalVolume += t.Volumes[e]
		t.Centroids[e] = centroid(m.Nodes, el.Nodes)
	}

	if err := t.findBoundary(); err != nil {
		return nil, err
	}

	// 照射面法线取各照射面面积加权
	var normal, center model.Vec3
	area := 0.0
	for _, f := range t.Boundary {
		if !f.Irradiated {
			continue
		}
		normal = normal.Add(f.Normal.Scale(f.Area))
		center = center.Add(f.Center.Scale(f.Area))
		area += f.Area
	}
	if area == 0 {
		return nil, model.Configf("mesh has no irradiated face")
	}
	t.Normal = normal.Unit()
	t.Center = center.Scale(1 / area)

	t.Surface = math.Inf(-1)
	for _, f := range t.Boundary {
		if f.Irradiated {
			for _, n := range f.Nodes {
				t.Surface = math.Max(t.Surface, m.Nodes[n].Dot(t.Normal))
			}
		}
	}
	lowest := math.Inf(1)
	for i, p := range m.Nodes {
		h := p.Dot(t.Normal)
		t.NodeDepth[i] = math.Max(0, t.Surface-h)
		lowest = math.Min(lowest, h)
	}
	t.ReferenceDepth = t.Surface - lowest

	for e, el := range m.Elements {
		t.ElementDepth[e] = math.Max(0, t.Surface-t.Centroids[e].Dot(t.Normal))
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, n := range el.Nodes {
			h := m.Nodes[n].Dot(t.Normal)
			lo, hi = math.Min(lo, h), math.Max(hi, h)
		}
		t.Extents[e] = hi - lo
	}
	return t, nil
}

func (t *Topology) findBoundary() error {
	m := t.Mesh
	type ref struct{ element, face int }
	seen := make(map[[4]int][]ref, len(m.Elements)*2)
	for e, el := range m.Elements {
		for f, local := range model.HexFaces {
			var key [4]int
			for i, l := range local {
				key[i] = el.Nodes[l]
			}
			sort.Ints(key[:])
			seen[key] = append(seen[key], ref{e, f})
		}
	}

	for _, refs := range seen {
		if len(refs) > 2 {
			return model.Configf("face shared by %d elements", len(refs))
		}
	}
	for e, el := range m.Elements {
		for f, local := range model.HexFaces {
			var key [4]int
			var nodes [4]int
			for i, l := range local {
				key[i] = el.Nodes[l]
				nodes[i] = el.Nodes[l]
			}
			sort.Ints(key[:])
			irradiated := el.IrradiatedFace == f
			if len(seen[key]) != 1 {
				if irradiated {
					return model.Configf("element %d irradiated face %d is interior", e, f)
				}
				continue
			}
			face := Face{Element: e, Index: f, Nodes: nodes, Irradiated: irradiated}
			face.Area, face.Normal = quad(m.Nodes, nodes)
			for _, n := range nodes {
				face.Center = face.Center.Add(m.Nodes[n].Scale(0.25))
			}
			// 法线指向单元外侧
			if face.Normal.Dot(face.Center.Sub(t.Centroids[e])) < 0 {
				face.Normal = face.Normal.Scale(-1)
			}
			t.Boundary = append(t.Boundary, face)
			for _, n := range nodes {
				if irradiated {
					t.IrradiatedArea[n] += face.Area / 4
				} else {
					t.ExposedArea[n] += face.Area / 4
				}
			}
		}
	}
	return nil
}

// RadialDistance is the distance of p from the beam axis through Center along Normal.
func (t *Topology) RadialDistance(p model.Vec3) float64 {
	d := p.Sub(t.Center)
	axial := d.Dot(t.Normal)
	return d.Sub(t.Normal.Scale(axial)).Norm()
}

// 四边形面积及单位法线（对角线叉乘）
func quad(nodes []model.Vec3, q [4]int) (float64, model.Vec3) {
	d1 := nodes[q[2]].Sub(nodes[q[0]])
	d2 := nodes[q[3]].Sub(nodes[q[1]])
	c := d1.Cross(d2)
	return c.Norm() / 2, c.Unit()
}

func centroid(nodes []model.Vec3, hex [8]int) model.Vec3 {
	var c model.Vec3
	for _, n := range hex {
		c = c.Add(nodes[n])
	}
	return c.Scale(1.0 / 8)
}

// 以对角线 0-6 将六面体剖分为六个四面体
var hexTets = [6][2]int{{1, 2}, {2, 3}, {3, 7}, {7, 4}, {4, 5}, {5, 1}}

// HexVolume returns the volume of a hexahedron.
func HexVolume(nodes []model.Vec3, hex [8]int) float64 {
	p0, p6 := nodes[hex[0]], nodes[hex[6]]
	d := p6.Sub(p0)
	v := 0.0
	for _, t := range hexTets {
		a := nodes[hex[t[0]]].Sub(p0)
		b := nodes[hex[t[1]]].Sub(p0)
		v += math.Abs(a.Cross(b).Dot(d)) / 6
	}
	return v
}
