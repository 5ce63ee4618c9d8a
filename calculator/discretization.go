package calculator

import (
	"math"
	"sort"

	"laserdamage/geometry"
	"laserdamage/model"
)

// 集中参数离散：节点热容取相邻单元体积的 1/8，单元每条棱承担四分之一截面，
// 结构化网格下与标准七点差分格式一致
type discretization struct {
	capacity []float64 // 节点热容 J/K

	// 邻接表 (CSR)
	offsets []int
	adj     []int
	g       []float64 // 棱的热导 W/K

	conductance []float64 // 节点相连热导之和
}

func discretize(topo *geometry.Topology, m model.MaterialProperties) *discretization {
	mesh := topo.Mesh
	n := len(mesh.Nodes)
	d := &discretization{
		capacity:    make([]float64, n),
		conductance: make([]float64, n),
	}

	edges := make(map[[2]int]float64, len(mesh.Elements)*6)
	rc := m.Density * m.SpecificHeat
	for e, el := range mesh.Elements {
		v := topo.Volumes[e]
		for _, node := range el.Nodes {
			d.capacity[node] += rc * v / 8
		}
		for _, edge := range model.HexEdges {
			a, b := el.Nodes[edge[0]], el.Nodes[edge[1]]
			l2 := mesh.Nodes[a].Sub(mesh.Nodes[b]).Dot(mesh.Nodes[a].Sub(mesh.Nodes[b]))
			if a > b {
				a, b = b, a
			}
			edges[[2]int{a, b}] += m.ThermalConductivity * v / (4 * l2)
		}
	}

	keys := make([][2]int, 0, len(edges))
	counts := make([]int, n)
	for k := range edges {
		keys = append(keys, k)
		counts[k[0]]++
		counts[k[1]]++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	d.offsets = make([]int, n+1)
	for i := 0; i < n; i++ {
		d.offsets[i+1] = d.offsets[i] + counts[i]
	}
	d.adj = make([]int, d.offsets[n])
	d.g = make([]float64, d.offsets[n])
	fill := append([]int(nil), d.offsets[:n]...)
	for _, k := range keys {
		g := edges[k]
		a, b := k[0], k[1]
		d.adj[fill[a]], d.g[fill[a]] = b, g
		fill[a]++
		d.adj[fill[b]], d.g[fill[b]] = a, g
		fill[b]++
		d.conductance[a] += g
		d.conductance[b] += g
	}
	return d
}

// 线性化辐射换热系数 εσ(T²+T∞²)(T+T∞)
func radiationCoefficient(emissivity, t, ambient float64) float64 {
	return emissivity * model.StefanBoltzmann * (t*t + ambient*ambient) * (t + ambient)
}

// 计算所有节点中最短的时间步长
func (d *discretization) calculateTimeStep(topo *geometry.Topology, h, emissivity, ambient float64) float64 {
	hr := radiationCoefficient(emissivity, ambient, ambient)
	min := math.Inf(1)
	for i, c := range d.capacity {
		t := c / (d.conductance[i] + (h+hr)*topo.ExposedArea[i])
		if t < min {
			min = t
		}
	}
	return min
}

// StableTimeStep is the largest explicit time step (s) that keeps every node
// update a convex combination at ambient temperature. It scales with element
// size squared over diffusivity.
func StableTimeStep(topo *geometry.Topology, m model.MaterialProperties, h, ambient float64) float64 {
	return discretize(topo, m).calculateTimeStep(topo, h, m.Emissivity, ambient)
}
