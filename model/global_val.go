package model

// 物理常数
const (
	StefanBoltzmann = 5.670374419e-8 // W/(m²·K⁴)
	Gravity         = 9.80665        // m/s²

	// 国际标准大气
	SeaLevelTemperature = 288.15  // K
	SeaLevelDensity     = 1.225   // kg/m³
	LapseRate           = 0.0065  // K/m
	TropopauseAltitude  = 11000.0 // m
	GasConstantAir      = 287.053 // J/(kg·K)
	HeatCapacityRatio   = 1.4
)

// 六面体单元面的节点编号，0-3 为底面，4-7 为顶面
var HexFaces = [6][4]int{
	{0, 3, 2, 1}, // bottom
	{4, 5, 6, 7}, // top
	{0, 1, 5, 4}, // front (y-)
	{1, 2, 6, 5}, // right (x+)
	{2, 3, 7, 6}, // back (y+)
	{3, 0, 4, 7}, // left (x-)
}

// 六面体的十二条棱
var HexEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}
