package flight

import (
	"math"

	"laserdamage/model"
)

// Atmosphere is the ISA state at one altitude.
type Atmosphere struct {
	Temperature float64 // K
	Density     float64 // kg/m³
	SoundSpeed  float64 // m/s
}

// ISA evaluates the standard atmosphere for the troposphere and the lower
// stratosphere. Altitudes below sea level are treated as sea level.
func ISA(altitude float64) Atmosphere {
	h := math.Max(altitude, 0)
	exp := model.Gravity/(model.LapseRate*model.GasConstantAir) - 1

	var temp, rho float64
	if h <= model.TropopauseAltitude {
		temp = model.SeaLevelTemperature - model.LapseRate*h
		rho = model.SeaLevelDensity * math.Pow(temp/model.SeaLevelTemperature, exp)
	} else {
		temp = model.SeaLevelTemperature - model.LapseRate*model.TropopauseAltitude
		rho11 := model.SeaLevelDensity * math.Pow(temp/model.SeaLevelTemperature, exp)
		rho = rho11 * math.Exp(-model.Gravity*(h-model.TropopauseAltitude)/(model.GasConstantAir*temp))
	}
	return Atmosphere{
		Temperature: temp,
		Density:     rho,
		SoundSpeed:  math.Sqrt(model.HeatCapacityRatio * model.GasConstantAir * temp),
	}
}
