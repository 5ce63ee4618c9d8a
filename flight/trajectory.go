package flight

import (
	"math"

	"laserdamage/model"
)

// PathLength is the distance flown along the trajectory.
func PathLength(traj []model.FlightState) float64 {
	total := 0.0
	for i := 1; i < len(traj); i++ {
		total += traj[i].Position.Sub(traj[i-1].Position).Norm()
	}
	return total
}

// Deviation is the largest position difference over the baseline's steps.
// A trajectory that ends early holds its last state for the remaining
// baseline steps.
func Deviation(traj, baseline []model.FlightState) float64 {
	if len(traj) == 0 || len(baseline) == 0 {
		return 0
	}
	dev := 0.0
	for i := range baseline {
		s := traj[len(traj)-1]
		if i < len(traj) {
			s = traj[i]
		}
		dev = math.Max(dev, s.Position.Sub(baseline[i].Position).Norm())
	}
	return dev
}

// Summarize reduces a trajectory to its flight time, ceiling, horizontal
// range, end state and angular rate RMS.
func Summarize(traj []model.FlightState) model.TrajectorySummary {
	if len(traj) == 0 {
		return model.TrajectorySummary{}
	}
	first, last := traj[0], traj[len(traj)-1]
	sum := model.TrajectorySummary{
		FlightTime:  last.Time - first.Time,
		MaxAltitude: first.Altitude(),
		FinalSpeed:  last.Airspeed(),
	}
	rates := 0.0
	for _, s := range traj {
		sum.MaxAltitude = math.Max(sum.MaxAltitude, s.Altitude())
		d := s.Position.Sub(first.Position)
		sum.Range = math.Max(sum.Range, math.Hypot(d.X, d.Y))
		rates += s.AngularVelocity.Dot(s.AngularVelocity)
	}
	sum.AngularRateRMS = math.Sqrt(rates / float64(len(traj)))

	// 航迹角由地面系速度求得
	v := rotate(toQuat(last.Orientation), last.Velocity)
	sum.FlightPathAngle = math.Atan2(-v.Z, math.Hypot(v.X, v.Y))
	return sum
}
