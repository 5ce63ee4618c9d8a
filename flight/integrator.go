package flight

import (
	"context"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"laserdamage/aero"
	"laserdamage/model"
)

// 状态向量布局：位置(NED) 0-2，机体速度 3-5，姿态四元数 6-9，机体角速度 10-12
const stateSize = 13

type vector [stateSize]float64

// Integrator propagates the rigid-body equations of motion with a fixed-step
// fourth order Runge-Kutta scheme.
type Integrator struct {
	airframe Airframe
	table    *aero.Table
	cfg      Config
}

func NewIntegrator(a Airframe, table *aero.Table, cfg Config) (*Integrator, error) {
	if table == nil {
		return nil, model.Configf("aero table is required")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Integrator{airframe: a, table: table, cfg: cfg}, nil
}

// TrimAlpha finds the angle of attack with zero pitching moment at the given
// Mach number and damage level by bisection over the table's alpha range.
func (in *Integrator) TrimAlpha(mach, damage float64) float64 {
	axis := in.table.Alpha
	lo, hi := axis[0], axis[len(axis)-1]
	cm := func(a float64) float64 { return in.table.Lookup(mach, a, damage).CM }
	if cm(lo)*cm(hi) > 0 {
		return 0
	}
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if cm(lo)*cm(mid) <= 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// Initial is wings-level flight at the configured altitude and airspeed,
// pitched to the undamaged trim angle of attack.
func (in *Integrator) Initial() model.FlightState {
	atm := ISA(in.cfg.Altitude)
	alpha := in.TrimAlpha(in.cfg.Airspeed/atm.SoundSpeed, 0)
	return model.FlightState{
		Position: model.Vec3{Z: -in.cfg.Altitude},
		Velocity: model.Vec3{
			X: in.cfg.Airspeed * math.Cos(alpha),
			Z: in.cfg.Airspeed * math.Sin(alpha),
		},
		Orientation: model.Quaternion{W: math.Cos(alpha / 2), Y: math.Sin(alpha / 2)},
		Mass:        in.airframe.Mass,
		Inertia:     in.airframe.Inertia,
	}
}

func toQuat(q model.Quaternion) quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// rotate 用四元数 q 将向量 v 从机体系转到地面系
func rotate(q quat.Number, v model.Vec3) model.Vec3 {
	r := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return model.Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func pack(s model.FlightState) vector {
	return vector{
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		s.Orientation.W, s.Orientation.X, s.Orientation.Y, s.Orientation.Z,
		s.AngularVelocity.X, s.AngularVelocity.Y, s.AngularVelocity.Z,
	}
}

func unpack(x vector, t, mass float64, inertia model.Matrix3) model.FlightState {
	return model.FlightState{
		Time:            t,
		Position:        model.Vec3{X: x[0], Y: x[1], Z: x[2]},
		Velocity:        model.Vec3{X: x[3], Y: x[4], Z: x[5]},
		Orientation:     model.Quaternion{W: x[6], X: x[7], Y: x[8], Z: x[9]},
		AngularVelocity: model.Vec3{X: x[10], Y: x[11], Z: x[12]},
		Mass:            mass,
		Inertia:         inertia,
	}
}

// body 为一次积分中不变的质量特性
type body struct {
	mass    float64
	inertia *mat.Dense
	inverse *mat.Dense
	level   float64
}

func newBody(s model.FlightState, level float64) (*body, error) {
	if !(s.Mass > 0) {
		return nil, model.Configf("mass must stay positive, got %v", s.Mass)
	}
	i := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			i.Set(r, c, s.Inertia[r][c])
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(i); err != nil {
		return nil, errors.Wrapf(model.ErrConfiguration, "inertia tensor: %v", err)
	}
	return &body{mass: s.Mass, inertia: i, inverse: &inv, level: level}, nil
}

func mulVec(m *mat.Dense, v model.Vec3) model.Vec3 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return model.Vec3{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

func (in *Integrator) derivative(x vector, b *body) vector {
	a := in.airframe
	pos := model.Vec3{X: x[0], Y: x[1], Z: x[2]}
	vel := model.Vec3{X: x[3], Y: x[4], Z: x[5]}
	q := quat.Number{Real: x[6], Imag: x[7], Jmag: x[8], Kmag: x[9]}
	omega := model.Vec3{X: x[10], Y: x[11], Z: x[12]}

	atm := ISA(-pos.Z)
	speed := math.Max(vel.Norm(), 1e-6)
	alpha := math.Atan2(vel.Z, vel.X)
	beta := math.Asin(math.Max(-1, math.Min(1, vel.Y/speed)))
	qbar := 0.5 * atm.Density * speed * speed

	// 无量纲角速度
	p := omega.X * a.Span / (2 * speed)
	qh := omega.Y * a.Chord / (2 * speed)
	r := omega.Z * a.Span / (2 * speed)

	c := in.table.Lookup(speed/atm.SoundSpeed, alpha, b.level)
	cl := c.CL + a.CLq*qh
	lift := qbar * a.WingArea * cl
	drag := qbar * a.WingArea * c.CD
	side := qbar * a.WingArea * a.CYBeta * beta

	force := model.Vec3{
		X: -drag*math.Cos(alpha) + lift*math.Sin(alpha) + a.Thrust,
		Y: side,
		Z: -drag*math.Sin(alpha) - lift*math.Cos(alpha),
	}
	force = force.Add(rotate(quat.Conj(q), model.Vec3{Z: b.mass * model.Gravity}))

	moment := model.Vec3{
		X: qbar * a.WingArea * a.Span * (a.ClBeta*beta + a.ClP*p),
		Y: qbar * a.WingArea * a.Chord * (c.CM + a.CMq*qh),
		Z: qbar * a.WingArea * a.Span * (a.CnBeta*beta + a.CnR*r),
	}

	velDot := force.Scale(1 / b.mass).Sub(omega.Cross(vel))
	omegaDot := mulVec(b.inverse, moment.Sub(omega.Cross(mulVec(b.inertia, omega))))
	posDot := rotate(q, vel)
	qDot := quat.Scale(0.5, quat.Mul(q, quat.Number{Imag: omega.X, Jmag: omega.Y, Kmag: omega.Z}))

	return vector{
		posDot.X, posDot.Y, posDot.Z,
		velDot.X, velDot.Y, velDot.Z,
		qDot.Real, qDot.Imag, qDot.Jmag, qDot.Kmag,
		omegaDot.X, omegaDot.Y, omegaDot.Z,
	}
}

func (in *Integrator) step(x vector, dt float64, b *body) vector {
	var k2in, k3in, k4in, out vector
	k1 := in.derivative(x, b)
	floats.AddScaledTo(k2in[:], x[:], dt/2, k1[:])
	k2 := in.derivative(k2in, b)
	floats.AddScaledTo(k3in[:], x[:], dt/2, k2[:])
	k3 := in.derivative(k3in, b)
	floats.AddScaledTo(k4in[:], x[:], dt, k3[:])
	k4 := in.derivative(k4in, b)

	out = x
	floats.AddScaled(out[:], dt/6, k1[:])
	floats.AddScaled(out[:], dt/3, k2[:])
	floats.AddScaled(out[:], dt/3, k3[:])
	floats.AddScaled(out[:], dt/6, k4[:])

	// 四元数归一化
	n := floats.Norm(out[6:10], 2)
	if n > 0 {
		floats.Scale(1/n, out[6:10])
	}
	return out
}

func finite(x vector) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// rotationAngle 两个姿态之间的转角
func rotationAngle(a, b quat.Number) float64 {
	d := quat.Mul(quat.Conj(a), b)
	w := math.Min(1, math.Abs(d.Real)/quat.Abs(d))
	return 2 * math.Acos(w)
}

// Run integrates from initial with the damage effect applied to its mass,
// inertia and aerodynamic damage level. The trajectory includes the initial
// state and ends at the first termination condition.
func (in *Integrator) Run(ctx context.Context, initial model.FlightState, effect model.DamageEffect) ([]model.FlightState, model.TerminationReason, error) {
	initial.Mass -= effect.MassLoss
	initial.Inertia = initial.Inertia.Add(effect.InertiaDelta)
	b, err := newBody(initial, effect.Level)
	if err != nil {
		return nil, "", err
	}

	dt := in.cfg.TimeStep
	steps := int(math.Round(in.cfg.Horizon / dt))
	trajectory := make([]model.FlightState, 0, steps+1)
	trajectory = append(trajectory, initial)
	x := pack(initial)
	q0 := toQuat(initial.Orientation)

	reason := model.TerminationHorizon
	for i := 1; i <= steps; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return trajectory, "", errors.Wrap(model.ErrCanceled, err.Error())
			}
		}
		x = in.step(x, dt, b)
		if !finite(x) {
			reason = model.TerminationDiverged
			break
		}
		s := unpack(x, float64(i)*dt, initial.Mass, initial.Inertia)
		trajectory = append(trajectory, s)

		if s.Altitude() <= 0 {
			reason = model.TerminationGroundImpact
			break
		}
		if rotationAngle(q0, toQuat(s.Orientation)) > in.cfg.MaxAttitudeDeviation ||
			s.AngularVelocity.Norm() > in.cfg.MaxAngularRate {
			reason = model.TerminationLossOfControl
			break
		}
	}

	last := trajectory[len(trajectory)-1]
	log.WithFields(log.Fields{
		"termination": reason,
		"time":        last.Time,
		"altitude":    last.Altitude(),
		"level":       effect.Level,
	}).Debug("flight integrated")
	return trajectory, reason, nil
}

// Baseline integrates the undamaged airframe from Initial.
func (in *Integrator) Baseline(ctx context.Context) ([]model.FlightState, model.TerminationReason, error) {
	return in.Run(ctx, in.Initial(), model.DamageEffect{})
}

// StaticMargin evaluates the static margin at the initial flight condition.
func (in *Integrator) StaticMargin(damage float64) float64 {
	atm := ISA(in.cfg.Altitude)
	mach := in.cfg.Airspeed / atm.SoundSpeed
	return in.table.StaticMargin(mach, in.TrimAlpha(mach, damage), damage)
}
