package config

import (
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"laserdamage/aero"
	"laserdamage/assess"
	"laserdamage/engine"
	"laserdamage/flight"
	"laserdamage/geometry"
	"laserdamage/laser"
	"laserdamage/logging"
	"laserdamage/material"
	"laserdamage/model"
	"laserdamage/simulation"
	"laserdamage/store"
)

// 运行模式
const (
	ModeBatch  = "batch"
	ModeEngine = "engine"
)

type App struct {
	Mode    string
	Workers int
}

// Engine covers both sides of the engine connection: Listen and MaxSessions
// for the reference engine server, URL and the timeouts for the client.
type Engine struct {
	Listen      string
	MaxSessions int

	URL              string
	HandshakeTimeout time.Duration
}

type Batch struct {
	Workers int
}

type Config struct {
	App        App
	Log        logging.Config
	Engine     Engine
	Simulation simulation.Options
	Flight     flight.Config
	Airframe   flight.Airframe
	Damage     aero.Translation
	Assessment assess.Thresholds
	Storage    store.Config
	Batch      Batch
	Scenarios  []simulation.Scenario
}

const scenarioPrefix = "scenario "

// Load reads an ini file.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, model.Configf("read %s: %v", path, err)
	}
	return parse(file)
}

// Parse reads ini data.
func Parse(data []byte) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, model.Configf("parse config: %v", err)
	}
	return parse(file)
}

// parser 读取数值键：缺省或留空时取默认值，格式错误时记下第一个错误
type parser struct {
	err error
}

func (p *parser) key(sec *ini.Section, name string) *ini.Key {
	if p.err != nil || !sec.HasKey(name) {
		return nil
	}
	k := sec.Key(name)
	if strings.TrimSpace(k.String()) == "" {
		return nil
	}
	return k
}

func (p *parser) fail(sec *ini.Section, name string, err error) {
	p.err = model.Configf("[%s] %s: %v", sec.Name(), name, err)
}

func (p *parser) float(sec *ini.Section, name string, def float64) float64 {
	k := p.key(sec, name)
	if k == nil {
		return def
	}
	v, err := k.Float64()
	if err != nil {
		p.fail(sec, name, err)
		return def
	}
	return v
}

func (p *parser) integer(sec *ini.Section, name string, def int) int {
	k := p.key(sec, name)
	if k == nil {
		return def
	}
	v, err := k.Int()
	if err != nil {
		p.fail(sec, name, err)
		return def
	}
	return v
}

func (p *parser) duration(sec *ini.Section, name string, def time.Duration) time.Duration {
	k := p.key(sec, name)
	if k == nil {
		return def
	}
	v, err := k.Duration()
	if err != nil {
		p.fail(sec, name, err)
		return def
	}
	return v
}

func parse(file *ini.File) (*Config, error) {
	cfg := &Config{}
	p := &parser{}
	app := file.Section("app")
	cfg.App = App{
		Mode:    app.Key("mode").MustString(ModeBatch),
		Workers: p.integer(app, "workers", 0),
	}

	lg := file.Section("log")
	cfg.Log = logging.Config{
		Level:    lg.Key("level").MustString(logging.DefaultConfig.Level),
		Format:   lg.Key("format").MustString(logging.DefaultConfig.Format),
		Graylog:  lg.Key("graylog").String(),
		Facility: lg.Key("facility").MustString(logging.DefaultConfig.Facility),
	}

	eng := file.Section("engine")
	cfg.Engine = Engine{
		Listen:           eng.Key("listen").MustString(":9000"),
		MaxSessions:      p.integer(eng, "max_sessions", 1),
		URL:              eng.Key("url").String(),
		HandshakeTimeout: p.duration(eng, "handshake_timeout", 5*time.Second),
	}

	th := file.Section("thermal")
	def := simulation.DefaultOptions
	cfg.Simulation = simulation.Options{
		Ambient:       p.float(th, "ambient", def.Ambient),
		Convection:    p.float(th, "convection", def.Convection),
		MaxAttempts:   p.integer(th, "max_attempts", def.MaxAttempts),
		EngineTimeout: p.duration(eng, "request_timeout", def.EngineTimeout),
		EngineRetries: p.integer(eng, "retries", def.EngineRetries),
		Workers:       cfg.App.Workers,
	}
	duration := p.float(th, "duration", 2e-3)
	timeStep := p.float(th, "time_step", 5e-5)

	fl := file.Section("flight")
	fd := flight.DefaultConfig
	cfg.Flight = flight.Config{
		TimeStep:             p.float(fl, "time_step", fd.TimeStep),
		Horizon:              p.float(fl, "horizon", fd.Horizon),
		MaxAttitudeDeviation: p.float(fl, "max_attitude_deviation", fd.MaxAttitudeDeviation),
		MaxAngularRate:       p.float(fl, "max_angular_rate", fd.MaxAngularRate),
		Altitude:             p.float(fl, "altitude", fd.Altitude),
		Airspeed:             p.float(fl, "airspeed", fd.Airspeed),
	}

	af := file.Section("airframe")
	ad := flight.DefaultAirframe
	cfg.Airframe = flight.Airframe{
		Mass:     p.float(af, "mass", ad.Mass),
		WingArea: p.float(af, "wing_area", ad.WingArea),
		Chord:    p.float(af, "chord", ad.Chord),
		Span:     p.float(af, "span", ad.Span),
		Thrust:   p.float(af, "thrust", ad.Thrust),
		CLq:      p.float(af, "cl_q", ad.CLq),
		CMq:      p.float(af, "cm_q", ad.CMq),
		CYBeta:   p.float(af, "cy_beta", ad.CYBeta),
		ClBeta:   p.float(af, "cl_beta", ad.ClBeta),
		ClP:      p.float(af, "cl_p", ad.ClP),
		CnBeta:   p.float(af, "cn_beta", ad.CnBeta),
		CnR:      p.float(af, "cn_r", ad.CnR),
	}
	ixz := p.float(af, "ixz", ad.Inertia[0][2])
	cfg.Airframe.Inertia = model.Matrix3{
		{p.float(af, "ixx", ad.Inertia[0][0]), 0, -ixz},
		{0, p.float(af, "iyy", ad.Inertia[1][1]), 0},
		{-ixz, 0, p.float(af, "izz", ad.Inertia[2][2])},
	}

	dm := file.Section("damage")
	dd := aero.DefaultTranslation
	cfg.Damage = aero.Translation{
		VolumeAtFull: p.float(dm, "volume_at_full", dd.VolumeAtFull),
		LevelStep:    p.float(dm, "level_step", dd.LevelStep),
		HitPoint: model.Vec3{
			X: p.float(dm, "hit_x", dd.HitPoint.X),
			Y: p.float(dm, "hit_y", dd.HitPoint.Y),
			Z: p.float(dm, "hit_z", dd.HitPoint.Z),
		},
	}

	as := file.Section("assessment")
	t := assess.DefaultThresholds
	for key, dst := range map[string]*assess.Cuts{
		"temperature_ratio":    &t.TemperatureRatio,
		"stress_ratio":         &t.StressRatio,
		"volume_fraction":      &t.VolumeFraction,
		"depth_fraction":       &t.DepthFraction,
		"trajectory_deviation": &t.TrajectoryDeviation,
		"margin_degradation":   &t.MarginDegradation,
	} {
		if !as.HasKey(key) {
			continue
		}
		vals, err := as.Key(key).StrictFloat64s(",")
		if err != nil {
			return nil, model.Configf("assessment %s: %v", key, err)
		}
		if len(vals) != len(dst) {
			return nil, model.Configf("assessment %s needs %d cut points, got %d", key, len(dst), len(vals))
		}
		copy(dst[:], vals)
	}
	cfg.Assessment = t

	st := file.Section("storage")
	kind, err := store.ParseStorageType(st.Key("type").MustString(string(store.StorageNone)))
	if err != nil {
		return nil, err
	}
	cfg.Storage = store.Config{
		Type: kind,
		Path: st.Key("path").MustString("runs.db"),
		DSN:  st.Key("dsn").String(),
	}

	cfg.Batch = Batch{Workers: p.integer(file.Section("batch"), "workers", 1)}

	for _, sec := range file.Sections() {
		if !strings.HasPrefix(sec.Name(), scenarioPrefix) {
			continue
		}
		sc, err := p.scenario(sec, duration, timeStep)
		if err != nil {
			return nil, err
		}
		cfg.Scenarios = append(cfg.Scenarios, sc)
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *parser) scenario(sec *ini.Section, duration, timeStep float64) (simulation.Scenario, error) {
	name := strings.TrimSpace(strings.TrimPrefix(sec.Name(), scenarioPrefix))
	mode, err := model.ParseLaserMode(sec.Key("mode").MustString(string(model.ModeContinuous)))
	if err != nil {
		return simulation.Scenario{}, err
	}
	profile, err := model.ParseBeamProfile(sec.Key("profile").String())
	if err != nil {
		return simulation.Scenario{}, err
	}
	return simulation.Scenario{
		Name:     name,
		Material: sec.Key("material").MustString(material.Aluminum6061),
		Laser: model.LaserParameters{
			Power:          p.float(sec, "power", 0),
			Wavelength:     p.float(sec, "wavelength", 1064),
			BeamDiameter:   p.float(sec, "beam_diameter", 5),
			PulseDuration:  p.float(sec, "pulse_duration", 0),
			PulseFrequency: p.float(sec, "pulse_frequency", 0),
			Mode:           mode,
			Profile:        profile,
		},
		Plate: geometry.Plate{
			Length:    p.float(sec, "length", 10e-3),
			Width:     p.float(sec, "width", 10e-3),
			Thickness: p.float(sec, "thickness", 1e-3),
			NX:        p.integer(sec, "nx", 20),
			NY:        p.integer(sec, "ny", 20),
			NZ:        p.integer(sec, "nz", 10),
		},
		Duration: p.float(sec, "duration", duration),
		TimeStep: p.float(sec, "time_step", timeStep),
	}, nil
}

// EngineOptions are the client options for dialing the engine.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{HandshakeTimeout: c.Engine.HandshakeTimeout}
}

// Validate rejects configurations no run could use. Every error wraps
// model.ErrConfiguration.
func (c *Config) Validate() error {
	switch c.App.Mode {
	case ModeBatch, ModeEngine:
	default:
		return model.Configf("unknown app mode %q", c.App.Mode)
	}
	if c.Engine.MaxSessions < 1 {
		return model.Configf("engine max_sessions must be at least 1")
	}
	if c.Batch.Workers < 1 {
		return model.Configf("batch workers must be at least 1")
	}
	for _, v := range []interface{ Validate() error }{c.Simulation, c.Flight, c.Airframe, c.Damage, c.Assessment} {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	catalog := material.Default()
	seen := make(map[string]bool, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		if sc.Name == "" || seen[sc.Name] {
			return model.Configf("scenario names must be unique and non-empty, got %q", sc.Name)
		}
		seen[sc.Name] = true
		if _, err := catalog.Lookup(sc.Material); err != nil {
			return err
		}
		if err := laser.Validate(sc.Laser); err != nil {
			return err
		}
		if err := sc.Plate.Validate(); err != nil {
			return err
		}
		if !(sc.Duration > 0 && sc.TimeStep > 0) {
			return model.Configf("scenario %s needs a positive duration and time step", sc.Name)
		}
	}
	if c.App.Mode == ModeBatch && len(c.Scenarios) == 0 {
		return model.Configf("batch mode needs at least one [scenario ...] section")
	}
	return nil
}
