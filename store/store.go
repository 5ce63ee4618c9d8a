package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"laserdamage/model"
)

type StorageType string

const (
	StorageNone     StorageType = "none"
	StorageMemory   StorageType = "memory"
	StorageSQLite   StorageType = "sqlite"
	StoragePostgres StorageType = "postgres"
)

func ParseStorageType(s string) (StorageType, error) {
	switch t := StorageType(strings.ToLower(strings.TrimSpace(s))); t {
	case StorageNone, StorageMemory, StorageSQLite, StoragePostgres:
		return t, nil
	case "":
		return StorageNone, nil
	default:
		return "", model.Configf("unknown storage type %q", s)
	}
}

type Config struct {
	Type StorageType
	// sqlite 文件路径
	Path string
	// postgres 连接参数
	DSN string
}

var ErrNotFound = errors.New("run not found")

// RunRecord is one persisted run: summary columns for listing plus the full
// result as JSON.
type RunRecord struct {
	ID              uint      `gorm:"primarykey" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	RunID           string    `gorm:"uniqueIndex;size:36" json:"run_id"`
	Scenario        string    `gorm:"index;size:128" json:"scenario"`
	SolverMode      string    `gorm:"size:32" json:"solver_mode"`
	Severity        string    `gorm:"size:16" json:"severity"`
	Termination     string    `gorm:"size:32" json:"termination"`
	FailureKind     string    `gorm:"size:32" json:"failure_kind"`
	PeakTemperature float64   `json:"peak_temperature"`
	DamageVolume    float64   `json:"damage_volume"`

	Payload datatypes.JSON `json:"-"`
}

type Store struct {
	db *gorm.DB
}

var gormConfig = &gorm.Config{
	SkipDefaultTransaction: true,
	Logger:                 logger.Default.LogMode(logger.Silent),
}

// Open connects to the configured backend and migrates the schema.
// StorageMemory gets a private in-memory sqlite database.
func Open(cfg Config) (*Store, error) {
	var (
		dialector gorm.Dialector
		sqliteDB  bool
	)
	switch cfg.Type {
	case StorageMemory:
		dialector = sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
		sqliteDB = true
	case StorageSQLite:
		if cfg.Path == "" {
			return nil, model.Configf("sqlite storage needs a path")
		}
		dialector = sqlite.Open(cfg.Path)
		sqliteDB = true
	case StoragePostgres:
		if cfg.DSN == "" {
			return nil, model.Configf("postgres storage needs a dsn")
		}
		dialector = postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
	default:
		return nil, model.Configf("storage type %q cannot be opened", cfg.Type)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Type)
	}
	if sqliteDB {
		// sqlite 单写，同时保证内存库在连接池中常驻
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate store")
	}
	log.WithField("type", cfg.Type).Info("result store opened")
	return &Store{db: db}, nil
}

func record(r *model.SimulationResult, payload []byte) *RunRecord {
	rec := &RunRecord{
		RunID:       r.RunID,
		Scenario:    r.Scenario.Name,
		SolverMode:  string(r.SolverMode),
		Termination: string(r.Termination),
		Payload:     datatypes.JSON(payload),
	}
	if r.Assessment != nil {
		rec.Severity = r.Assessment.Severity.String()
	}
	if r.Failure != nil {
		rec.FailureKind = r.Failure.Kind
	}
	if r.Damage != nil {
		rec.PeakTemperature = r.Damage.PeakTemperature
		rec.DamageVolume = r.Damage.DamageVolume
	}
	return rec
}

// Save writes one row per run.
func (s *Store) Save(ctx context.Context, r *model.SimulationResult) error {
	if r.RunID == "" {
		return errors.Wrap(model.ErrDataInconsistency, "result has no run id")
	}
	payload, err := Encode(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(record(r, payload)).Error; err != nil {
		return errors.Wrapf(err, "save run %s", r.RunID)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (*model.SimulationResult, error) {
	var rec RunRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load run %s", runID)
	}
	return Decode(rec.Payload)
}

// List returns run summaries, newest first, optionally filtered by scenario.
func (s *Store) List(ctx context.Context, scenario string) ([]RunRecord, error) {
	q := s.db.WithContext(ctx).Omit("payload").Order("id desc")
	if scenario != "" {
		q = q.Where("scenario = ?", scenario)
	}
	var out []RunRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
