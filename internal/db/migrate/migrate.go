// Package migrate runs checksum-tracked migration steps and records them in schema_migrations.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/libreviews/revdal/internal/dal/model"
)

const idQueryPattern = "id = ?"

var (
	// ErrStepNotFound is returned when no record exists for a step id.
	ErrStepNotFound = errors.New("migration step not found")
	// ErrStepIDEmpty is returned for a step without an id.
	ErrStepIDEmpty = errors.New("migration step id cannot be empty")
	// ErrDuplicateStep is returned when two steps share an id.
	ErrDuplicateStep = errors.New("duplicate migration step")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Record is the bookkeeping row of an applied step.
type Record struct {
	ID        string    `gorm:"primaryKey;size:191"`
	Checksum  string    `gorm:"size:64;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (Record) TableName() string { return "schema_migrations" }

// Step is one unit of schema work. Up runs again whenever Checksum differs from the
// recorded one, so it must be safe to repeat.
type Step struct {
	ID       string
	Checksum string
	Up       func(ctx context.Context, db *gorm.DB) error
}

// TableStep returns the step keeping the table of def in line with its definition.
func TableStep(dialect string, def model.Definition) (Step, error) {
	sum, err := model.Checksum(dialect, def)
	if err != nil {
		return Step{}, err
	}

	return Step{
		ID:       "table:" + def.Table,
		Checksum: sum,
		Up: func(ctx context.Context, db *gorm.DB) error {
			return model.EnsureTable(ctx, db, def)
		},
	}, nil
}

// Get retrieves the record of a step.
func Get(db *gorm.DB, id string) (*Record, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if id == "" {
		return nil, ErrStepIDEmpty
	}

	var rec Record

	result := db.Where(idQueryPattern, id).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStepNotFound
		}

		return nil, result.Error
	}

	return &rec, nil
}

// GetAll returns every record ordered by id.
func GetAll(db *gorm.DB) ([]Record, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var recs []Record

	if result := db.Order("id").Find(&recs); result.Error != nil {
		return nil, result.Error
	}

	return recs, nil
}

// Set records step id with checksum (upsert operation).
func Set(db *gorm.DB, id, checksum string) (*Record, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if id == "" {
		return nil, ErrStepIDEmpty
	}

	rec := &Record{ID: id, Checksum: checksum, AppliedAt: db.NowFunc()}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"checksum", "applied_at"}),
	}).Create(rec)
	if result.Error != nil {
		return nil, result.Error
	}

	return rec, nil
}

// Run applies the steps whose checksum changed since they were last recorded, in order,
// and returns the ids it applied.
func Run(ctx context.Context, db *gorm.DB, steps []Step) ([]string, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	db = db.WithContext(ctx)

	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return nil, ErrStepIDEmpty
		}

		if seen[s.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, s.ID)
		}

		seen[s.ID] = true
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema_migrations: %w", err)
	}

	var applied []string

	for _, s := range steps {
		rec, err := Get(db, s.ID)

		switch {
		case err == nil && rec.Checksum == s.Checksum:
			log.Debug().Str("step", s.ID).Msg("migration step up to date")
			continue
		case err != nil && !errors.Is(err, ErrStepNotFound):
			return applied, err
		}

		log.Info().Str("step", s.ID).Str("checksum", s.Checksum).Msg("applying migration step")

		if err := s.Up(ctx, db); err != nil {
			return applied, fmt.Errorf("migration step %s: %w", s.ID, err)
		}

		if _, err := Set(db, s.ID, s.Checksum); err != nil {
			return applied, fmt.Errorf("recording migration step %s: %w", s.ID, err)
		}

		applied = append(applied, s.ID)
	}

	return applied, nil
}
