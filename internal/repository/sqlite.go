package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iwvelando/risk-forecast/internal/config"
	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/distribution"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// StoredRisk is a row of the risks table. Nil estimate points mark an
// incomplete estimate, which is counted but not analyzed.
type StoredRisk struct {
	ID          string
	Name        string
	P10         *float64
	P50         *float64
	P90         *float64
	Probability float64
	Shape       distribution.Shape
	CostOnly    bool
}

// SQLiteStore keeps risk registers and settings in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, dbPath: path, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("opened risk store",
		zap.String("op", "repository.NewSQLiteStore"),
		zap.String("path", path),
	)
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		project TEXT NOT NULL,
		revision TEXT NOT NULL,
		base REAL NOT NULL DEFAULT 0,
		iterations INTEGER NOT NULL,
		target_percentile INTEGER NOT NULL,
		seed INTEGER,
		histogram_bins INTEGER NOT NULL DEFAULT 0,
		curve_points INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project, revision)
	);

	CREATE TABLE IF NOT EXISTS risks (
		project TEXT NOT NULL,
		revision TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		p10 REAL,
		p50 REAL,
		p90 REAL,
		probability REAL NOT NULL,
		shape TEXT NOT NULL,
		cost_only INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project, revision, id)
	);
	CREATE INDEX IF NOT EXISTS idx_risks_revision ON risks(project, revision, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSettings inserts or replaces the settings of a revision. A nil seed is
// stored as NULL and resolved from the clock on every load.
func (s *SQLiteStore) SaveSettings(ctx context.Context, project, revision string, base float64, settings simulation.Settings, seed *uint64) error {
	var seedValue sql.NullInt64
	if seed != nil {
		seedValue = sql.NullInt64{Int64: int64(*seed), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings
			(project, revision, base, iterations, target_percentile, seed, histogram_bins, curve_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		project, revision, base, settings.Iterations, settings.TargetPercentile, seedValue,
		settings.HistogramBins, settings.CurvePoints,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings for %s/%s: %w", project, revision, err)
	}
	return nil
}

// SaveRisks replaces the register of a revision, preserving the given order.
func (s *SQLiteStore) SaveRisks(ctx context.Context, project, revision string, risks []StoredRisk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM risks WHERE project = ? AND revision = ?`, project, revision); err != nil {
		return fmt.Errorf("failed to clear risks for %s/%s: %w", project, revision, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risks
			(project, revision, position, id, name, p10, p50, p90, probability, shape, cost_only)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, risk := range risks {
		costOnly := 0
		if risk.CostOnly {
			costOnly = 1
		}
		if _, err := stmt.ExecContext(ctx, project, revision, i, risk.ID, risk.Name,
			nullFloat(risk.P10), nullFloat(risk.P50), nullFloat(risk.P90),
			risk.Probability, string(risk.Shape), costOnly); err != nil {
			return fmt.Errorf("failed to save risk %s: %w", risk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit risks for %s/%s: %w", project, revision, err)
	}
	s.logger.Info("saved risk register",
		zap.String("op", "repository.SaveRisks"),
		zap.String("project", project),
		zap.String("revision", revision),
		zap.Int("risks", len(risks)),
	)
	return nil
}

// Risks loads a revision's register in saved order.
func (s *SQLiteStore) Risks(ctx context.Context, project, revision string) (*Register, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, p10, p50, p90, probability, shape, cost_only
		FROM risks
		WHERE project = ? AND revision = ?
		ORDER BY position`, project, revision)
	if err != nil {
		return nil, fmt.Errorf("failed to query risks: %w", err)
	}
	defer rows.Close()

	register := &Register{Risks: []simulation.RiskInput{}}
	for rows.Next() {
		var (
			id, name, shape string
			p10, p50, p90   sql.NullFloat64
			probability     float64
			costOnly        int
		)
		if err := rows.Scan(&id, &name, &p10, &p50, &p90, &probability, &shape, &costOnly); err != nil {
			return nil, fmt.Errorf("failed to scan risk: %w", err)
		}
		register.Total++
		if !p10.Valid || !p50.Valid || !p90.Valid {
			continue
		}
		register.Risks = append(register.Risks, simulation.RiskInput{
			ID:   id,
			Name: name,
			Estimate: distribution.Estimate{
				P10:   p10.Float64,
				P50:   p50.Float64,
				P90:   p90.Float64,
				Shape: distribution.Shape(shape),
			},
			Probability: probability,
			CostOnly:    costOnly != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read risks: %w", err)
	}

	rows.Close()

	if register.Total == 0 {
		if _, err := s.Settings(ctx, project, revision); err != nil {
			return nil, err
		}
	}
	return register, nil
}

// Settings loads a revision's settings.
func (s *SQLiteStore) Settings(ctx context.Context, project, revision string) (*RevisionSettings, error) {
	var (
		stored RevisionSettings
		seed   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT base, iterations, target_percentile, seed, histogram_bins, curve_points
		FROM settings
		WHERE project = ? AND revision = ?`, project, revision).Scan(
		&stored.Base,
		&stored.Settings.Iterations,
		&stored.Settings.TargetPercentile,
		&seed,
		&stored.Settings.HistogramBins,
		&stored.Settings.CurvePoints,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for %s/%s: %w", project, revision, err)
	}

	if seed.Valid {
		stored.Settings.Seed = uint64(seed.Int64)
	} else {
		stored.Settings.Seed = simulation.ClockSeed()
	}
	return &stored, nil
}

// Import stores the project revision of conf, replacing whatever was saved
// under the same key.
func (s *SQLiteStore) Import(ctx context.Context, conf *config.Configuration) error {
	project, revision := conf.Project.Name, conf.Project.Revision
	if project == "" || revision == "" {
		return fmt.Errorf("configuration needs project.name and project.revision to be imported")
	}

	risks := make([]StoredRisk, 0, len(conf.Risks))
	for _, risk := range conf.Risks {
		stored := StoredRisk{
			ID:          risk.ID,
			Name:        risk.Name,
			P10:         risk.P10,
			P50:         risk.P50,
			P90:         risk.P90,
			Probability: risk.Probability,
			Shape:       risk.ShapeName(),
			CostOnly:    risk.CostOnly,
		}
		risks = append(risks, stored)
	}

	settings := conf.Settings()
	if err := s.SaveSettings(ctx, project, revision, conf.Project.Base, settings, conf.Simulation.Seed); err != nil {
		return err
	}
	return s.SaveRisks(ctx, project, revision, risks)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
