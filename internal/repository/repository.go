// Package repository serves risk registers and run settings by project
// revision.
package repository

import (
	"context"
	"errors"

	"github.com/iwvelando/risk-forecast/internal/config"
	"github.com/iwvelando/risk-forecast/internal/simulation"
)

// ErrNotFound is returned when a project revision is unknown to the store.
var ErrNotFound = errors.New("project revision not found")

// Register is the analyzable slice of a revision's risk register.
type Register struct {
	Risks []simulation.RiskInput
	// Total counts every risk in the register, including those excluded for
	// incomplete estimates.
	Total int
}

// RevisionSettings are the stored run settings of a revision.
type RevisionSettings struct {
	Base     float64
	Settings simulation.Settings
}

// RiskRepository loads the risk register of a project revision.
type RiskRepository interface {
	Risks(ctx context.Context, project, revision string) (*Register, error)
}

// SettingsStore loads the run settings of a project revision.
type SettingsStore interface {
	Settings(ctx context.Context, project, revision string) (*RevisionSettings, error)
}

// Source is a RiskRepository that also stores settings.
type Source interface {
	RiskRepository
	SettingsStore
}

// Request builds an engine request for a project revision from src.
func Request(ctx context.Context, src Source, project, revision string) (simulation.Request, error) {
	register, err := src.Risks(ctx, project, revision)
	if err != nil {
		return simulation.Request{}, err
	}
	stored, err := src.Settings(ctx, project, revision)
	if err != nil {
		return simulation.Request{}, err
	}
	return simulation.Request{
		Risks:      register.Risks,
		Settings:   stored.Settings,
		Base:       stored.Base,
		TotalRisks: register.Total,
	}, nil
}

// ConfigRepository serves the single project revision of a loaded
// configuration.
type ConfigRepository struct {
	conf *config.Configuration
}

// NewConfigRepository wraps conf.
func NewConfigRepository(conf *config.Configuration) *ConfigRepository {
	return &ConfigRepository{conf: conf}
}

func (r *ConfigRepository) matches(project, revision string) bool {
	return r.conf != nil && r.conf.Project.Name == project && r.conf.Project.Revision == revision
}

// Risks returns the configured register when project and revision match.
func (r *ConfigRepository) Risks(_ context.Context, project, revision string) (*Register, error) {
	if !r.matches(project, revision) {
		return nil, ErrNotFound
	}
	risks, total := r.conf.RiskInputs()
	return &Register{Risks: risks, Total: total}, nil
}

// Settings returns the configured settings when project and revision match.
func (r *ConfigRepository) Settings(_ context.Context, project, revision string) (*RevisionSettings, error) {
	if !r.matches(project, revision) {
		return nil, ErrNotFound
	}
	return &RevisionSettings{Base: r.conf.Project.Base, Settings: r.conf.Settings()}, nil
}
