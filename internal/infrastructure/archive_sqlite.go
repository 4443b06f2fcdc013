package infrastructure

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// RunRecord is one archived bulk run.
type RunRecord struct {
	ID         string    `gorm:"primaryKey" json:"run_id"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Cancelled  bool      `json:"cancelled"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
}

// FailedLink is one URL that exhausted every backend during a run.
type FailedLink struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID      string `gorm:"index" json:"run_id"`
	URL        string `json:"url"`
	Source     string `json:"source,omitempty"`
	Diagnostic string `json:"diagnostic"`
}

// RunArchive keeps finished run summaries in SQLite so past runs stay
// inspectable from the CLI and the API. Bulk only; single mode writes
// nothing anywhere.
type RunArchive struct {
	db *gorm.DB
}

// NewRunArchive opens (or creates) the archive database.
func NewRunArchive(dbPath string) (*RunArchive, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&RunRecord{}, &FailedLink{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &RunArchive{db: db}, nil
}

// SaveRun archives one finished run with its failed links.
func (a *RunArchive) SaveRun(s *domain.RunSummary) error {
	record := &RunRecord{
		ID:         s.RunID,
		Mode:       string(s.Mode),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Total:      s.Total,
		Downloaded: s.Downloaded,
		Skipped:    s.Skipped,
		Failed:     len(s.Failed),
		Cancelled:  s.Cancelled,
		Success:    s.Success,
		Message:    s.Message,
	}

	return a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		for _, f := range s.Failed {
			link := &FailedLink{
				RunID:      s.RunID,
				URL:        f.URL,
				Source:     f.Source,
				Diagnostic: f.Diagnostic,
			}
			if err := tx.Create(link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentRuns returns the newest archived runs, most recent first.
func (a *RunArchive) RecentRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*RunRecord
	err := a.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// FindRun returns one archived run by id, or nil when unknown.
func (a *RunArchive) FindRun(runID string) (*RunRecord, error) {
	var run RunRecord
	err := a.db.First(&run, "id = ?", runID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// FailedLinks lists the failures archived for one run.
func (a *RunArchive) FailedLinks(runID string) ([]*FailedLink, error) {
	var links []*FailedLink
	err := a.db.Where("run_id = ?", runID).Order("id ASC").Find(&links).Error
	return links, err
}

// Count returns the total number of archived runs.
func (a *RunArchive) Count() (int64, error) {
	var count int64
	err := a.db.Model(&RunRecord{}).Count(&count).Error
	return count, err
}

// Close closes the database connection
func (a *RunArchive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
