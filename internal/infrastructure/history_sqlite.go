package infrastructure

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// SQLiteHistoryRepository persists terminal download outcomes using SQLite.
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (and migrates) the history database.
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Create records a terminal download outcome.
func (r *SQLiteHistoryRepository) Create(record *domain.HistoryRecord) error {
	return r.db.Create(record).Error
}

// FindRecent returns the most recent records, newest first.
func (r *SQLiteHistoryRepository) FindRecent(limit int) ([]*domain.HistoryRecord, error) {
	var records []*domain.HistoryRecord
	err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetStats returns counts of recorded outcomes.
func (r *SQLiteHistoryRepository) GetStats() (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	if err := r.db.Model(&domain.HistoryRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&domain.HistoryRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch domain.ProgressStatus(sc.Status) {
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusError:
			stats.Failed = sc.Count
		}
	}
	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
