package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryRecord is the persisted terminal outcome of one download request.
// Cookie values are never part of the record.
type HistoryRecord struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	URL          string     `json:"url" gorm:"not null"`
	Platform     PlatformID `json:"platform" gorm:"not null;index"`
	Format       Format     `json:"format"`
	Quality      Quality    `json:"quality"`
	Status       string     `json:"status" gorm:"not null;index"` // completed or error
	Filename     string     `json:"filename,omitempty"`
	Size         int64      `json:"size,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// NewHistoryRecord builds a record from a request and its terminal event.
func NewHistoryRecord(req *DownloadRequest, ev DownloadProgressEvent) *HistoryRecord {
	rec := &HistoryRecord{
		ID:       uuid.New().String(),
		URL:      req.URL,
		Platform: req.Platform,
		Format:   req.Format,
		Quality:  req.Quality,
		Status:   string(ev.Status),
		Filename: ev.Filename,
		Size:     ev.Size,
	}
	if ev.Err != nil {
		rec.ErrorMessage = ev.Err.Error()
	}
	return rec
}

// HistoryStats summarizes recorded outcomes.
type HistoryStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// HistoryRepository persists terminal download outcomes.
type HistoryRepository interface {
	Create(record *HistoryRecord) error
	FindRecent(limit int) ([]*HistoryRecord, error)
	GetStats() (*HistoryStats, error)
	Close() error
}

// TabProvider reports the page the user is currently looking at. The
// background context queries it to answer getCurrentTab requests.
type TabProvider interface {
	CurrentTab() (*TabInfo, error)
}
