package infrastructure

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// FileTabProvider reads the active page from a small JSON state file kept up
// to date by the browser side ({"url": "...", "title": "..."}).
type FileTabProvider struct {
	path string
}

// NewFileTabProvider creates a tab provider backed by the given state file.
func NewFileTabProvider(path string) *FileTabProvider {
	return &FileTabProvider{path: path}
}

// CurrentTab returns the active page, or an error when no page is being
// tracked.
func (p *FileTabProvider) CurrentTab() (*domain.TabInfo, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("no active tab available: %w", err)
	}

	var tab domain.TabInfo
	if err := json.Unmarshal(data, &tab); err != nil {
		return nil, fmt.Errorf("invalid tab state file: %w", err)
	}
	if tab.URL == "" {
		return nil, fmt.Errorf("no active tab recorded")
	}
	return &tab, nil
}
