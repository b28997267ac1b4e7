package infrastructure

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// FileCookieStore reads session cookies from a Netscape-format cookies.txt
// file, the format browser exporters produce. Cookies are read live on each
// query and never written back.
type FileCookieStore struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	loaded  []domain.CookieEntry
	modTime time.Time
}

// NewFileCookieStore creates a store backed by the given cookies.txt path.
func NewFileCookieStore(path string, logger *zap.Logger) *FileCookieStore {
	return &FileCookieStore{path: path, logger: logger}
}

// Available reports whether the cookie file can be read.
func (s *FileCookieStore) Available() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Cookies returns the cookies stored for exactly the given domain. The bare
// and dot-prefixed forms are distinct entries in the file, matching how
// browser cookie stores index them.
func (s *FileCookieStore) Cookies(ctx context.Context, dom string) ([]domain.CookieEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.CookieEntry
	for _, c := range s.loaded {
		if c.Domain == dom {
			result = append(result, c)
		}
	}
	return result, nil
}

// refresh reloads the file when it changed on disk.
func (s *FileCookieStore) refresh() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("cookie file not readable: %w", err)
	}

	s.mu.Lock()
	upToDate := info.ModTime().Equal(s.modTime) && s.loaded != nil
	s.mu.Unlock()
	if upToDate {
		return nil
	}

	entries, err := parseNetscapeCookies(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = entries
	s.modTime = info.ModTime()
	s.mu.Unlock()

	s.logger.Debug("Reloaded cookie file",
		zap.String("path", s.path),
		zap.Int("cookies", len(entries)))
	return nil
}

// parseNetscapeCookies reads a Netscape cookies.txt file:
// domain <TAB> include-subdomains <TAB> path <TAB> secure <TAB> expires <TAB> name <TAB> value
func parseNetscapeCookies(path string) ([]domain.CookieEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer f.Close()

	var entries []domain.CookieEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// curl marks HttpOnly cookies with a prefix on the comment char
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		entries = append(entries, domain.CookieEntry{
			Domain: fields[0],
			Name:   fields[5],
			Value:  fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return entries, nil
}
