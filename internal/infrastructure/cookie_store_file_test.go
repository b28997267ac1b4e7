package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCookieFile = `# Netscape HTTP Cookie File
# https://curl.se/docs/http-cookies.html

.youtube.com	TRUE	/	TRUE	1999999999	SID	session-value
youtube.com	FALSE	/	TRUE	1999999999	YSC	short-value
#HttpOnly_.youtube.com	TRUE	/	TRUE	1999999999	HSID	hidden-value
.twitter.com	TRUE	/	TRUE	1999999999	auth_token	tok

malformed line without tabs
.x.com	TRUE	/	TRUE	1999999999	ct0	csrf
`

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFileCookieStore_Available(t *testing.T) {
	path := writeCookieFile(t, sampleCookieFile)

	assert.True(t, NewFileCookieStore(path, zap.NewNop()).Available())
	assert.False(t, NewFileCookieStore(filepath.Join(t.TempDir(), "missing.txt"), zap.NewNop()).Available())
	assert.False(t, NewFileCookieStore(t.TempDir(), zap.NewNop()).Available(), "a directory is not a cookie file")
}

func TestFileCookieStore_ExactDomainMatch(t *testing.T) {
	store := NewFileCookieStore(writeCookieFile(t, sampleCookieFile), zap.NewNop())
	ctx := context.Background()

	dotted, err := store.Cookies(ctx, ".youtube.com")
	require.NoError(t, err)
	require.Len(t, dotted, 2)
	assert.Equal(t, "SID", dotted[0].Name)
	assert.Equal(t, "session-value", dotted[0].Value)
	assert.Equal(t, "HSID", dotted[1].Name, "HttpOnly-prefixed entries are real cookies")

	bare, err := store.Cookies(ctx, "youtube.com")
	require.NoError(t, err)
	require.Len(t, bare, 1)
	assert.Equal(t, "YSC", bare[0].Name)

	none, err := store.Cookies(ctx, "instagram.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileCookieStore_MissingFileIsAnError(t *testing.T) {
	store := NewFileCookieStore(filepath.Join(t.TempDir(), "missing.txt"), zap.NewNop())
	_, err := store.Cookies(context.Background(), "youtube.com")
	assert.ErrorContains(t, err, "not readable")
}

func TestFileCookieStore_ReloadsOnChange(t *testing.T) {
	path := writeCookieFile(t, ".x.com\tTRUE\t/\tTRUE\t1999999999\tct0\told\n")
	store := NewFileCookieStore(path, zap.NewNop())
	ctx := context.Background()

	got, err := store.Cookies(ctx, ".x.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].Value)

	// rewrite with a new mtime
	require.NoError(t, os.WriteFile(path, []byte(".x.com\tTRUE\t/\tTRUE\t1999999999\tct0\tnew\n"), 0600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	got, err = store.Cookies(ctx, ".x.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Value)
}

func TestFileCookieStore_CancelledContext(t *testing.T) {
	store := NewFileCookieStore(writeCookieFile(t, sampleCookieFile), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Cookies(ctx, "youtube.com")
	assert.ErrorIs(t, err, context.Canceled)
}
