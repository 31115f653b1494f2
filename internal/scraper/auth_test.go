package scraper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netscapeCookies = "# Netscape HTTP Cookie File\n" +
	"# This is a generated file\n" +
	".x.com\tTRUE\t/\tTRUE\t1893456000\tauth_token\tabc123\n" +
	"#HttpOnly_.x.com\tTRUE\t/\tTRUE\t1893456000\tct0\tcsrf456\n" +
	".google.com\tTRUE\t/\tFALSE\t0\tNID\tignored\n" +
	"malformed line\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadNetscapeCookies(t *testing.T) {
	am := NewAuthManager(writeFile(t, "cookies.txt", netscapeCookies), testLogger())

	cookies, err := am.LoadCookies()
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.Equal(t, "abc123", cookies[0].Value)
	assert.Equal(t, ".x.com", cookies[0].Domain)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, "2030-01-01T00:00:00Z", cookies[0].Expires)

	assert.Equal(t, "ct0", cookies[1].Name)
	assert.True(t, cookies[1].HttpOnly)

	assert.NoError(t, am.ValidateCookieFormat())
}

func TestLoadJSONCookies(t *testing.T) {
	content := `{
  "x.com": [{"name": "auth_token", "value": "a"}, {"name": "ct0", "value": "b", "path": "/i"}],
  "twitter.com": [{"name": "guest_id", "value": "g"}],
  "example.com": [{"name": "other", "value": "o"}]
}`
	am := NewAuthManager(writeFile(t, "cookies.json", content), testLogger())

	cookies, err := am.LoadCookies()
	require.NoError(t, err)
	require.Len(t, cookies, 3)
	assert.Equal(t, ".x.com", cookies[0].Domain)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Equal(t, "/i", cookies[1].Path)
	assert.Equal(t, ".twitter.com", cookies[2].Domain)
}

func TestLoadCookiesErrors(t *testing.T) {
	_, err := NewAuthManager(filepath.Join(t.TempDir(), "missing.txt"), testLogger()).LoadCookies()
	assert.ErrorContains(t, err, "cookies file not found")

	_, err = NewAuthManager(writeFile(t, "c.txt", "# only comments\n"), testLogger()).LoadCookies()
	assert.ErrorContains(t, err, "no X cookies")
}

func TestValidateCookieFormat(t *testing.T) {
	am := NewAuthManager(writeFile(t, "c.txt", ".x.com\tTRUE\t/\tTRUE\t0\tauth_token\tabc\n"), testLogger())
	_, err := am.LoadCookies()
	require.NoError(t, err)

	assert.ErrorContains(t, am.ValidateCookieFormat(), "missing required cookie: ct0")
}

func TestSaveCookiesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.txt")
	am := NewAuthManager(path, testLogger())

	err := am.SaveCookies([]Cookie{
		{Name: "auth_token", Value: "tok", Domain: "x.com", Secure: true, HttpOnly: true, Expires: "2030-01-01T00:00:00Z"},
		{Name: "ct0", Value: "csrf", Domain: ".x.com", Path: "/"},
		{Name: "tracker", Value: "t", Domain: ".ads.example.com"},
	})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := NewAuthManager(path, testLogger()).LoadCookies()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "auth_token", loaded[0].Name)
	assert.Equal(t, ".x.com", loaded[0].Domain)
	assert.Equal(t, "/", loaded[0].Path)
	assert.True(t, loaded[0].Secure)
	assert.True(t, loaded[0].HttpOnly)
	assert.Equal(t, "2030-01-01T00:00:00Z", loaded[0].Expires)

	assert.Equal(t, "ct0", loaded[1].Name)
	assert.False(t, loaded[1].Secure)
	assert.Empty(t, loaded[1].Expires)
}

func TestIsXDomain(t *testing.T) {
	assert.True(t, isXDomain(".x.com"))
	assert.True(t, isXDomain("api.twitter.com"))
	assert.False(t, isXDomain("notx.com"))
	assert.False(t, isXDomain("example.com"))
}
