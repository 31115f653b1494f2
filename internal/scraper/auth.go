// internal/scraper/auth.go
package scraper

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HttpOnly bool   `json:"httpOnly"`
	Expires  string `json:"expires,omitempty"`
}

// The session is only usable with both of these present.
var requiredCookies = []string{"auth_token", "ct0"}

var cookieDomains = []string{"x.com", "twitter.com"}

// AuthManager loads and stores the cookie file shared with yt-dlp. Both the
// Netscape cookies.txt format and a JSON map of domain to cookies are read;
// writes are always Netscape.
type AuthManager struct {
	cookiesFile string
	cookies     []Cookie
	logger      *logrus.Logger
}

func NewAuthManager(cookiesFile string, logger *logrus.Logger) *AuthManager {
	return &AuthManager{
		cookiesFile: cookiesFile,
		logger:      logger,
	}
}

func (am *AuthManager) CookiesFile() string {
	return am.cookiesFile
}

func (am *AuthManager) Cookies() []Cookie {
	return am.cookies
}

func (am *AuthManager) LoadCookies() ([]Cookie, error) {
	am.logger.Info("Loading cookies from file...")

	data, err := os.ReadFile(am.cookiesFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cookies file not found: %s", am.cookiesFile)
		}
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	var cookies []Cookie
	if len(trimmed) > 0 && trimmed[0] == '{' {
		cookies, err = parseJSONCookies(trimmed)
	} else {
		cookies, err = parseNetscapeCookies(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse cookies file: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no X cookies found in cookies file")
	}

	am.cookies = cookies
	am.logger.Infof("Loaded %d cookies for X", len(cookies))
	return cookies, nil
}

func (am *AuthManager) ValidateCookieFormat() error {
	byName := make(map[string]Cookie)
	for _, cookie := range am.cookies {
		byName[cookie.Name] = cookie
	}

	for _, required := range requiredCookies {
		cookie, exists := byName[required]
		if !exists {
			return fmt.Errorf("missing required cookie: %s", required)
		}
		if cookie.Value == "" {
			return fmt.Errorf("empty value for required cookie: %s", required)
		}
	}

	am.logger.Info("Cookie format validation passed")
	return nil
}

// SaveCookies writes cookies to the cookie file in Netscape format so the
// download stage can reuse the browser session.
func (am *AuthManager) SaveCookies(cookies []Cookie) error {
	am.logger.Info("Saving current cookies...")

	var buf bytes.Buffer
	buf.WriteString("# Netscape HTTP Cookie File\n")
	saved := 0
	for _, cookie := range cookies {
		if !isXDomain(cookie.Domain) {
			continue
		}
		domain := cookie.Domain
		if !strings.HasPrefix(domain, ".") {
			domain = "." + domain
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		expires := int64(0)
		if cookie.Expires != "" {
			if t, err := time.Parse(time.RFC3339, cookie.Expires); err == nil {
				expires = t.Unix()
			}
		}
		if cookie.HttpOnly {
			domain = "#HttpOnly_" + domain
		}
		fmt.Fprintf(&buf, "%s\tTRUE\t%s\t%s\t%d\t%s\t%s\n",
			domain, path, strings.ToUpper(strconv.FormatBool(cookie.Secure)), expires, cookie.Name, cookie.Value)
		saved++
	}

	if dir := filepath.Dir(am.cookiesFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create cookies directory: %w", err)
		}
	}
	if err := os.WriteFile(am.cookiesFile, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}

	am.cookies = cookies
	am.logger.Infof("Saved %d cookies to file", saved)
	return nil
}

func parseJSONCookies(data []byte) ([]Cookie, error) {
	var store map[string][]Cookie
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, err
	}

	var cookies []Cookie
	for _, domain := range cookieDomains {
		for _, cookie := range store[domain] {
			if cookie.Domain == "" {
				cookie.Domain = "." + domain
			}
			if cookie.Path == "" {
				cookie.Path = "/"
			}
			cookies = append(cookies, cookie)
		}
	}
	return cookies, nil
}

// parseNetscapeCookies reads the cookies.txt format: domain, include
// subdomains, path, secure, expiry, name, value separated by tabs.
func parseNetscapeCookies(data []byte) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		if !isXDomain(fields[0]) {
			continue
		}

		cookie := Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if expiry, err := strconv.ParseFloat(fields[4], 64); err == nil {
			cookie.Expires = unixExpiry(expiry)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, scanner.Err()
}

func isXDomain(domain string) bool {
	domain = strings.TrimPrefix(domain, ".")
	for _, d := range cookieDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// unixExpiry converts a unix expiry to RFC3339; zero or negative means a
// session cookie.
func unixExpiry(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
}

// ExtractCookiesFromBrowser prints instructions for exporting cookies.
func ExtractCookiesFromBrowser() {
	fmt.Println(`
To extract cookies from your browser:

1. Open x.com in your browser and log in
2. Export cookies for x.com in Netscape format (cookies.txt),
   for example with a "Get cookies.txt" browser extension
3. Save the file as twitter_cookies.txt (or set COOKIES_FILE)

Required cookies:
- auth_token: Session token
- ct0: CSRF token

The same file is passed to yt-dlp by the downloader.`)
}
