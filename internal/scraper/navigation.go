package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	loginURLMarkers = []string{"/login", "/flow/login", "/i/flow/login"}

	mediaIndicators = []string{
		`li[role="listitem"]`,
		`[data-testid="cellInnerDiv"]`,
		`div[style*="calc(33.3333%"]`,
		`a[href*="/video/"]`,
		`a[href*="/photo/"]`,
	}

	loggedInIndicators = []string{
		`[data-testid="SideNav_AccountSwitcher_Button"]`,
		`[data-testid="AppTabBar_Home_Link"]`,
	}

	usernameInputs = []string{`input[name="text"]`, `input[autocomplete="username"]`}
	passwordInputs = []string{`input[name="password"]`, `input[autocomplete="current-password"]`, `input[type="password"]`}

	nextLabels  = []string{"Next", "次へ"}
	loginLabels = []string{"Log in", "Login", "ログイン"}
)

const minMediaPageText = 500

type NavigatorOptions struct {
	BaseURL         string
	WaitAfterLoad   time.Duration
	ElementTimeout  time.Duration
	ManualLoginWait time.Duration
	Headless        bool
	Username        string
	Password        string
}

type strategy struct {
	name string
	run  func(ctx context.Context, username string) (bool, error)
}

// Navigator brings a session to a user's media page, logging in if needed.
type Navigator struct {
	session Session
	opts    NavigatorOptions
	logger  *logrus.Logger

	// LoggedIn is set once a login strategy succeeded, so fresh cookies can
	// be saved.
	LoggedIn bool
}

func NewNavigator(session Session, opts NavigatorOptions, logger *logrus.Logger) *Navigator {
	return &Navigator{session: session, opts: opts, logger: logger}
}

// ToMedia tries each navigation strategy in turn and returns
// ErrSessionRejected when none reaches a loaded media page.
func (n *Navigator) ToMedia(ctx context.Context, username string) error {
	strategies := []strategy{
		{"Direct media page access", n.directMedia},
		{"Home page then media", n.homeThenMedia},
		{"Automatic login", n.autoLogin},
		{"Manual login with auto-detection", n.manualLogin},
	}

	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.logger.Infof("Trying navigation strategy %d/%d: %s", i+1, len(strategies), s.name)
		ok, err := s.run(ctx, username)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.Warnf("Strategy %d failed: %v", i+1, err)
			continue
		}
		if ok {
			return nil
		}
	}

	n.logger.Error("All navigation strategies failed")
	return ErrSessionRejected
}

func (n *Navigator) directMedia(ctx context.Context, username string) (bool, error) {
	return n.openMedia(ctx, username)
}

func (n *Navigator) homeThenMedia(ctx context.Context, username string) (bool, error) {
	if err := n.session.Navigate(ctx, n.opts.BaseURL); err != nil {
		return false, err
	}
	if err := n.session.Wait(ctx, 5*time.Second); err != nil {
		return false, err
	}
	return n.openMedia(ctx, username)
}

func (n *Navigator) autoLogin(ctx context.Context, username string) (bool, error) {
	if n.opts.Username == "" || n.opts.Password == "" {
		n.logger.Info("Credentials not configured, skipping automatic login")
		return false, nil
	}

	if err := n.session.Navigate(ctx, n.opts.BaseURL+"/login"); err != nil {
		return false, err
	}
	if err := n.session.Wait(ctx, 3*time.Second); err != nil {
		return false, err
	}

	n.logger.Info("Step 1: Entering username...")
	if err := n.fillFirst(ctx, usernameInputs, n.opts.Username); err != nil {
		return false, err
	}
	if err := n.session.ClickButton(ctx, nextLabels); err != nil {
		return false, err
	}
	if err := n.session.Wait(ctx, 3*time.Second); err != nil {
		return false, err
	}

	n.logger.Info("Step 2: Entering password...")
	if err := n.fillFirst(ctx, passwordInputs, n.opts.Password); err != nil {
		return false, err
	}
	if err := n.session.ClickButton(ctx, loginLabels); err != nil {
		return false, err
	}
	if err := n.session.Wait(ctx, 5*time.Second); err != nil {
		return false, err
	}

	loggedIn, err := n.VerifyLogin(ctx)
	if err != nil {
		return false, err
	}
	if !loggedIn {
		n.logger.Error("Automatic login failed")
		return false, nil
	}

	n.logger.Info("Automatic login successful! Navigating to media page...")
	n.LoggedIn = true
	return n.openMedia(ctx, username)
}

func (n *Navigator) manualLogin(ctx context.Context, username string) (bool, error) {
	if n.opts.Headless {
		n.logger.Info("Headless browser, skipping manual login")
		return false, nil
	}

	if err := n.session.Navigate(ctx, n.opts.BaseURL+"/login"); err != nil {
		return false, err
	}

	n.logger.Warn("MANUAL LOGIN REQUIRED: log in in the opened browser window; the page is watched for completion")
	n.logger.Infof("Waiting for login completion (max %s)...", n.opts.ManualLoginWait)

	start := time.Now()
	lastReport := start
	for time.Since(start) < n.opts.ManualLoginWait {
		current, err := n.session.CurrentURL(ctx)
		if err == nil && !isLoginURL(current) {
			n.logger.Infof("Login detected! Current URL: %s", current)
			n.LoggedIn = true
			return n.openMedia(ctx, username)
		}
		if err := n.session.Wait(ctx, 2*time.Second); err != nil {
			return false, err
		}
		if time.Since(lastReport) >= 30*time.Second {
			lastReport = time.Now()
			n.logger.Infof("Still waiting for login... (%ds elapsed)", int(time.Since(start).Seconds()))
		}
	}

	n.logger.Warn("Login detection timeout")
	return false, nil
}

func (n *Navigator) openMedia(ctx context.Context, username string) (bool, error) {
	if err := n.session.Navigate(ctx, MediaURL(n.opts.BaseURL, username)); err != nil {
		return false, err
	}
	return n.VerifyMediaPage(ctx)
}

func (n *Navigator) fillFirst(ctx context.Context, selectors []string, text string) error {
	for _, selector := range selectors {
		if err := n.session.WaitFor(ctx, selector, n.opts.ElementTimeout); err != nil {
			continue
		}
		return n.session.Type(ctx, selector, text)
	}
	return fmt.Errorf("%w: %v", ErrElementNotFound, selectors)
}

// VerifyLogin reports whether the session looks logged in.
func (n *Navigator) VerifyLogin(ctx context.Context) (bool, error) {
	current, err := n.session.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if isLoginURL(current) {
		return false, nil
	}
	if strings.Contains(current, "/home") {
		return true, nil
	}
	for _, selector := range loggedInIndicators {
		if found, _ := n.session.Exists(ctx, selector); found {
			return true, nil
		}
	}
	return false, nil
}

// VerifyMediaPage reports whether the session shows a rendered media grid.
// It does not wait for the first batch of posts; the collector does.
func (n *Navigator) VerifyMediaPage(ctx context.Context) (bool, error) {
	current, err := n.session.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if !strings.Contains(current, "/media") {
		n.logger.Warnf("Not on media page. Current URL: %s", current)
		return false, nil
	}

	deadline := time.Now().Add(n.opts.WaitAfterLoad)
	for {
		for _, indicator := range mediaIndicators {
			found, err := n.session.Exists(ctx, indicator)
			if err == nil && found {
				n.logger.Infof("Media page verified with selector: %s", indicator)
				return true, nil
			}
		}
		if !time.Now().Before(deadline) {
			break
		}
		if err := n.session.Wait(ctx, time.Second); err != nil {
			return false, err
		}
	}

	// A grid that renders under unfamiliar markup still fills the page.
	if text, err := n.session.BodyText(ctx); err == nil && len(text) > minMediaPageText {
		n.logger.Info("Media page has content, proceeding...")
		return true, nil
	}

	n.logger.Warn("Could not verify media page loaded properly")
	return false, nil
}

func isLoginURL(url string) bool {
	for _, marker := range loginURLMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}
