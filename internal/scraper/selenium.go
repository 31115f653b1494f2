package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
	"x-media-scraper/internal/config"
)

// SeleniumSession drives Firefox through geckodriver. It is the fallback when
// no Chrome binary is installed.
type SeleniumSession struct {
	driver  selenium.WebDriver
	service *selenium.Service
	timeout time.Duration
	logger  *logrus.Logger
}

func NewSeleniumSession(cfg *config.Config, logger *logrus.Logger) (*SeleniumSession, error) {
	firefoxCaps := selenium.Capabilities{
		"browserName": "firefox",
	}

	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--width=1920",
		"--height=1080",
	}
	if cfg.Scraper.Headless {
		args = append(args, "--headless")
	}

	firefoxCaps.AddFirefox(firefox.Capabilities{
		Args: args,
		Prefs: map[string]interface{}{
			"general.useragent.override": cfg.Twitter.Auth.UserAgent,
			"dom.webdriver.enabled":      false,
			"useAutomationExtension":     false,
		},
	})

	port := cfg.Scraper.GeckodriverPort
	selenium.SetDebug(false)

	service, err := selenium.NewGeckoDriverService(cfg.Scraper.GeckodriverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start GeckoDriver service: %w", err)
	}

	driver, err := selenium.NewRemote(firefoxCaps, fmt.Sprintf("http://localhost:%d", port))
	if err != nil {
		service.Stop()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	if err := driver.SetPageLoadTimeout(cfg.TimeoutDuration()); err != nil {
		logger.Warnf("Failed to set page load timeout: %v", err)
	}

	return &SeleniumSession{
		driver:  driver,
		service: service,
		timeout: cfg.TimeoutDuration(),
		logger:  logger,
	}, nil
}

func (ss *SeleniumSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ss.driver.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (ss *SeleniumSession) ScrollBy(ctx context.Context, pixels int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ss.driver.ExecuteScript(fmt.Sprintf("window.scrollBy(0, %d);", pixels), nil); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	if err := sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if _, err := ss.driver.ExecuteScript("window.scrollTo(0, document.body.scrollHeight);", nil); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	if err := sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}

	body, err := ss.driver.FindElement(selenium.ByTagName, "body")
	if err != nil {
		return nil
	}
	for i := 0; i < 3; i++ {
		if err := body.SendKeys(selenium.PageDownKey); err != nil {
			ss.logger.Debugf("Failed to send PageDown: %v", err)
			break
		}
		if err := sleep(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func (ss *SeleniumSession) RenderedPosts(ctx context.Context) ([]RawPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source, err := ss.driver.PageSource()
	if err != nil {
		return nil, fmt.Errorf("failed to get page source: %w", err)
	}
	return ExtractRenderedPosts(source)
}

func (ss *SeleniumSession) Wait(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func (ss *SeleniumSession) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return ss.driver.CurrentURL()
}

func (ss *SeleniumSession) SetCookies(ctx context.Context, cookies []Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, cookie := range cookies {
		domain := cookie.Domain
		if !strings.HasPrefix(domain, ".") {
			domain = "." + domain
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}

		err := ss.driver.AddCookie(&selenium.Cookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
			Secure: cookie.Secure,
		})
		if err != nil {
			ss.logger.Warnf("Failed to set cookie %s: %v", cookie.Name, err)
			continue
		}
		ss.logger.Debugf("Successfully set cookie: %s for domain: %s", cookie.Name, domain)
	}
	return nil
}

func (ss *SeleniumSession) Cookies(ctx context.Context) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	got, err := ss.driver.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(got))
	for _, c := range got {
		cookies = append(cookies, Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Secure:  c.Secure,
			Expires: unixExpiry(float64(c.Expiry)),
		})
	}
	return cookies, nil
}

func (ss *SeleniumSession) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	elements, err := ss.driver.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return false, nil
	}
	return len(elements) > 0, nil
}

func (ss *SeleniumSession) BodyText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := ss.driver.FindElement(selenium.ByTagName, "body")
	if err != nil {
		return "", err
	}
	return body.Text()
}

func (ss *SeleniumSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if found, _ := ss.Exists(ctx, selector); found {
			return nil
		}
		if err := sleep(ctx, 250*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
}

func (ss *SeleniumSession) Type(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	element, err := ss.driver.FindElement(selenium.ByCSSSelector, selector)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	if err := element.Clear(); err != nil {
		return err
	}
	return element.SendKeys(text)
}

func (ss *SeleniumSession) ClickButton(ctx context.Context, labels []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buttons, err := ss.driver.FindElements(selenium.ByCSSSelector, `button, div[role="button"]`)
	if err != nil {
		return err
	}
	for _, button := range buttons {
		displayed, _ := button.IsDisplayed()
		if !displayed {
			continue
		}
		text, _ := button.Text()
		for _, label := range labels {
			if strings.Contains(strings.TrimSpace(text), label) {
				return button.Click()
			}
		}
	}
	return fmt.Errorf("%w: button %v", ErrElementNotFound, labels)
}

func (ss *SeleniumSession) Close() {
	if ss.driver != nil {
		ss.driver.Quit()
		ss.driver = nil
	}
	if ss.service != nil {
		ss.service.Stop()
		ss.service = nil
	}
}
