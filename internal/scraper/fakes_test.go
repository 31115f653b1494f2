package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mediaHref(user string, id int) string {
	return fmt.Sprintf("/%s/status/%d/video/1", user, id)
}

// fakePage renders a timeline that grows by one batch of anchors per
// extraction. Anchors already rendered stay in the DOM.
type fakePage struct {
	batches  [][]string
	errAt    map[int]error
	calls    int
	rendered []RawPost
	scrolls  []int
	waits    []time.Duration
	onCall   func(call int)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }

func (p *fakePage) ScrollBy(ctx context.Context, pixels int) error {
	p.scrolls = append(p.scrolls, pixels)
	return nil
}

func (p *fakePage) RenderedPosts(ctx context.Context) ([]RawPost, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if err, ok := p.errAt[p.calls]; ok {
		return nil, err
	}
	if p.calls <= len(p.batches) {
		for _, href := range p.batches[p.calls-1] {
			p.rendered = append(p.rendered, RawPost{Href: href})
		}
	}
	out := make([]RawPost, len(p.rendered))
	copy(out, p.rendered)
	return out, nil
}

func (p *fakePage) Wait(ctx context.Context, d time.Duration) error {
	p.waits = append(p.waits, d)
	return ctx.Err()
}

// fakeSession scripts the browser state seen by the navigator.
type fakeSession struct {
	fakePage

	url        string
	visited    []string
	present    map[string]bool
	typed      map[string]string
	clicked    [][]string
	cookies    []Cookie
	setCookies []Cookie
	afterNav   func(url string) string
	afterClick func(labels []string)
	currentErr error
	bodyText   string
	closed     bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		present: make(map[string]bool),
		typed:   make(map[string]string),
	}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.visited = append(s.visited, url)
	s.url = url
	if s.afterNav != nil {
		s.url = s.afterNav(url)
	}
	return nil
}

func (s *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	if s.currentErr != nil {
		return "", s.currentErr
	}
	return s.url, nil
}

func (s *fakeSession) SetCookies(ctx context.Context, cookies []Cookie) error {
	s.setCookies = append(s.setCookies, cookies...)
	return nil
}

func (s *fakeSession) Cookies(ctx context.Context) ([]Cookie, error) {
	return s.cookies, nil
}

func (s *fakeSession) Exists(ctx context.Context, selector string) (bool, error) {
	return s.present[selector], nil
}

func (s *fakeSession) BodyText(ctx context.Context) (string, error) {
	return s.bodyText, nil
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if s.present[selector] {
		return nil
	}
	return errors.New("timeout")
}

func (s *fakeSession) Type(ctx context.Context, selector, text string) error {
	s.typed[selector] = text
	return nil
}

func (s *fakeSession) ClickButton(ctx context.Context, labels []string) error {
	s.clicked = append(s.clicked, labels)
	if s.afterClick != nil {
		s.afterClick(labels)
	}
	return nil
}

func (s *fakeSession) Close() { s.closed = true }

func onMediaPage(url string) bool {
	return strings.HasSuffix(url, "/media")
}
