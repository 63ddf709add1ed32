package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// MessageXPath matches every chat message container on the page.
const MessageXPath = "//*[contains(@class, 'chat-message')]"

// extractJS collects id, author and body of every message container in a
// single round trip, so messages re-rendered mid-scan cannot go stale
// between lookups.
const extractJS = `(xpath) => {
	const snap = document.evaluate(xpath, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < snap.snapshotLength; i++) {
		const el = snap.snapshotItem(i);
		const name = el.querySelector('.name');
		const body = el.querySelector('.c-chat-message-body');
		out.push({
			id: el.getAttribute('id') || '',
			author: name ? name.innerText : '',
			body: body ? body.innerText : '',
		});
	}
	return out;
}`

// BrowserConfig controls how the browser is obtained.
type BrowserConfig struct {
	// Bin is the Chrome/Chromium binary. Empty lets rod find or download one.
	Bin string
	// ControlURL attaches to an already running browser instead of
	// launching one.
	ControlURL string
	// Headless runs a launched browser without a window.
	Headless bool
	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration
	// WaitTimeout bounds how long Fetch waits for message containers.
	WaitTimeout time.Duration
}

// DefaultBrowserConfig returns the settings used when none are configured.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		WaitTimeout:       10 * time.Second,
	}
}

// RodSource reads chat messages from a page driven through the Chrome
// DevTools protocol.
type RodSource struct {
	cfg     BrowserConfig
	url     string
	mu      sync.Mutex
	launch  *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	closed  bool
}

// NewRodSource starts (or attaches to) a browser and opens pageURL. ctx
// bounds the initial navigation only; the browser lives until Close.
func NewRodSource(ctx context.Context, pageURL string, cfg BrowserConfig) (*RodSource, error) {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultBrowserConfig().WaitTimeout
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultBrowserConfig().NavigationTimeout
	}

	s := &RodSource{cfg: cfg, url: pageURL}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless).NoSandbox(true).
			Set(flags.Flag("disable-dev-shm-usage")).
			Set(flags.Flag("mute-audio"))
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		s.launch = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.killLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if err := page.Context(ctx).Timeout(cfg.NavigationTimeout).Navigate(pageURL); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	log.Info("Opened chat page", "url", pageURL, "headless", cfg.Headless, "attached", cfg.ControlURL != "")
	return s, nil
}

// URL returns the page the source reads from.
func (s *RodSource) URL() string {
	return s.url
}

// Fetch returns the message records currently on the page in document
// order. If no container appears within the wait window, it returns no
// records and no error.
func (s *RodSource) Fetch(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
	defer cancel()
	if _, err := s.page.Context(waitCtx).ElementX(MessageXPath); err != nil {
		empty, err := waitResult(ctx, err)
		if err != nil {
			return nil, err
		}
		if empty {
			log.Debug("No chat message containers found within the timeout", "wait", s.cfg.WaitTimeout)
			return nil, nil
		}
	}

	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      extractJS,
		JSArgs:  []interface{}{MessageXPath},
		ByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	return decodeRecords(raw)
}

// waitResult maps the error from waiting for message containers to what
// Fetch reports. Running out of time, whether on the wait window or on a
// caller deadline, means the page has no messages yet. Only cancellation
// and other failures are errors.
func waitResult(ctx context.Context, err error) (empty bool, _ error) {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return true, nil
	default:
		return false, fmt.Errorf("wait for messages: %w", err)
	}
}

func decodeRecords(raw []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return recs, nil
}

// Name implements lifecycle.Component.
func (s *RodSource) Name() string {
	return "browser"
}

// Shutdown implements lifecycle.Component.
func (s *RodSource) Shutdown(context.Context) error {
	return s.Close()
}

// ForceStop implements lifecycle.Component.
func (s *RodSource) ForceStop() error {
	s.killLauncher()
	return nil
}

// Close closes the page and then the browser. A browser that was attached
// to rather than launched is left running.
func (s *RodSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}

	var err error
	if s.browser != nil && s.launch != nil {
		err = s.browser.Close()
	}
	s.browser = nil
	s.killLauncher()
	return err
}

func (s *RodSource) killLauncher() {
	if s.launch != nil {
		s.launch.Kill()
		s.launch.Cleanup()
		s.launch = nil
	}
}
