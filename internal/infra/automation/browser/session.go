package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/domain/automation"
)

// DiagnosticsStore persists screenshots and returns a retrievable URL.
type DiagnosticsStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Config for the browser manager.
type Config struct {
	Headless      bool
	SessionFile   string
	ScreenshotDir string
	ActionTimeout time.Duration

	LoginURL string
	Username string
	Password string
}

// Manager owns the single Chrome instance. Exactly one strategy holds
// the session at a time; sem is the exclusivity token, so a waiter can
// give up when its context expires.
type Manager struct {
	cfg   Config
	store DiagnosticsStore
	log   zerolog.Logger

	sem         chan struct{} // cap 1, serializes Acquire/Release
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tabCtx      context.Context
}

func NewManager(cfg Config, store DiagnosticsStore, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "browser").Logger(),
		sem:   make(chan struct{}, 1),
	}
}

// Start boots Chrome, restores persisted cookies when present, then
// validates or establishes login. Kalau login gagal di sini, agent
// tidak boleh jalan.
func (m *Manager) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	m.allocCancel = allocCancel
	m.tabCancel = tabCancel
	m.tabCtx = tabCtx

	if err := chromedp.Run(tabCtx); err != nil {
		m.Close(ctx)
		return fmt.Errorf("start chrome: %w", err)
	}

	if err := m.restoreCookies(); err != nil {
		// stale/corrupt session file is not fatal, login ulang saja
		m.log.Warn().Err(err).Msg("could not restore session state")
	}

	if err := m.ensureLoggedIn(ctx); err != nil {
		m.Close(ctx)
		return err
	}
	m.log.Info().Bool("headless", m.cfg.Headless).Msg("browser session established")
	return nil
}

// Acquire takes the exclusive session and re-validates the login.
// ErrSessionInvalid means re-login failed; the caller must stop.
func (m *Manager) Acquire(ctx context.Context) (automation.Session, error) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := m.ensureLoggedIn(ctx); err != nil {
		<-m.sem
		return nil, err
	}
	return &Session{mgr: m, ctx: m.tabCtx}, nil
}

func (m *Manager) Close(ctx context.Context) error {
	if m.tabCancel != nil {
		m.tabCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	return nil
}

// ensureLoggedIn navigates to the dashboard and checks for a login
// redirect; on redirect it runs the interactive login.
func (m *Manager) ensureLoggedIn(ctx context.Context) error {
	loc, err := m.currentLocationAfterNavigate(m.cfg.LoginURL)
	if err != nil {
		return fmt.Errorf("%w: dashboard unreachable: %v", automation.ErrSessionInvalid, err)
	}
	if !isLoginPage(loc) {
		return nil
	}
	m.log.Info().Msg("session expired, re-login")
	if err := m.login(); err != nil {
		return fmt.Errorf("%w: %v", automation.ErrSessionInvalid, err)
	}
	return nil
}

func (m *Manager) login() error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return fmt.Errorf("no credentials configured")
	}
	runCtx, cancel := context.WithTimeout(m.tabCtx, 30*time.Second)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(m.cfg.LoginURL),
		chromedp.WaitVisible(`input[name='username']`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name='username']`, m.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name='password']`, m.cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button[type='submit']`, chromedp.ByQuery),
	)
	if err != nil {
		m.screenshotBestEffort("login_failed")
		return fmt.Errorf("login form: %w", err)
	}

	// tunggu redirect keluar dari halaman login
	deadline := time.Now().Add(15 * time.Second)
	for {
		var loc string
		if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
			return fmt.Errorf("login redirect: %w", err)
		}
		if !isLoginPage(loc) {
			break
		}
		if time.Now().After(deadline) {
			m.screenshotBestEffort("login_failed")
			return fmt.Errorf("still on login page after submit")
		}
		time.Sleep(500 * time.Millisecond)
	}

	if err := m.saveCookies(); err != nil {
		m.log.Warn().Err(err).Msg("could not persist session state")
	}
	m.log.Info().Msg("login successful, session saved")
	return nil
}

func (m *Manager) currentLocationAfterNavigate(url string) (string, error) {
	runCtx, cancel := context.WithTimeout(m.tabCtx, 15*time.Second)
	defer cancel()
	var loc string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&loc),
	)
	return loc, err
}

func isLoginPage(url string) bool {
	return strings.Contains(strings.ToLower(url), "login")
}

func (m *Manager) saveCookies() error {
	var cookies []*network.Cookie
	err := chromedp.Run(m.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionFile, data, 0o600)
}

func (m *Manager) restoreCookies() error {
	data, err := os.ReadFile(m.cfg.SessionFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return err
	}
	return chromedp.Run(m.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&exp)
			}
			if err := p.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (m *Manager) screenshotBestEffort(name string) {
	var buf []byte
	runCtx, cancel := context.WithTimeout(m.tabCtx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return
	}
	if m.store == nil {
		return
	}
	if url, err := m.store.Put(context.Background(), screenshotName(name), buf); err == nil {
		m.log.Info().Str("url", url).Msg("diagnostic screenshot saved")
	}
}

func screenshotName(name string) string {
	return fmt.Sprintf("%s_%s.png", name, time.Now().Format("20060102_150405"))
}

// Session is the exclusive handle handed out by Acquire.
type Session struct {
	mgr  *Manager
	ctx  context.Context
	once sync.Once
}

var _ automation.Session = (*Session)(nil)

func (s *Session) BaseURL() string { return s.mgr.cfg.LoginURL }

// run executes chromedp actions against the tab with a timeout, and
// aborts early kalau caller context dibatalkan.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 15*time.Second,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *Session) Click(ctx context.Context, t automation.Target) error {
	return runChain(ctx, s, t, s.mgr.cfg.ActionTimeout, s.mgr.log)
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := s.run(ctx, s.mgr.cfg.ActionTimeout, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx, s.mgr.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var out string
	if err := s.run(ctx, s.mgr.cfg.ActionTimeout,
		chromedp.Text(selector, &out, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// setCheckedJS finds a checkbox by its visible label (Ant Design
// wrapper or plain label) and clicks it when not already checked.
const setCheckedJS = `
(() => {
	const want = %q.toUpperCase();
	const labels = document.querySelectorAll('.ant-checkbox-wrapper, label');
	for (const label of labels) {
		const text = (label.textContent || '').trim().toUpperCase();
		if (text !== want && !text.includes(want)) continue;
		const checked = label.classList.contains('ant-checkbox-wrapper-checked') ||
			label.querySelector('.ant-checkbox-checked') ||
			(label.querySelector("input[type='checkbox']") || {}).checked;
		if (!checked) label.click();
		return true;
	}
	return false;
})()`

func (s *Session) SetChecked(ctx context.Context, label string) (bool, error) {
	var ok bool
	expr := fmt.Sprintf(setCheckedJS, label)
	if err := s.run(ctx, s.mgr.cfg.ActionTimeout, chromedp.Evaluate(expr, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Session) Screenshot(ctx context.Context, name string) (string, error) {
	var buf []byte
	if err := s.run(ctx, 10*time.Second, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return "", err
	}
	if s.mgr.store == nil {
		return "", nil
	}
	return s.mgr.store.Put(ctx, screenshotName(name), buf)
}

// Release resets baseline: close secondary tabs, back to the dashboard,
// then give up the exclusive lock. Safe against double calls.
func (s *Session) Release() {
	s.once.Do(func() {
		s.closeSecondaryTargets()
		runCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		if err := chromedp.Run(runCtx, chromedp.Navigate(s.mgr.cfg.LoginURL)); err != nil {
			s.mgr.log.Warn().Err(err).Msg("baseline navigate failed on release")
		}
		cancel()
		<-s.mgr.sem
	})
}

func (s *Session) closeSecondaryTargets() {
	own := chromedp.FromContext(s.ctx).Target.TargetID
	infos, err := chromedp.Targets(s.ctx)
	if err != nil {
		s.mgr.log.Warn().Err(err).Msg("could not list targets on release")
		return
	}
	for _, info := range infos {
		if info.TargetID == own || info.Type != "page" {
			continue
		}
		err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return target.CloseTarget(info.TargetID).Do(ctx)
		}))
		if err != nil {
			s.mgr.log.Warn().Err(err).Str("target", string(info.TargetID)).
				Msg("could not close secondary target")
		}
	}
}

//
// driver implementation for the action chain
//

func (s *Session) clickText(ctx context.Context, text string) error {
	xpath := fmt.Sprintf(
		`//*[self::button or self::a or @role='button'][contains(normalize-space(.), '%s')]`, text)
	return s.run(ctx, s.mgr.cfg.ActionTimeout,
		chromedp.Click(xpath, chromedp.BySearch, chromedp.NodeVisible))
}

func (s *Session) clickSelector(ctx context.Context, selector string) error {
	return s.run(ctx, s.mgr.cfg.ActionTimeout,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *Session) focusAndEnter(ctx context.Context, t automation.Target) error {
	if t.Selector == "" {
		return fmt.Errorf("keyboard interactor needs a selector")
	}
	return s.run(ctx, s.mgr.cfg.ActionTimeout,
		chromedp.Focus(t.Selector, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Enter),
	)
}

// boundingCenterJS resolves a target (text scan first, selector second)
// to the center point of its bounding rect.
const boundingCenterJS = `
(() => {
	const text = %q.toUpperCase();
	const sel = %q;
	let el = null;
	if (text) {
		for (const c of document.querySelectorAll('button, a, [role=button]')) {
			if ((c.textContent || '').trim().toUpperCase().includes(text)) { el = c; break; }
		}
	}
	if (!el && sel) el = document.querySelector(sel);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return [r.x + r.width / 2, r.y + r.height / 2];
})()`

func (s *Session) clickCoordinates(ctx context.Context, t automation.Target) error {
	var pt []float64
	expr := fmt.Sprintf(boundingCenterJS, t.Text, t.Selector)
	if err := s.run(ctx, s.mgr.cfg.ActionTimeout, chromedp.Evaluate(expr, &pt)); err != nil {
		return err
	}
	if len(pt) != 2 {
		return fmt.Errorf("no bounding box for text=%q selector=%q", t.Text, t.Selector)
	}
	return s.run(ctx, s.mgr.cfg.ActionTimeout, chromedp.MouseClickXY(pt[0], pt[1]))
}
