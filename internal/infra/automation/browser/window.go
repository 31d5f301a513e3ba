package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/pthora/eldwatch/internal/domain/automation"
)

// WaitForWindow resolves with the first tab/window spawned by the page
// whose URL matches the predicate. Built on the target listener, so the
// match arrives on a channel instead of a poll loop.
func (s *Session) WaitForWindow(ctx context.Context, timeout time.Duration, pred automation.WindowPredicate) (*automation.Window, error) {
	listenCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var matchedURL string
	ch := chromedp.WaitNewTarget(listenCtx, func(info *target.Info) bool {
		// new windows open as about:blank first; the real URL arrives in
		// a later info-changed event, which this also sees
		if info.Type != "page" || info.URL == "" || !pred(info.URL) {
			return false
		}
		matchedURL = info.URL
		return true
	})

	return awaitWindow(ctx, timeout, ch, func() string { return matchedURL })
}

func awaitWindow(ctx context.Context, timeout time.Duration, ch <-chan target.ID, url func() string) (*automation.Window, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case id := <-ch:
		return &automation.Window{TargetID: string(id), URL: url()}, nil
	case <-t.C:
		return nil, automation.ErrWindowTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
