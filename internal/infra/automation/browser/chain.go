package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/domain/automation"
)

// driver is the minimal page surface the action chain needs. The live
// session implements it on top of chromedp; tests plug in fakes.
type driver interface {
	// clickText clicks the visible element containing the label.
	clickText(ctx context.Context, text string) error
	// clickSelector clicks the first match of a CSS selector.
	clickSelector(ctx context.Context, selector string) error
	// focusAndEnter focuses the target and sends Enter.
	focusAndEnter(ctx context.Context, t automation.Target) error
	// clickCoordinates clicks the center of the target's bounding box.
	clickCoordinates(ctx context.Context, t automation.Target) error
}

// interactor is one rung of the fallback chain.
type interactor struct {
	name string
	run  func(ctx context.Context, d driver, t automation.Target) error
}

// defaultChain: semantic dulu, keyboard, terakhir coordinate click.
// Ant Design buttons kadang swallow synthetic click, makanya coordinate
// click tetap ada di ujung.
var defaultChain = []interactor{
	{name: "semantic", run: func(ctx context.Context, d driver, t automation.Target) error {
		if t.Text != "" {
			if err := d.clickText(ctx, t.Text); err == nil {
				return nil
			} else if t.Selector == "" {
				return err
			}
		}
		if t.Selector != "" {
			return d.clickSelector(ctx, t.Selector)
		}
		return fmt.Errorf("empty target")
	}},
	{name: "keyboard", run: func(ctx context.Context, d driver, t automation.Target) error {
		return d.focusAndEnter(ctx, t)
	}},
	{name: "coordinate", run: func(ctx context.Context, d driver, t automation.Target) error {
		return d.clickCoordinates(ctx, t)
	}},
}

// runChain tries each interactor with its own timeout. First success
// wins; after the last failure the caller gets ErrChainExhausted with
// the final cause attached.
func runChain(ctx context.Context, d driver, t automation.Target, perStep time.Duration, log zerolog.Logger) error {
	var lastErr error
	for _, in := range defaultChain {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stepCtx, cancel := context.WithTimeout(ctx, perStep)
		err := in.run(stepCtx, d, t)
		cancel()
		if err == nil {
			if in.name != "semantic" {
				log.Info().Str("interactor", in.name).Str("text", t.Text).
					Msg("fallback interactor succeeded")
			}
			return nil
		}
		lastErr = err
		log.Debug().Err(err).Str("interactor", in.name).Str("text", t.Text).
			Str("selector", t.Selector).Msg("interactor failed, trying next")
	}
	return fmt.Errorf("%w: target text=%q selector=%q: %v",
		automation.ErrChainExhausted, t.Text, t.Selector, lastErr)
}
