package fixer

import (
	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/classifier"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// Registry maps an error kind to its ordered strategy list. Built once
// at startup; read-only after Build, jadi aman dipakai concurrent.
type Registry struct {
	strategies map[detecterrors.Kind][]Strategy
	fallback   Strategy
	log        zerolog.Logger
}

// Builder assembles the registry. Register order per kind is the
// execution preference order.
type Builder struct {
	strategies map[detecterrors.Kind][]Strategy
	fallback   Strategy
}

func NewBuilder() *Builder {
	return &Builder{strategies: make(map[detecterrors.Kind][]Strategy)}
}

func (b *Builder) Register(kind detecterrors.Kind, s Strategy) *Builder {
	b.strategies[kind] = append(b.strategies[kind], s)
	return b
}

// RegisterFirst prepends s, so it is tried before anything already
// registered for the kind. Used to layer the read-only log review over
// a real strategy on review-only tenants.
func (b *Builder) RegisterFirst(kind detecterrors.Kind, s Strategy) *Builder {
	b.strategies[kind] = append([]Strategy{s}, b.strategies[kind]...)
	return b
}

// Fallback sets the strategy resolved for kinds with no registration.
func (b *Builder) Fallback(s Strategy) *Builder {
	b.fallback = s
	return b
}

func (b *Builder) Build(log zerolog.Logger) *Registry {
	if b.fallback == nil {
		b.fallback = NewInfoOnly()
	}
	r := &Registry{
		strategies: b.strategies,
		fallback:   b.fallback,
		log:        log.With().Str("component", "fixer").Logger(),
	}
	for kind, list := range b.strategies {
		names := make([]string, 0, len(list))
		for _, s := range list {
			names = append(names, s.Name())
		}
		r.log.Debug().Str("kind", string(kind)).Strs("strategies", names).Msg("strategies registered")
	}
	return r
}

// Resolve never returns an empty list: unregistered kinds get the
// fallback so every error still reaches a terminal status.
func (r *Registry) Resolve(kind detecterrors.Kind) []Strategy {
	if list, ok := r.strategies[kind]; ok && len(list) > 0 {
		return list
	}
	return []Strategy{r.fallback}
}

// IsFallback reports whether s is the registry's fallback strategy. The
// dispatcher uses this to mark the error ignored instead of recording a
// fix attempt.
func (r *Registry) IsFallback(s Strategy) bool {
	return s == r.fallback
}

// DefaultBuilder wires the standard strategy set: toolkit repair for
// the repairable kinds, the duplicate-event cleanups, and the advisor
// for everything that ends in manual review. Callers can still layer
// extra registrations (e.g. the read-only log review in dev) before
// Build.
func DefaultBuilder(advisor Advisor, repo detecterrors.Repository, log zerolog.Logger) *Builder {
	b := NewBuilder()
	for _, k := range ToolkitKinds() {
		b.Register(k, NewToolkitRepair(k, log))
	}
	b.Register(detecterrors.KindExcessiveLogIn, NewExcessiveLogin(log))
	b.Register(detecterrors.KindExcessiveLogOut, NewExcessiveLogout(log))
	if advisor != nil {
		adv := NewAdviceStrategy(advisor, repo, log)
		// Unrecognized messages classify to KindUnknown outside the rule
		// table, so it needs an explicit registration here.
		b.Register(detecterrors.KindUnknown, adv)
		for _, k := range classifier.KindsByStrategy(classifier.StrategyManualReview) {
			b.Register(k, adv)
		}
		for _, k := range classifier.KindsByStrategy(classifier.StrategyCustom) {
			if _, taken := b.strategies[k]; !taken {
				b.Register(k, adv)
			}
		}
	}
	return b
}

// Kinds returns the kinds with explicit registrations.
func (r *Registry) Kinds() []detecterrors.Kind {
	out := make([]detecterrors.Kind, 0, len(r.strategies))
	for k := range r.strategies {
		out = append(out, k)
	}
	return out
}
