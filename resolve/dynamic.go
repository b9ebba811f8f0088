package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/logging"
)

// ErrNoMatch is returned when no rule matched and there is no fallback.
var ErrNoMatch = errors.New("no rule matched and no fallback configured")

// Rule binds a matcher to a resolver. Rules are evaluated in insertion order
// and the first match wins.
type Rule struct {
	Name     string
	Match    Spec
	Resolver Resolver
}

// Hooks are optional callbacks around resolution. Nil functions are skipped.
type Hooks struct {
	OnRuleMatched func(c conflict.RecordConflict, rule Rule)
	OnResolved    func(c conflict.RecordConflict, res Resolution)
	OnFallback    func(c conflict.RecordConflict)
	OnError       func(c conflict.RecordConflict, err error)
}

type dynamicOptions struct {
	rules    []Rule
	fallback Resolver
	logger   *logging.Logger
	hooks    Hooks
}

// Option configures a Dynamic resolver.
type Option interface{ apply(*dynamicOptions) }

type optionFn func(*dynamicOptions)

func (f optionFn) apply(o *dynamicOptions) { f(o) }

// WithFallback sets the resolver used when no rule matches.
func WithFallback(r Resolver) Option {
	return optionFn(func(o *dynamicOptions) { o.fallback = r })
}

// WithRule appends a rule.
func WithRule(name string, match Spec, r Resolver) Option {
	return optionFn(func(o *dynamicOptions) {
		o.rules = append(o.rules, Rule{Name: name, Match: match, Resolver: r})
	})
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return optionFn(func(o *dynamicOptions) { o.logger = l })
}

// WithHooks sets observability hooks.
func WithHooks(h Hooks) Option {
	return optionFn(func(o *dynamicOptions) { o.hooks = h })
}

// Dynamic dispatches conflicts to resolvers based on an ordered rule set,
// falling back to a default resolver when nothing matches.
type Dynamic struct {
	rules    []Rule
	fallback Resolver
	logger   *logging.Logger
	hooks    Hooks
}

var _ Resolver = (*Dynamic)(nil)

// NewDynamic validates the rule set. At least one rule or a fallback is
// required, and no rule may have a nil matcher or resolver.
func NewDynamic(opts ...Option) (*Dynamic, error) {
	cfg := &dynamicOptions{}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	if len(cfg.rules) == 0 && cfg.fallback == nil {
		return nil, errors.New("dynamic resolver requires at least one rule or a fallback")
	}
	for i, r := range cfg.rules {
		if r.Match == nil {
			return nil, fmt.Errorf("rule %d (%s) has nil matcher", i, r.Name)
		}
		if r.Resolver == nil {
			return nil, fmt.Errorf("rule %d (%s) has nil resolver", i, r.Name)
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Dynamic{
		rules:    cfg.rules,
		fallback: cfg.fallback,
		logger:   logger.WithComponent(logging.Component("resolve")),
		hooks:    cfg.hooks,
	}, nil
}

// Default is the resolver the stores use when none is configured: critical
// conflicts go to manual review, everything else is last write wins.
func Default() *Dynamic {
	d, _ := NewDynamic(
		WithRule("critical-to-review", SeverityAtLeast(conflict.SeverityCritical), &ManualReview{Reason: "critical conflict"}),
		WithFallback(&LastWriteWins{}),
	)
	return d
}

// Resolve implements Resolver.
func (d *Dynamic) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	for _, r := range d.rules {
		if !r.Match(c) {
			continue
		}
		if d.hooks.OnRuleMatched != nil {
			d.hooks.OnRuleMatched(c, r)
		}
		d.logger.DebugContext(ctx, "rule matched", slog.String("rule", r.Name), slog.String("record_id", c.ID))
		return d.run(ctx, c, r.Resolver)
	}

	if d.fallback == nil {
		if d.hooks.OnError != nil {
			d.hooks.OnError(c, ErrNoMatch)
		}
		return Resolution{}, ErrNoMatch
	}
	if d.hooks.OnFallback != nil {
		d.hooks.OnFallback(c)
	}
	return d.run(ctx, c, d.fallback)
}

func (d *Dynamic) run(ctx context.Context, c conflict.RecordConflict, r Resolver) (Resolution, error) {
	res, err := r.Resolve(ctx, c)
	if err != nil {
		if d.hooks.OnError != nil {
			d.hooks.OnError(c, err)
		}
		d.logger.LogError(ctx, err, "resolution failed", slog.String("record_id", c.ID))
		return Resolution{}, err
	}
	if d.hooks.OnResolved != nil {
		d.hooks.OnResolved(c, res)
	}
	return res, nil
}
