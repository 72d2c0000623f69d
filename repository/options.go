// Package repository implements the read/replace operations of the shift
// calendar on top of a shift.Store.
//
// Every write is one store transaction. Reads decode the raw records and
// normalize them so that callers never see empty day lists or false special
// flags.
package repository

import (
	"log/slog"

	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/shift"
)

// ToggleRule is the fixed legacy side effect of flagging a day special:
// enabling removes OnEnableRemove from that day, disabling removes
// OnDisableRemove. An empty id disables that half of the rule.
type ToggleRule struct {
	OnEnableRemove  string
	OnDisableRemove string
}

// DefaultToggleRule removes the regular day shift when a day becomes special
// and the holiday shift when it stops being special.
var DefaultToggleRule = ToggleRule{OnEnableRemove: "day", OnDisableRemove: "holiday"}

type options struct {
	logger          *slog.Logger
	recorder        metrics.Recorder
	defaultCurrency string
	toggle          ToggleRule
}

// Option configures a repository.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = logfields.OrDefault(l) }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = metrics.OrNoop(r) }
}

// WithDefaultCurrency sets the currency injected into settings records that
// have none.
func WithDefaultCurrency(code string) Option {
	return func(o *options) {
		if code != "" {
			o.defaultCurrency = code
		}
	}
}

func WithToggleRule(r ToggleRule) Option {
	return func(o *options) { o.toggle = r }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:          slog.Default(),
		recorder:        metrics.NoopRecorder{},
		defaultCurrency: shift.DefaultCurrency,
		toggle:          DefaultToggleRule,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
