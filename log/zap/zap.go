// Package zap adapts a *zap.Logger to pricelogger.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/pricelogger"
)

var _ pricelogger.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "pricelogger" so program lines are easy to filter.
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("pricelogger")} }

func (z ZapLogger) Debug(msg string, f pricelogger.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f pricelogger.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f pricelogger.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f pricelogger.Fields) { z.L.Error(msg, zf(f)...) }

// zf emits fields in key order; map iteration would shuffle them per line.
func zf(f pricelogger.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
