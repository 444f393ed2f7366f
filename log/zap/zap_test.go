package zap

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/pricelogger"
)

func TestZapLoggerFieldsSorted(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("price updated", pricelogger.Fields{"old": uint64(1), "new": uint64(2), "account": "abc"})
	l.Warn("no fields", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "pricelogger" || e.Message != "price updated" {
		t.Fatalf("unexpected entry: %+v", e.Entry)
	}
	want := []string{"account", "new", "old"}
	if len(e.Context) != len(want) {
		t.Fatalf("fields: %v", e.Context)
	}
	for i, k := range want {
		if e.Context[i].Key != k {
			t.Fatalf("field %d: got %q want %q", i, e.Context[i].Key, k)
		}
	}
	if entries[1].Level != zapcore.WarnLevel || len(entries[1].Context) != 0 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}
