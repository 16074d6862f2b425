package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.Warn("image above soft limit", map[string]interface{}{"size": "6 MB"})
	log.Error("save failed", errors.New("boom"), map[string]interface{}{"category": "scanner"})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["size"] != "6 MB" {
		t.Fatalf("unexpected warn entry: %+v", entries[0])
	}
	ctx := entries[1].ContextMap()
	if ctx["error"] != "boom" || ctx["category"] != "scanner" {
		t.Fatalf("unexpected error entry context: %+v", ctx)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, ok := parseLevel("DEBUG"); !ok || lvl != zapcore.DebugLevel {
		t.Fatalf("parseLevel(DEBUG) = %v, %v", lvl, ok)
	}
	if _, ok := parseLevel("verbose"); ok {
		t.Fatal("expected unknown level to be rejected")
	}
}

func TestNewBuildsLogger(t *testing.T) {
	log, err := New("error", false)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	log.Debug("dropped", nil)

	if _, err := New("verbose", false); err == nil {
		t.Fatal("New with unknown level should fail")
	}
}
