package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/phocache/internal/app"
)

// writeConfig points the sqlite engine at a temp dir.
func writeConfig(t *testing.T, maxItems int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("storage:\n  engine: sqlite\n  path: %s\nhistory:\n  max_items: %d\nlogging:\n  level: error\n",
		filepath.Join(dir, "history.db"), maxItems)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(Options{ConfigPath: configPath})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// tinyPNG is a 2x1 PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAIAAAABCAIAAAB7QOjdAAAADUlEQVR4nGP4zwAE/wEHAAH/4iOeWQAAAABJRU5ErkJggg=="

func TestHistoryLifecycle(t *testing.T) {
	cfg := writeConfig(t, 2)

	var ids []string
	for i := 0; i < 3; i++ {
		out, err := run(t, cfg, tinyPNG, "history", "save", "-", "--category", "scanner",
			"--result", fmt.Sprintf(`{"n":%d}`, i), "--json")
		if err != nil {
			t.Fatalf("save #%d: %v\n%s", i, err, out)
		}
		var summary struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(out), &summary); err != nil {
			t.Fatalf("decode save output %q: %v", out, err)
		}
		ids = append(ids, summary.ID)
		// distinct millisecond timestamps keep the order deterministic
		time.Sleep(2 * time.Millisecond)
	}

	out, err := run(t, cfg, "", "history", "count", "scanner")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if strings.TrimSpace(out) != "scanner: 2" {
		t.Fatalf("count output = %q", out)
	}

	out, err = run(t, cfg, "", "history", "list", "-c", "scanner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, ids[0]) || !strings.Contains(out, ids[1]) || !strings.Contains(out, ids[2]) {
		t.Fatalf("list should hold the two newest records:\n%s", out)
	}

	thumbPath := filepath.Join(t.TempDir(), "thumb.jpg")
	out, err = run(t, cfg, "", "history", "show", ids[2], "-c", "scanner", "--thumbnail-out", thumbPath)
	if err != nil {
		t.Fatalf("show: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"n": 2`) {
		t.Fatalf("show output missing result:\n%s", out)
	}
	if info, err := os.Stat(thumbPath); err != nil || info.Size() == 0 {
		t.Fatalf("thumbnail not written: %v", err)
	}

	if _, err := run(t, cfg, "", "history", "delete", ids[2], "-c", "scanner"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := run(t, cfg, "", "history", "show", ids[2], "-c", "scanner"); err == nil {
		t.Fatal("show after delete should fail")
	}

	out, err = run(t, cfg, "n\n", "history", "clear", "-c", "scanner")
	if err != nil || !strings.Contains(out, "Clear cancelled.") {
		t.Fatalf("declined clear: %v\n%s", err, out)
	}
	if _, err := run(t, cfg, "", "history", "clear", "-c", "scanner", "--yes"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _ = run(t, cfg, "", "history", "list", "-c", "scanner")
	if strings.TrimSpace(out) != "No history recorded yet." {
		t.Fatalf("list after clear = %q", out)
	}
}

func TestHistorySaveRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t, 5)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown category", args: []string{"history", "save", "-", "-c", "receipts"}},
		{name: "invalid result", args: []string{"history", "save", "-", "-c", "scanner", "-r", `{"a":`}},
		{name: "missing category", args: []string{"history", "save", "-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, cfg, tinyPNG, tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestStatsAndExport(t *testing.T) {
	cfg := writeConfig(t, 5)
	if _, err := run(t, cfg, tinyPNG, "history", "save", "-", "-c", "price-check", "-r", `{"price":3}`, "-l", "Market"); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := run(t, cfg, "", "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var report struct {
		Counts map[string]int `json:"counts"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if report.Counts["price-check"] != 1 || report.Counts["scanner"] != 0 {
		t.Fatalf("counts = %v", report.Counts)
	}

	out, err = run(t, cfg, "", "history", "export", "-", "-c", "price-check")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 || !strings.Contains(lines[0], `"location":"Market"`) {
		t.Fatalf("export output = %q", out)
	}
}

func TestDoctorAndConfig(t *testing.T) {
	cfg := writeConfig(t, 5)

	out, err := run(t, cfg, "", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[OK] Image codec") {
		t.Fatalf("doctor output:\n%s", out)
	}

	out, err = run(t, cfg, "", "config", "get", "history.max_items")
	if err != nil || strings.TrimSpace(out) != "5" {
		t.Fatalf("config get = %q, %v", out, err)
	}
	out, err = run(t, cfg, "", "config", "path")
	if err != nil || strings.TrimSpace(out) != cfg {
		t.Fatalf("config path = %q, %v", out, err)
	}
}

func TestInvalidConfigStillDiagnosable(t *testing.T) {
	cfg := writeConfig(t, 5)
	f, err := os.OpenFile(cfg, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	if _, err := f.WriteString("compression:\n  quality: 1.5\n"); err != nil {
		t.Fatalf("append config: %v", err)
	}
	f.Close()

	out, err := run(t, cfg, "", "doctor")
	if err == nil {
		t.Fatalf("doctor should fail on an invalid config:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] Config file") || !strings.Contains(out, "[OK] Image codec") {
		t.Fatalf("doctor output:\n%s", out)
	}

	out, err = run(t, cfg, "", "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Fatalf("config validate = %q, %v", out, err)
	}

	if _, err := run(t, cfg, "", "history", "count"); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("history count should refuse an invalid config, got %v", err)
	}
}

func TestInspectsConfig(t *testing.T) {
	root := NewRootCmd(Options{})
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"doctor"}, true},
		{[]string{"config", "validate"}, true},
		{[]string{"history", "list"}, false},
		{[]string{"stats"}, false},
	}
	for _, tt := range tests {
		cmd, _, err := root.Find(tt.args)
		if err != nil {
			t.Fatalf("find %v: %v", tt.args, err)
		}
		if got := inspectsConfig(cmd); got != tt.want {
			t.Errorf("inspectsConfig(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestVersionSkipsContainer(t *testing.T) {
	built := false
	root := newRootCmd(Options{}, func(context.Context, app.Options) (*app.Container, error) {
		built = true
		return nil, fmt.Errorf("should not build")
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if built || !strings.HasPrefix(out.String(), "phocache version") {
		t.Fatalf("built=%v output=%q", built, out.String())
	}
}
