package domain_test

import (
	"testing"
	"time"

	"github.com/doeshing/phocache/internal/domain"
)

// TestConfig_QuotaBytes tests parsing of the storage quota
func TestConfig_QuotaBytes(t *testing.T) {
	tests := []struct {
		name      string
		quota     string
		want      int64
		wantError bool
	}{
		{name: "falls back to default", quota: "", want: 1 << 30},
		{name: "binary units", quota: "512MiB", want: 512 << 20},
		{name: "decimal units", quota: "2GB", want: 2_000_000_000},
		{name: "rejects garbage", quota: "plenty", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.Config{Storage: domain.StorageSettings{Quota: tt.quota}}
			got, err := cfg.QuotaBytes()
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("QuotaBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestConfig_SoftLimitBytes tests the advisory upload limit
func TestConfig_SoftLimitBytes(t *testing.T) {
	cfg := domain.Config{}
	got, err := cfg.SoftLimitBytes()
	if err != nil || got != domain.DefaultSoftLimitBytes {
		t.Fatalf("SoftLimitBytes() = %d, %v", got, err)
	}

	cfg.History.SoftLimit = "1MiB"
	got, err = cfg.SoftLimitBytes()
	if err != nil || got != 1<<20 {
		t.Fatalf("SoftLimitBytes() = %d, %v", got, err)
	}
}

// TestConfig_RedisConnectTimeout tests duration parsing with a default
func TestConfig_RedisConnectTimeout(t *testing.T) {
	cfg := domain.Config{}
	if got, _ := cfg.RedisConnectTimeout(); got != domain.DefaultRedisConnectTimeout {
		t.Errorf("default = %v", got)
	}
	cfg.Storage.Redis.ConnectTimeout = "3s"
	if got, _ := cfg.RedisConnectTimeout(); got != 3*time.Second {
		t.Errorf("got %v, want 3s", got)
	}
	cfg.Storage.Redis.ConnectTimeout = "soon"
	if _, err := cfg.RedisConnectTimeout(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

// TestConfig_HistoryMaxItems tests the cap fallback
func TestConfig_HistoryMaxItems(t *testing.T) {
	cfg := domain.Config{}
	if got := cfg.HistoryMaxItems(); got != domain.DefaultMaxHistoryItems {
		t.Errorf("HistoryMaxItems() = %d", got)
	}
	cfg.History.MaxItems = 2
	if got := cfg.HistoryMaxItems(); got != 2 {
		t.Errorf("HistoryMaxItems() = %d, want 2", got)
	}
}

// TestConfig_KnownEngine tests engine name validation
func TestConfig_KnownEngine(t *testing.T) {
	for _, engine := range []string{domain.EngineSQLite, domain.EngineBadger, domain.EngineRedis} {
		cfg := domain.Config{Storage: domain.StorageSettings{Engine: engine}}
		if !cfg.KnownEngine() {
			t.Errorf("expected %s to be known", engine)
		}
	}
	cfg := domain.Config{Storage: domain.StorageSettings{Engine: "indexeddb"}}
	if cfg.KnownEngine() {
		t.Error("expected indexeddb to be unknown")
	}
}

func TestParseCategory(t *testing.T) {
	c, err := domain.ParseCategory("price-check")
	if err != nil || c != domain.CategoryPriceCheck {
		t.Fatalf("ParseCategory = %q, %v", c, err)
	}
	if _, err := domain.ParseCategory("receipts"); err == nil {
		t.Fatal("expected unknown category error")
	}
	if domain.Category("receipts").Valid() {
		t.Fatal("receipts should not be valid")
	}
}
