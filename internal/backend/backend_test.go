package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dues/internal/config"
	"dues/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		if _, err := FromAppConfig(nil); err == nil {
			t.Fatal("FromAppConfig(nil) should fail")
		}
	})

	t.Run("invalid backend", func(t *testing.T) {
		_, err := FromAppConfig(&config.Config{DataBackend: "sheets"})
		if err == nil || !strings.Contains(err.Error(), "sheets") {
			t.Fatalf("FromAppConfig error = %v", err)
		}
	})

	t.Run("postgres", func(t *testing.T) {
		cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/dues"})
		if err != nil {
			t.Fatalf("FromAppConfig error = %v", err)
		}
		if cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://localhost/dues" {
			t.Errorf("FromAppConfig = %+v", cfg)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.sqlite"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "sqlite,postgres,memory" {
		t.Errorf("GetBackendTypeStrings() = %s", got)
	}
}

func TestFactory_CreateBackend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "data.sqlite")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend error = %v", err)
			}
			defer res.Cleanup()

			if res.Publisher != nil {
				t.Error("publisher should be nil without AMQP_URL")
			}
			if _, err := res.Service.Add(ctx, "Rent", core.Monthly, now.AddDate(0, 0, 14), now); err != nil {
				t.Fatalf("Add error = %v", err)
			}
			rows, err := res.Service.List(ctx, now)
			if err != nil || len(rows) != 1 {
				t.Fatalf("List = %v, %v", rows, err)
			}
		})
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("CreateBackend should reject a missing SQLite path")
	}
}
