package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("offerctl %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestSeed_Idempotent(t *testing.T) {
	db := filepath.Join(t.TempDir(), "offerd.db")

	out := run(t, "--sqlite", db, "seed", "--migrate")
	if !strings.Contains(out, "courses: 3 created, 0 skipped") || !strings.Contains(out, "coupons: 2 created, 0 skipped") {
		t.Fatalf("unexpected first seed output:\n%s", out)
	}

	out = run(t, "--sqlite", db, "seed")
	if !strings.Contains(out, "courses: 0 created, 3 skipped") || !strings.Contains(out, "coupons: 0 created, 2 skipped") {
		t.Fatalf("expected second seed to skip everything:\n%s", out)
	}
}

func TestMigrateAndSweep(t *testing.T) {
	db := filepath.Join(t.TempDir(), "offerd.db")

	if out := run(t, "--sqlite", db, "migrate"); !strings.Contains(out, "migrated") {
		t.Fatalf("unexpected migrate output: %s", out)
	}
	out := run(t, "--sqlite", db, "sweep")
	for _, want := range []string{"orders cancelled: 0", "coupons expired: 0", "discounts expired: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("sweep output missing %q:\n%s", want, out)
		}
	}
}

func TestGuidance(t *testing.T) {
	if out := run(t, "guidance"); strings.TrimSpace(out) == "" {
		t.Fatal("expected guidance text")
	}
}

func TestVersion(t *testing.T) {
	if out := run(t, "version"); !strings.HasPrefix(out, "offerctl dev") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestLoadConfig_SQLiteUsesDefaults(t *testing.T) {
	f := &globalFlags{sqlite: "x.db", env: "does-not-exist"}
	cfg, err := f.loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orders.PaymentTimeoutMin != 30 {
		t.Errorf("expected defaults, got %+v", cfg.Orders)
	}
}

func TestLoadConfig_DSNOverride(t *testing.T) {
	f := &globalFlags{dsn: "postgres://override/db", env: "does-not-exist"}
	cfg, err := f.loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://override/db" {
		t.Errorf("expected overridden dsn, got %q", cfg.Postgres.DSN)
	}

	if _, err := (&globalFlags{env: "does-not-exist"}).loadConfig(); err == nil {
		t.Error("expected error without config file or dsn")
	}
}
