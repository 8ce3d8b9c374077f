package telegram

import (
	"path/filepath"
	"testing"
	"time"
)

func TestParseRuntimeConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     Config
		wantErr bool
	}{
		{name: "missing app id", raw: Config{AppHash: "hash"}, wantErr: true},
		{name: "missing app hash", raw: Config{AppID: 1, AppHash: "  "}, wantErr: true},
		{name: "bad auth timeout", raw: Config{AppID: 1, AppHash: "hash", AuthTimeout: "soon"}, wantErr: true},
		{name: "negative rpc timeout", raw: Config{AppID: 1, AppHash: "hash", RPCTimeout: "-1s"}, wantErr: true},
		{name: "minimal", raw: Config{AppID: 1, AppHash: "hash"}},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseRuntimeConfig(testCase.raw)
			if testCase.wantErr != (err != nil) {
				t.Fatalf("error = %v, want error %v", err, testCase.wantErr)
			}
		})
	}

	cfg, err := parseRuntimeConfig(Config{
		AppID:       7,
		AppHash:     " hash ",
		AuthTimeout: "4m",
		RPCTimeout:  "20s",
		Phone:       " +15550001111 ",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.appHash != "hash" || cfg.phone != "+15550001111" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.authTimeout != 4*time.Minute || cfg.rpcTimeout != 20*time.Second {
		t.Fatalf("timeouts = %v/%v", cfg.authTimeout, cfg.rpcTimeout)
	}
	if cfg.sessionFile != defaultRuntimeSessionFile {
		t.Fatalf("session file = %q", cfg.sessionFile)
	}
}

func TestNewGotdSessionStorage(t *testing.T) {
	t.Parallel()

	sessionPath := filepath.Join(t.TempDir(), "nested", "telegram", "session.json")
	storage, err := newGotdSessionStorage(sessionPath)
	if err != nil {
		t.Fatalf("new gotd session storage failed: %v", err)
	}
	if !filepath.IsAbs(storage.Path) {
		t.Fatalf("session path = %q, want absolute", storage.Path)
	}
	if _, err := newGotdSessionStorage("   "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestNewRuntimeValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewRuntime(Config{}, nil); err == nil {
		t.Fatal("expected config error")
	}
}
