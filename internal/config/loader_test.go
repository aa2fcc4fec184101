package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gemgram.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ParsesModulesAndRelay(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: "1"
modules:
  channel.telegram:
    token: "abc"
relay:
  workers: 8
  welcome_text: "hello"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("version = %q", cfg.Version)
	}
	if _, ok := cfg.Modules["channel.telegram"]; !ok {
		t.Error("missing channel.telegram module section")
	}
	if cfg.Relay.Workers != 8 || cfg.Relay.WelcomeText != "hello" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("GEMGRAM_TEST_TOKEN", "tok-123")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{
			name: "set variable",
			in:   "token: ${GEMGRAM_TEST_TOKEN}",
			want: "token: tok-123",
		},
		{
			name: "default used when unset",
			in:   "bind: ${GEMGRAM_TEST_UNSET:-127.0.0.1:8080}",
			want: "bind: 127.0.0.1:8080",
		},
		{
			name: "set variable wins over default",
			in:   "token: ${GEMGRAM_TEST_TOKEN:-fallback}",
			want: "token: tok-123",
		},
		{
			name:    "unset without default fails",
			in:      "token: ${GEMGRAM_TEST_UNSET}",
			wantErr: "unresolved variable: GEMGRAM_TEST_UNSET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv([]byte(tt.in))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnv: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_SortsModuleIDs(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: "1"
modules:
  provider.gemini: {}
  channel.telegram: {}
  gateway.http: {}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ids := Resolve(cfg)
	want := []string{"channel.telegram", "gateway.http", "provider.gemini"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
