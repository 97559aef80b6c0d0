package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}

	return &fakeBinder{fs: fs}
}

// chdirTemp runs the test in an empty directory so no stray textsim.yaml is picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Paths.VocabPath != "models/vocab.txt" {
		t.Errorf("VocabPath = %q; want %q", cfg.Paths.VocabPath, "models/vocab.txt")
	}

	if cfg.Paths.ManifestPath != "models/manifest.json" {
		t.Errorf("ManifestPath = %q; want %q", cfg.Paths.ManifestPath, "models/manifest.json")
	}

	if cfg.Runtime.ORTAPIVersion != 23 {
		t.Errorf("Runtime.ORTAPIVersion = %d; want 23", cfg.Runtime.ORTAPIVersion)
	}

	if cfg.Model.TextGraph != "text_encoder" {
		t.Errorf("Model.TextGraph = %q; want text_encoder", cfg.Model.TextGraph)
	}

	if cfg.Model.Pooling != PoolingPooler {
		t.Errorf("Model.Pooling = %q; want %q", cfg.Model.Pooling, PoolingPooler)
	}

	if cfg.Tokenizer.MaxLen != 128 {
		t.Errorf("Tokenizer.MaxLen = %d; want 128", cfg.Tokenizer.MaxLen)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.Workers != 2 {
		t.Errorf("Server.Workers = %d; want 2", cfg.Server.Workers)
	}

	if cfg.Server.ShutdownTimeout != 30 {
		t.Errorf("Server.ShutdownTimeout = %d; want 30", cfg.Server.ShutdownTimeout)
	}

	if cfg.Server.MaxTextBytes != 4096 {
		t.Errorf("Server.MaxTextBytes = %d; want 4096", cfg.Server.MaxTextBytes)
	}

	if cfg.Evaluate.Workers != 4 {
		t.Errorf("Evaluate.Workers = %d; want 4", cfg.Evaluate.Workers)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

// --- NormalizePooling ---

func TestNormalizePooling(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"pooler", "pooler", PoolingPooler, false},
		{"cls", "cls", PoolingCLS, false},
		{"mean", "mean", PoolingMean, false},
		{"uppercase", "MEAN", PoolingMean, false},
		{"spaces", "  cls  ", PoolingCLS, false},
		{"output name alias", "pooler_output", PoolingPooler, false},
		{"average alias", "avg", PoolingMean, false},
		{"empty defaults to pooler", "", PoolingPooler, false},
		{"whitespace defaults to pooler", "   ", PoolingPooler, false},
		{"invalid", "max", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePooling(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizePooling(%q) = %q, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizePooling(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizePooling(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"paths-vocab-path", "models/vocab.txt"},
		{"vocab", "models/vocab.txt"},
		{"paths-manifest-path", "models/manifest.json"},
		{"ort-lib", ""},
		{"model-pooling", "pooler"},
		{"tokenizer-max-len", "128"},
		{"server-listen-addr", ":8080"},
		{"workers", "2"},
		{"evaluate-workers", "4"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestFlagKeys_AllRegistered(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for _, fk := range flagKeys {
		for _, name := range fk.flags {
			if fs.Lookup(name) == nil {
				t.Errorf("key %q refers to unregistered flag %q", fk.key, name)
			}
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg != defaults {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	chdirTemp(t)

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd: newFlagBinder(t, defaults,
			"--pooling=mean",
			"--workers=8",
			"--log-level=debug",
			"--tokenizer-max-len=64",
		),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.Pooling != "mean" {
		t.Errorf("Model.Pooling = %q; want mean", cfg.Model.Pooling)
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}

	if cfg.Tokenizer.MaxLen != 64 {
		t.Errorf("Tokenizer.MaxLen = %d; want 64", cfg.Tokenizer.MaxLen)
	}
}

func TestLoad_CanonicalFlagBeatsUnsetAlias(t *testing.T) {
	chdirTemp(t)

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--paths-vocab-path=/canon/vocab.txt"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.VocabPath != "/canon/vocab.txt" {
		t.Errorf("VocabPath = %q; want /canon/vocab.txt", cfg.Paths.VocabPath)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TEXTSIM_LOG_LEVEL", "warn")
	t.Setenv("TEXTSIM_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("TEXTSIM_PATHS_VOCAB_PATH", "/env/vocab.txt")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.Paths.VocabPath != "/env/vocab.txt" {
		t.Errorf("Paths.VocabPath = %q; want /env/vocab.txt", cfg.Paths.VocabPath)
	}
}

func TestLoad_ORTLibEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TEXTSIM_ORT_LIB", "/opt/ort/libonnxruntime.so")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runtime.ORTLibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("ORTLibraryPath = %q; want /opt/ort/libonnxruntime.so", cfg.Runtime.ORTLibraryPath)
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TEXTSIM_LOG_LEVEL", "warn")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--log-level=error"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want error", cfg.LogLevel)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	chdirTemp(t)

	cfgFile := filepath.Join(t.TempDir(), "textsim.yaml")

	content := `
log_level: error
server:
  workers: 16
  listen_addr: ":7777"
model:
  pooling: cls
tokenizer:
  max_len: 256
`

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}

	if cfg.Model.Pooling != "cls" {
		t.Errorf("Model.Pooling = %q; want cls", cfg.Model.Pooling)
	}

	if cfg.Tokenizer.MaxLen != 256 {
		t.Errorf("Tokenizer.MaxLen = %d; want 256", cfg.Tokenizer.MaxLen)
	}

	// Untouched keys keep their defaults.
	if cfg.Paths.VocabPath != defaults.Paths.VocabPath {
		t.Errorf("VocabPath = %q; want %q", cfg.Paths.VocabPath, defaults.Paths.VocabPath)
	}
}

func TestLoad_ConfigFileDiscoveredInWorkingDir(t *testing.T) {
	chdirTemp(t)

	err := os.WriteFile("textsim.yaml", []byte("evaluate:\n  workers: 3\n"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Evaluate.Workers != 3 {
		t.Errorf("Evaluate.Workers = %d; want 3", cfg.Evaluate.Workers)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "bad.yaml")

	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/textsim.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_NilCmd(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load(LoadOptions{
		Cmd:      nil,
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.ManifestPath != "models/manifest.json" {
		t.Errorf("ManifestPath = %q; want default", cfg.Paths.ManifestPath)
	}
}
