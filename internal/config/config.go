package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Model     ModelConfig     `mapstructure:"model"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Server    ServerConfig    `mapstructure:"server"`
	Evaluate  EvaluateConfig  `mapstructure:"evaluate"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	VocabPath    string `mapstructure:"vocab_path"`
	ManifestPath string `mapstructure:"manifest_path"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
}

type ModelConfig struct {
	TextGraph  string `mapstructure:"text_graph"`
	ImageGraph string `mapstructure:"image_graph"`
	Pooling    string `mapstructure:"pooling"`
}

type TokenizerConfig struct {
	MaxLen int `mapstructure:"max_len"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
}

type EvaluateConfig struct {
	CasesPath string `mapstructure:"cases_path"`
	Workers   int    `mapstructure:"workers"`
	Format    string `mapstructure:"format"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps config keys to the flags that can set them. When a key has
// more than one flag, the first one changed on the command line wins.
var flagKeys = []struct {
	key   string
	flags []string
}{
	{"paths.vocab_path", []string{"paths-vocab-path", "vocab"}},
	{"paths.manifest_path", []string{"paths-manifest-path", "manifest"}},
	{"runtime.ort_library_path", []string{"runtime-ort-library-path", "ort-lib"}},
	{"runtime.ort_version", []string{"runtime-ort-version"}},
	{"runtime.ort_api_version", []string{"runtime-ort-api-version"}},
	{"model.text_graph", []string{"model-text-graph"}},
	{"model.image_graph", []string{"model-image-graph"}},
	{"model.pooling", []string{"model-pooling", "pooling"}},
	{"tokenizer.max_len", []string{"tokenizer-max-len", "max-len"}},
	{"server.listen_addr", []string{"server-listen-addr"}},
	{"server.workers", []string{"server-workers", "workers"}},
	{"server.shutdown_timeout", []string{"server-shutdown-timeout"}},
	{"server.max_text_bytes", []string{"server-max-text-bytes"}},
	{"server.request_timeout", []string{"server-request-timeout"}},
	{"evaluate.cases_path", []string{"evaluate-cases-path"}},
	{"evaluate.workers", []string{"evaluate-workers"}},
	{"evaluate.format", []string{"evaluate-format"}},
	{"log_level", []string{"log-level"}},
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			VocabPath:    "models/vocab.txt",
			ManifestPath: "models/manifest.json",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
			ORTAPIVersion:  23,
		},
		Model: ModelConfig{
			TextGraph:  "text_encoder",
			ImageGraph: "image_encoder",
			Pooling:    PoolingPooler,
		},
		Tokenizer: TokenizerConfig{
			MaxLen: 128,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
		},
		Evaluate: EvaluateConfig{
			CasesPath: "",
			Workers:   4,
			Format:    "text",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-vocab-path", defaults.Paths.VocabPath, "Path to WordPiece vocab.txt")
	fs.String("vocab", defaults.Paths.VocabPath, "Path to WordPiece vocab.txt (alias for --paths-vocab-path)")
	fs.String("paths-manifest-path", defaults.Paths.ManifestPath, "Path to ONNX graph manifest")
	fs.String("manifest", defaults.Paths.ManifestPath, "Path to ONNX graph manifest (alias for --paths-manifest-path)")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Int("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("model-text-graph", defaults.Model.TextGraph, "Manifest graph name of the text encoder")
	fs.String("model-image-graph", defaults.Model.ImageGraph, "Manifest graph name of the image encoder")
	fs.String("model-pooling", defaults.Model.Pooling, "Sentence vector pooling: pooler|cls|mean")
	fs.String("pooling", defaults.Model.Pooling, "Sentence vector pooling (alias for --model-pooling)")
	fs.Int("tokenizer-max-len", defaults.Tokenizer.MaxLen, "Maximum token sequence length")
	fs.Int("max-len", defaults.Tokenizer.MaxLen, "Maximum token sequence length (alias for --tokenizer-max-len)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent similarity requests")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent similarity requests (alias for --server-workers)")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max bytes per input text")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.String("evaluate-cases-path", defaults.Evaluate.CasesPath, "Path to a JSON or YAML case file")
	fs.Int("evaluate-workers", defaults.Evaluate.Workers, "Max concurrently scored cases")
	fs.String("evaluate-format", defaults.Evaluate.Format, "Report format: text|json")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		err := bindFlags(v, opts.Cmd.Flags())
		if err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix("TEXTSIM")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)

	err := v.BindEnv("runtime.ort_library_path", "TEXTSIM_ORT_LIB", "ORT_LIBRARY_PATH")
	if err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}

	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		err := v.ReadInConfig()
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("textsim")
		v.AddConfigPath(".")

		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config

	err = v.Unmarshal(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)
	v.SetDefault("paths.manifest_path", c.Paths.ManifestPath)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("model.text_graph", c.Model.TextGraph)
	v.SetDefault("model.image_graph", c.Model.ImageGraph)
	v.SetDefault("model.pooling", c.Model.Pooling)
	v.SetDefault("tokenizer.max_len", c.Tokenizer.MaxLen)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("evaluate.cases_path", c.Evaluate.CasesPath)
	v.SetDefault("evaluate.workers", c.Evaluate.Workers)
	v.SetDefault("evaluate.format", c.Evaluate.Format)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds each config key to its flag. Alias flags take effect only
// when they were set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		var chosen *pflag.Flag

		for _, name := range fk.flags {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}

			if chosen == nil || (f.Changed && !chosen.Changed) {
				chosen = f
			}
		}

		if chosen == nil {
			continue
		}

		err := v.BindPFlag(fk.key, chosen)
		if err != nil {
			return fmt.Errorf("%s: %w", fk.key, err)
		}
	}

	return nil
}
