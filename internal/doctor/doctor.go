// Package doctor provides environment preflight checks for textsim.
package doctor

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-textsim/internal/onnx"
	"github.com/example/go-textsim/internal/vocab"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc detects the ONNX Runtime shared library.
type RuntimeFunc func() (onnx.RuntimeInfo, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Runtime detects the ONNX Runtime library.
	Runtime RuntimeFunc
	// SkipRuntime skips the runtime check (tokenizer-only use).
	SkipRuntime bool
	// APIVersion is the ORT C API version the runner requests. The detected
	// library's minor version must be at least this value.
	APIVersion int
	// VocabPath is the WordPiece vocabulary file.
	VocabPath string
	// ManifestPath is the model manifest. Empty skips the model checks.
	ManifestPath string
	// Graphs must be present in the manifest.
	Graphs []string
	// OptionalGraphs are reported when present and never fail.
	OptionalGraphs []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.SkipRuntime || cfg.Runtime == nil {
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	} else {
		info, err := cfg.Runtime()
		switch {
		case err != nil:
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		case info.Version == "":
			fmt.Fprintf(w, "%s onnx runtime: %s (version unknown)\n", PassMark, info.LibraryPath)
		default:
			if verErr := checkRuntimeVersion(info.Version, cfg.APIVersion); verErr != nil {
				res.fail(fmt.Sprintf("onnx runtime version: %v", verErr))
				fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, info.Version, verErr)
			} else {
				fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, info.Version, info.LibraryPath)
			}
		}
	}

	// ---- vocabulary -------------------------------------------------------
	checkVocab(cfg.VocabPath, w, &res)

	// ---- model manifest ---------------------------------------------------
	if cfg.ManifestPath == "" {
		fmt.Fprintf(w, "%s model manifest: skipped\n", PassMark)
		return res
	}

	sm, err := onnx.NewSessionManager(cfg.ManifestPath)
	if err != nil {
		res.fail(fmt.Sprintf("model manifest %q: %v", cfg.ManifestPath, err))
		fmt.Fprintf(w, "%s model manifest %s: %v\n", FailMark, cfg.ManifestPath, err)

		return res
	}

	fmt.Fprintf(w, "%s model manifest: %s\n", PassMark, cfg.ManifestPath)

	for _, name := range cfg.Graphs {
		s, err := sm.Require(name)
		if err != nil {
			res.fail(fmt.Sprintf("graph %q: %v", name, err))
			fmt.Fprintf(w, "%s graph %s: %v\n", FailMark, name, err)

			continue
		}

		fmt.Fprintf(w, "%s graph %s: %s\n", PassMark, name, s.Path)
	}

	for _, name := range cfg.OptionalGraphs {
		if s, ok := sm.Session(name); ok {
			fmt.Fprintf(w, "%s graph %s: %s\n", PassMark, name, s.Path)
		} else {
			fmt.Fprintf(w, "%s graph %s: not configured (optional)\n", PassMark, name)
		}
	}

	return res
}

func checkVocab(path string, w io.Writer, res *Result) {
	v, err := vocab.Load(path)
	if err != nil {
		res.fail(fmt.Sprintf("vocabulary: %v", err))
		fmt.Fprintf(w, "%s vocabulary %s: %v\n", FailMark, path, err)

		return
	}

	if v.Size() == 0 {
		res.fail(fmt.Sprintf("vocabulary %q is empty", path))
		fmt.Fprintf(w, "%s vocabulary %s: empty\n", FailMark, path)

		return
	}

	if missing := v.MissingSentinels(); len(missing) > 0 {
		res.fail(fmt.Sprintf("vocabulary %q lacks %s", path, strings.Join(missing, ", ")))
		fmt.Fprintf(w, "%s vocabulary %s: missing %s\n", FailMark, path, strings.Join(missing, ", "))

		return
	}

	fmt.Fprintf(w, "%s vocabulary: %s (%d tokens)\n", PassMark, path, v.Size())
}

// checkRuntimeVersion returns an error unless ver is a 1.x release whose
// minor version covers apiVersion. ORT's C API version tracks the minor
// release number. apiVersion <= 0 accepts any 1.x release.
func checkRuntimeVersion(ver string, apiVersion int) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if apiVersion > 0 && minor < apiVersion {
		return fmt.Errorf("API version %d requires ONNX Runtime >=1.%d, got 1.%d", apiVersion, apiVersion, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(strings.TrimPrefix(ver, "v"), ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
