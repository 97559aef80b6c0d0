// Package testutil provides shared skip helpers and assertions for tests that
// need a real ONNX Runtime, model graphs or a vocabulary file.
//
// Each Require helper calls t.Skipf with a clear reason when the prerequisite
// is absent, so integration tests stay runnable in partial environments.
//
// Typical usage:
//
//	func TestEncoderIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    manifest := testutil.RequireModelManifest(t)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns its path otherwise. It checks TEXTSIM_ORT_LIB, then
// ORT_LIBRARY_PATH, then common system library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"TEXTSIM_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			_, err := os.Stat(p)
			if err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return ""
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		_, err := os.Stat(p)
		if err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set TEXTSIM_ORT_LIB or ORT_LIBRARY_PATH")

	return ""
}

// RequireModelManifest returns the manifest named by TEXTSIM_TEST_MANIFEST,
// falling back to models/manifest.json under the repository root.
func RequireModelManifest(tb testing.TB) string {
	tb.Helper()

	return requireFile(tb, "TEXTSIM_TEST_MANIFEST", filepath.Join("models", "manifest.json"), "model manifest")
}

// RequireVocabFile returns the vocabulary named by TEXTSIM_TEST_VOCAB,
// falling back to models/vocab.txt under the repository root.
func RequireVocabFile(tb testing.TB) string {
	tb.Helper()

	return requireFile(tb, "TEXTSIM_TEST_VOCAB", filepath.Join("models", "vocab.txt"), "vocabulary")
}

func requireFile(tb testing.TB, env, rel, what string) string {
	tb.Helper()

	if p := os.Getenv(env); p != "" {
		_, err := os.Stat(p)
		if err != nil {
			tb.Skipf("%s not found at %s=%q: %v", what, env, p, err)
			return ""
		}

		return p
	}

	p := filepath.Join(RepoRoot(), rel)

	_, err := os.Stat(p)
	if err != nil {
		tb.Skipf("%s not available at %q; set %s", what, p, env)
		return ""
	}

	return p
}

// RepoRoot walks up from the working directory to the directory holding go.mod.
// It returns "." when no go.mod is found.
func RepoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}

	for {
		_, err := os.Stat(filepath.Join(dir, "go.mod"))
		if err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}

		dir = parent
	}
}
