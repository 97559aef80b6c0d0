package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-textsim/internal/testutil"
)

func TestRepoRoot_HasGoMod(t *testing.T) {
	root := testutil.RepoRoot()

	_, err := os.Stat(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("go.mod not found under RepoRoot() %q: %v", root, err)
	}
}

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("TEXTSIM_ORT_LIB", "/nonexistent/libonnxruntime.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}

	if got := testutil.RequireONNXRuntime(fakeT); got != "" {
		t.Errorf("RequireONNXRuntime = %q; want empty path", got)
	}

	if !skipped {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

func TestRequireONNXRuntime_ReturnsEnvPath(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")

	err := os.WriteFile(lib, []byte("fake"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("TEXTSIM_ORT_LIB", lib)

	if got := testutil.RequireONNXRuntime(t); got != lib {
		t.Errorf("RequireONNXRuntime = %q; want %q", got, lib)
	}
}

func TestRequireVocabFile_SkipsWhenEnvPathMissing(t *testing.T) {
	t.Setenv("TEXTSIM_TEST_VOCAB", filepath.Join(t.TempDir(), "missing.txt"))

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireVocabFile(fakeT)

	if !skipped {
		t.Error("expected RequireVocabFile to skip when the file is absent")
	}
}

func TestAssertCHWImage_Accepts(t *testing.T) {
	data := make([]float32, 3*2*2)
	for i := range data {
		data[i] = float32(i) / float32(len(data))
	}

	testutil.AssertCHWImage(t, data, 3, 2, 2)
}

func TestAssertScoreInRange_Fails(t *testing.T) {
	failed := false
	fakeT := &skipTracker{TB: t, onSkip: func() {}, onFatal: func() { failed = true }}
	testutil.AssertScoreInRange(fakeT, 0.95, 0.3, 0.8)

	if !failed {
		t.Error("expected AssertScoreInRange to fail for 0.95 in [0.3, 0.8]")
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip and Fatal calls.
type skipTracker struct {
	testing.TB
	onSkip  func()
	onFatal func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip; that would skip the outer test.
}

func (s *skipTracker) Fatalf(_ string, _ ...any) {
	if s.onFatal != nil {
		s.onFatal()
	}
}
