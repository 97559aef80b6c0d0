package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultHubURL is the Hugging Face hub base URL.
const DefaultHubURL = "https://huggingface.co"

// LockFilename is the checksum lock written next to the downloaded assets.
const LockFilename = "assets.lock.json"

// DownloadOptions configures Download.
type DownloadOptions struct {
	Assets  Assets
	OutDir  string
	HFToken string
	// BaseURL overrides DefaultHubURL.
	BaseURL string
	Client  *http.Client
	Stdout  io.Writer
}

// ErrAccessDenied is returned when the hub rejects the credentials.
type ErrAccessDenied struct {
	Repo string
}

func (e *ErrAccessDenied) Error() string {
	return fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", e.Repo)
}

// ErrChecksum is returned when a downloaded file does not match its expected digest.
var ErrChecksum = errors.New("checksum mismatch")

type lockFile struct {
	Repo      string                `json:"repo"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// DownloadResult reports where the fetched assets landed.
type DownloadResult struct {
	VocabPath    string
	ManifestPath string
	LockPath     string
}

// Download fetches every asset into OutDir, verifies each against a pinned,
// locked or hub-reported SHA-256, and writes the graph manifest and lock file.
// Files already present with a matching digest are not fetched again.
func Download(ctx context.Context, opts DownloadOptions) (DownloadResult, error) {
	var res DownloadResult

	if opts.Assets.Repo == "" {
		return res, errors.New("repo is required")
	}

	if opts.OutDir == "" {
		return res, errors.New("out dir is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultHubURL
	}

	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return res, fmt.Errorf("create out dir: %w", err)
	}

	res.LockPath = filepath.Join(opts.OutDir, LockFilename)
	lock := readLock(res.LockPath)
	lock.Repo = opts.Assets.Repo
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	f := fetcher{opts: opts}

	for _, asset := range opts.Assets.Files {
		digest, err := f.fetch(ctx, asset, lock.Files[asset.Filename])
		if err != nil {
			return res, err
		}

		lock.Files[asset.Filename] = lockRecord{Revision: asset.Revision, SHA256: digest}
	}

	if err := writeLock(res.LockPath, lock); err != nil {
		return res, err
	}

	manifestPath, err := WriteGraphManifest(opts.OutDir, opts.Assets)
	if err != nil {
		return res, err
	}

	res.ManifestPath = manifestPath

	if v, ok := opts.Assets.VocabAsset(); ok {
		res.VocabPath = filepath.Join(opts.OutDir, filepath.FromSlash(v.Filename))
	}

	fmt.Fprintf(opts.Stdout, "wrote %s and %s\n", manifestPath, res.LockPath)

	return res, nil
}

type fetcher struct {
	opts DownloadOptions
}

func (f fetcher) fetch(ctx context.Context, asset Asset, locked lockRecord) (string, error) {
	expected := strings.ToLower(asset.SHA256)
	if expected == "" && locked.Revision == asset.Revision && isSHA256Hex(locked.SHA256) {
		expected = strings.ToLower(locked.SHA256)
	}

	local := filepath.Join(f.opts.OutDir, filepath.FromSlash(asset.Filename))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("create local subdir: %w", err)
	}

	if expected != "" {
		ok, err := existingMatches(local, expected)
		if err != nil {
			return "", err
		}

		if ok {
			fmt.Fprintf(f.opts.Stdout, "skip %s (checksum match)\n", asset.Filename)
			return expected, nil
		}
	}

	if expected == "" {
		// Small files such as vocab.txt carry a git blob ETag rather than a
		// SHA-256; those are trusted on first download and locked afterwards.
		expected, _ = f.metadataDigest(ctx, asset)
	}

	fmt.Fprintf(f.opts.Stdout, "download %s@%s -> %s\n", asset.Filename, asset.Revision, local)

	actual, err := f.download(ctx, asset, local)
	if err != nil {
		return "", err
	}

	if expected != "" && actual != expected {
		_ = os.Remove(local)
		return "", fmt.Errorf("%w for %s: expected %s got %s", ErrChecksum, asset.Filename, expected, actual)
	}

	fmt.Fprintf(f.opts.Stdout, "verified %s (sha256=%s)\n", asset.Filename, actual)

	return actual, nil
}

func (f fetcher) request(ctx context.Context, method string, asset Asset) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.resolveURL(asset), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if f.opts.HFToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.opts.HFToken)
	}

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, asset.Filename, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &ErrAccessDenied{Repo: f.opts.Assets.Repo}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %s", method, asset.Filename, resp.Status)
	}

	return resp, nil
}

func (f fetcher) metadataDigest(ctx context.Context, asset Asset) (string, error) {
	resp, err := f.request(ctx, http.MethodHead, asset)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	for _, key := range []string{"X-Linked-Etag", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", nil
}

func (f fetcher) download(ctx context.Context, asset Asset, outPath string) (string, error) {
	resp, err := f.request(ctx, http.MethodGet, asset)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp := outPath + ".tmp"

	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	pw := &progressWriter{w: f.opts.Stdout, total: resp.ContentLength, last: time.Now()}

	if _, err := io.Copy(io.MultiWriter(fh, h, pw), resp.Body); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)

		return "", fmt.Errorf("download %s: %w", asset.Filename, err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func (f fetcher) resolveURL(asset Asset) string {
	base := strings.TrimRight(f.opts.BaseURL, "/")
	return fmt.Sprintf("%s/%s/resolve/%s/%s", base, f.opts.Assets.Repo, asset.Revision, asset.Filename)
}

// progressWriter prints download progress at most every 700ms.
type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	last    time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))

	if time.Since(p.last) > 700*time.Millisecond {
		if p.total > 0 {
			pct := float64(p.written) * 100 / float64(p.total)
			fmt.Fprintf(p.w, "  progress: %.1f%% (%d/%d bytes)\n", pct, p.written, p.total)
		} else {
			fmt.Fprintf(p.w, "  progress: %d bytes\n", p.written)
		}

		p.last = time.Now()
	}

	return len(b), nil
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("stat existing file: %w", err)
	}

	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}

	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}

	return actual == expected, nil
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")

	return strings.Trim(v, "\"")
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLock(path string) lockFile {
	out := lockFile{Files: map[string]lockRecord{}}

	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}

	if err := json.Unmarshal(b, &out); err != nil || out.Files == nil {
		return lockFile{Files: map[string]lockRecord{}}
	}

	return out
}

func writeLock(path string, lock lockFile) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}

	return nil
}
