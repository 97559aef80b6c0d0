package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRepo hosts the multilingual cased BERT encoder exported to ONNX.
const DefaultRepo = "Xenova/bert-base-multilingual-cased"

// DefaultRevision is fetched when no revision is given. Checksums for a
// moving revision are resolved from the hub metadata and then pinned in the
// lock file.
const DefaultRevision = "main"

// Asset is one file fetched from a model repository.
type Asset struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256,omitempty"`
	// Graph names the manifest entry for ONNX files; empty for the vocabulary.
	Graph string `json:"graph,omitempty"`
}

// Assets is the file set of one repository.
type Assets struct {
	Repo  string  `json:"repo"`
	Files []Asset `json:"files"`
}

// DefaultAssets lists the vocabulary and text encoder of a BERT export.
// revision falls back to DefaultRevision.
func DefaultAssets(repo, revision string) Assets {
	if revision == "" {
		revision = DefaultRevision
	}

	return Assets{
		Repo: repo,
		Files: []Asset{
			{Filename: "vocab.txt", Revision: revision},
			{Filename: "onnx/model.onnx", Revision: revision, Graph: "text_encoder"},
		},
	}
}

// WithImageEncoder appends an optional image encoder graph.
func (a Assets) WithImageEncoder(filename string) Assets {
	if filename == "" {
		return a
	}

	rev := DefaultRevision
	if len(a.Files) > 0 {
		rev = a.Files[0].Revision
	}

	a.Files = append(a.Files, Asset{Filename: filename, Revision: rev, Graph: "image_encoder"})

	return a
}

type graphManifest struct {
	Graphs []graphEntry `json:"graphs"`
}

type graphEntry struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

// WriteGraphManifest writes manifest.json into dir, listing every asset that
// names a graph. It returns the manifest path.
func WriteGraphManifest(dir string, assets Assets) (string, error) {
	var m graphManifest

	for _, f := range assets.Files {
		if f.Graph == "" {
			continue
		}

		m.Graphs = append(m.Graphs, graphEntry{Name: f.Graph, Filename: filepath.ToSlash(f.Filename)})
	}

	if len(m.Graphs) == 0 {
		return "", errors.New("no graph assets to list")
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode graph manifest: %w", err)
	}

	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write graph manifest: %w", err)
	}

	return path, nil
}

// VocabAsset returns the first .txt asset, the WordPiece vocabulary.
func (a Assets) VocabAsset() (Asset, bool) {
	for _, f := range a.Files {
		if f.Graph == "" && strings.HasSuffix(f.Filename, ".txt") {
			return f, true
		}
	}

	return Asset{}, false
}
