// Package file loads boards from a directory of YAML or JSON documents.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

var extensions = []string{".yaml", ".yml", ".json"}

// Loader implements ports.BoardLoader using the local filesystem.
// Each board lives in <BasePath>/<id>.(yaml|yml|json).
type Loader struct {
	BasePath string
}

// New creates a new Loader with the given base path.
// If basePath is empty, it defaults to "boards".
func New(basePath string) *Loader {
	if basePath == "" {
		basePath = "boards"
	}
	return &Loader{BasePath: basePath}
}

// GetBoard reads and decodes the board file named after id.
func (l *Loader) GetBoard(_ context.Context, id string) (*domain.Board, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: invalid id %q", domain.ErrBoardNotFound, id)
	}
	for _, ext := range extensions {
		path := filepath.Join(l.BasePath, id+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrBoardNotFound, id)
}

// ListBoards returns the ids of every board file, sorted.
func (l *Loader) ListBoards(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !slices.Contains(extensions, ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadFile decodes a single board document. YAML is converted through its
// generic form so the JSON field names apply to both formats.
// Missing ids default to the file name and pin links are re-derived.
func LoadFile(path string) (*domain.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBoardNotFound, path)
		}
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", filepath.Base(path), err)
		}
	}

	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	if board.ID == "" {
		board.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	board.FixPins()
	return &board, nil
}

// Save writes the board as indented JSON atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (l *Loader) Save(_ context.Context, board *domain.Board) error {
	if board.ID == "" || strings.ContainsAny(board.ID, `/\`) {
		return fmt.Errorf("invalid board id %q", board.ID)
	}
	if err := os.MkdirAll(l.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure board directory: %w", err)
	}

	data, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}

	// 1. Create Temp File on the same filesystem
	tmpFile, err := os.CreateTemp(l.BasePath, "tmp-"+board.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	// 2. Write and fsync
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 3. Drop other encodings of the same board, then rename
	for _, ext := range extensions[:2] {
		_ = os.Remove(filepath.Join(l.BasePath, board.ID+ext))
	}
	if err := os.Rename(tmpPath, filepath.Join(l.BasePath, board.ID+".json")); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
