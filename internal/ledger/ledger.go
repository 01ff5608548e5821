// Package ledger persists which generated image and audio files belong to
// which scene number.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
)

const (
	formatVersion  = 1
	lockRetryDelay = 25 * time.Millisecond
)

// Entry is the stored record for one scene. Either path may be empty until
// the corresponding asset has been generated.
type Entry struct {
	Scene string `json:"scene"`
	Image string `json:"image,omitempty"`
	Audio string `json:"audio,omitempty"`
}

type document struct {
	Version int     `json:"version"`
	Scenes  []Entry `json:"scenes"`
}

// Ledger is a JSON file of scene entries, rewritten in full on every update.
// Writers serialize on an in-process mutex and an advisory lock file so
// concurrent upserts from this or another process never lose updates.
type Ledger struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

func New(path string) *Ledger {
	return &Ledger{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Upsert merges the non-empty paths into the entry for sceneID and rewrites
// the ledger sorted by numeric scene id.
func (l *Ledger) Upsert(ctx context.Context, sceneID, imagePath, audioPath string) (Entry, error) {
	id, err := normalizeID(sceneID)
	if err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return Entry{}, fmt.Errorf("failed to create ledger dir: %w", err)
	}

	locked, err := l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to lock scene ledger: %w", err)
	}
	if !locked {
		return Entry{}, errors.New("failed to lock scene ledger")
	}
	defer func() {
		if err := l.lock.Unlock(); err != nil {
			log.Warn().Str("component", "ledger").Err(err).Msg("unlock failed")
		}
	}()

	doc, _, err := l.load()
	if err != nil {
		return Entry{}, err
	}

	entries := make(map[string]Entry, len(doc.Scenes)+1)
	for _, e := range doc.Scenes {
		entries[e.Scene] = e
	}

	entry := entries[id]
	entry.Scene = id
	if imagePath != "" {
		entry.Image = imagePath
	}
	if audioPath != "" {
		entry.Audio = audioPath
	}
	entries[id] = entry

	if err := l.write(sortedEntries(entries)); err != nil {
		return Entry{}, err
	}

	log.Info().
		Str("component", "ledger").
		Str("scene", id).
		Str("image", entry.Image).
		Str("audio", entry.Audio).
		Msg("scene ledger updated")

	return entry, nil
}

// Lookup returns the entry for sceneID. It fails with a NotFoundError when
// the ledger does not exist or has no record for the scene.
func (l *Ledger) Lookup(ctx context.Context, sceneID string) (Entry, error) {
	id, err := normalizeID(sceneID)
	if err != nil {
		return Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	doc, exists, err := l.load()
	if err != nil {
		return Entry{}, err
	}
	if !exists {
		return Entry{}, apperr.NotFound("scene report", "")
	}

	for _, e := range doc.Scenes {
		if e.Scene == id {
			return e, nil
		}
	}
	return Entry{}, apperr.NotFound("scene "+id, "")
}

// List returns every entry in numeric scene order. A missing ledger yields
// an empty list.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, _, err := l.load()
	if err != nil {
		return nil, err
	}
	if doc.Scenes == nil {
		return []Entry{}, nil
	}
	return doc.Scenes, nil
}

// load reads and validates the ledger file. A missing file is not an error;
// exists reports whether it was found.
func (l *Ledger) load() (doc document, exists bool, err error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{Version: formatVersion}, false, nil
	}
	if err != nil {
		return document{}, false, fmt.Errorf("failed to read scene ledger: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return document{}, true, fmt.Errorf("malformed scene ledger %s: %w", l.path, err)
	}
	if doc.Version != formatVersion {
		return document{}, true, fmt.Errorf("unsupported scene ledger version %d", doc.Version)
	}
	for _, e := range doc.Scenes {
		if _, err := normalizeID(e.Scene); err != nil {
			return document{}, true, fmt.Errorf("malformed scene ledger %s: %w", l.path, err)
		}
	}

	return doc, true, nil
}

// write replaces the ledger atomically via a temp file in the same directory.
func (l *Ledger) write(entries []Entry) error {
	data, err := json.MarshalIndent(document{Version: formatVersion, Scenes: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scene ledger: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".scenes-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("failed to replace scene ledger: %w", err)
	}
	return nil
}

func sortedEntries(entries map[string]Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].Scene)
		b, _ := strconv.Atoi(out[j].Scene)
		return a < b
	})
	return out
}

// normalizeID accepts positive integers only and returns their canonical form.
func normalizeID(sceneID string) (string, error) {
	n, err := strconv.Atoi(sceneID)
	if err != nil || n <= 0 {
		return "", apperr.Validation("invalid scene id %q", sceneID)
	}
	return strconv.Itoa(n), nil
}
