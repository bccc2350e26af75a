package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/report"
)

// ErrInvalidPathComponent is returned when a path component contains unsafe characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent checks that a string is safe to use as a path component.
// It rejects empty strings, path separators, and traversal sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileBackend implements Backend using JSONL files.
// Storage layout:
//
//	~/.mindwell/sessions/
//	  ├── sessions.json          # Session index
//	  ├── <session-id>.obs.jsonl # Emotion observations
//	  ├── <session-id>.turns.jsonl
//	  └── reports/
//	      └── <session-id>.json
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileBackend creates a new file-based storage backend.
// If baseDir is empty, uses ~/.mindwell/sessions.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".mindwell", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileBackend{baseDir: baseDir}, nil
}

func (f *FileBackend) indexPath() string {
	return filepath.Join(f.baseDir, "sessions.json")
}

func (f *FileBackend) loadIndexLocked() (map[string]*SessionRecord, error) {
	index := make(map[string]*SessionRecord)
	data, err := os.ReadFile(f.indexPath()) // #nosec G304 - path under validated base dir
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, fmt.Errorf("read sessions index: %w", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse sessions index: %w", err)
	}
	return index, nil
}

func (f *FileBackend) writeIndexLocked(index map[string]*SessionRecord) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions index: %w", err)
	}
	if err := os.WriteFile(f.indexPath(), data, 0600); err != nil {
		return fmt.Errorf("write sessions index: %w", err)
	}
	return nil
}

// SaveSession creates or updates session metadata.
func (f *FileBackend) SaveSession(ctx context.Context, rec *SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(rec.ID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.loadIndexLocked()
	if err != nil {
		return err
	}
	index[rec.ID] = rec
	return f.writeIndexLocked(index)
}

// LoadSession retrieves session metadata by ID.
func (f *FileBackend) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.loadIndexLocked()
	if err != nil {
		return nil, err
	}
	rec, ok := index[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// ListSessions returns all session records, most recently updated first.
func (f *FileBackend) ListSessions(ctx context.Context) ([]*SessionRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	index, err := f.loadIndexLocked()
	if err != nil {
		return nil, err
	}
	records := make([]*SessionRecord, 0, len(index))
	for _, rec := range index {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

func (f *FileBackend) appendLine(sessionID, suffix string, v any) error {
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.loadIndexLocked()
	if err != nil {
		return err
	}
	if _, ok := index[sessionID]; !ok {
		return ErrSessionNotFound
	}

	path := filepath.Join(f.baseDir, sessionID+suffix)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - path components validated to prevent traversal
	if err != nil {
		return fmt.Errorf("open %s: %w", suffix, err)
	}
	defer func() { _ = file.Close() }()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func (f *FileBackend) readLines(sessionID, suffix string, decode func([]byte) error) error {
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.loadIndexLocked()
	if err != nil {
		return err
	}
	if _, ok := index[sessionID]; !ok {
		return ErrSessionNotFound
	}

	path := filepath.Join(f.baseDir, sessionID+suffix)
	file, err := os.Open(path) // #nosec G304 - path components validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", suffix, err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if err := decode(scanner.Bytes()); err != nil {
			return fmt.Errorf("parse entry: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan entries: %w", err)
	}
	return nil
}

// AppendObservation adds an emotion observation to a session.
func (f *FileBackend) AppendObservation(ctx context.Context, sessionID string, obs emotion.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	return f.appendLine(sessionID, ".obs.jsonl", obs)
}

// LoadObservations retrieves all observations for a session in order.
func (f *FileBackend) LoadObservations(ctx context.Context, sessionID string) ([]emotion.Observation, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	var out []emotion.Observation
	err := f.readLines(sessionID, ".obs.jsonl", func(data []byte) error {
		var obs emotion.Observation
		if err := json.Unmarshal(data, &obs); err != nil {
			return err
		}
		out = append(out, obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendTurn adds a conversation turn to a session.
func (f *FileBackend) AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	return f.appendLine(sessionID, ".turns.jsonl", turn)
}

// LoadTurns retrieves all turns for a session in order.
func (f *FileBackend) LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	var out []chat.Turn
	err := f.readLines(sessionID, ".turns.jsonl", func(data []byte) error {
		var turn chat.Turn
		if err := json.Unmarshal(data, &turn); err != nil {
			return err
		}
		out = append(out, turn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveReport stores the end-of-session report.
func (f *FileBackend) SaveReport(ctx context.Context, rep *report.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(rep.SessionID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	reportsDir := filepath.Join(f.baseDir, "reports")
	if err := os.MkdirAll(reportsDir, 0700); err != nil {
		return fmt.Errorf("create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(reportsDir, rep.SessionID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadReport retrieves a session's report.
func (f *FileBackend) LoadReport(ctx context.Context, sessionID string) (*report.Report, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	path := filepath.Join(f.baseDir, "reports", sessionID+".json")
	data, err := os.ReadFile(path) // #nosec G304 - path components validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("read report: %w", err)
	}

	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}

// Close releases any resources held by the backend.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}
