package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velesbot/veles/internal/observability"
)

// Store resolves sessions by (channel, chat id) and persists their message
// history as one JSONL file per session. Live sessions are kept in memory;
// a session is loaded from disk the first time it is resolved.
type Store struct {
	dir string

	mu        sync.Mutex
	sessions  map[string]*Session
	persisted map[string]int
}

// NewStore creates a session store rooted at dir. When dir is empty the
// default ~/.veles/sessions is used.
func NewStore(dir string) (*Store, error) {
	observability.EnsureRegistered()

	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".veles", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		sessions:  make(map[string]*Session),
		persisted: make(map[string]int),
	}

	log.Info().Str("dir", dir).Msg("Session store initialized")
	return s, nil
}

// GetOrCreate returns the session for (channel, chatID), creating it when
// unseen. Existing history on disk is loaded on first resolution; load
// failures are logged and yield an empty session rather than an error.
func (st *Store) GetOrCreate(channel, chatID string) *Session {
	key := sessionKey(channel, chatID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[key]; ok {
		return s
	}

	s := newSession(channel, chatID)
	if messages, err := st.loadFile(key); err != nil {
		log.Warn().Str("session_key", key).Err(err).Msg("Failed to load session history, starting empty")
	} else if len(messages) > 0 {
		s.restore(messages)
		st.persisted[key] = len(messages)
	}

	st.sessions[key] = s
	observability.SetActiveSessions(len(st.sessions))
	return s
}

// Save appends any not-yet-persisted messages of the session to its JSONL
// file.
func (st *Store) Save(s *Session) error {
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	key := s.Key()
	if err := validateKey(key); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	messages := s.Messages()
	from := st.persisted[key]
	if from >= len(messages) {
		return nil
	}

	file, err := os.OpenFile(st.path(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	for _, msg := range messages[from:] {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync session file: %w", err)
	}

	st.persisted[key] = len(messages)
	return nil
}

// ListKeys lists session keys that have history on disk.
func (st *Store) ListKeys() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".jsonl"))
	}
	return keys, nil
}

// Delete drops a session from memory and removes its file.
func (st *Store) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, key)
	delete(st.persisted, key)
	observability.SetActiveSessions(len(st.sessions))

	if err := os.Remove(st.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// FileInfo returns the on-disk size and mtime for a session key.
func (st *Store) FileInfo(key string) (os.FileInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return os.Stat(st.path(key))
}

// Close releases in-memory state.
func (st *Store) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*Session)
	st.persisted = make(map[string]int)
	return nil
}

func (st *Store) path(key string) string {
	return filepath.Join(st.dir, key+".jsonl")
}

func (st *Store) loadFile(key string) ([]Message, error) {
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if err := validateKey(key); err != nil {
		return nil, err
	}

	file, err := os.Open(st.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var messages []Message
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn().Str("session_key", key).Int("line", lineNum).Err(err).Msg("Failed to parse session line, skipping")
			continue
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func sessionKey(channel, chatID string) string {
	return fmt.Sprintf("%s:%s", channel, chatID)
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("session key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("session key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("session key cannot contain null bytes")
	}
	return nil
}
