// Package session manages on-disk conversation sessions: the replay
// file of structured messages and per-component log files.
package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/mkessler/cortexagent/pkg/cortex"
)

const (
	appDirName      = "cortexagent"
	sessionMetaFile = "session.toml"
	historyFileName = "history.jsonl"
)

type sessionMeta struct {
	SessionID string    `toml:"session_id"`
	Timestamp time.Time `toml:"timestamp"`
	AgentName string    `toml:"agent"`
}

type logHandler struct {
	f *os.File
	h slog.Handler
}

func newLogHandler(p string, opts *slog.HandlerOptions) (*logHandler, error) {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &logHandler{
		f: f,
		h: slog.NewJSONHandler(f, opts),
	}, nil
}

func (h *logHandler) Close() error {
	return h.f.Close()
}

// Session is one stored conversation.
type Session struct {
	meta        sessionMeta
	sessionPath string

	handlers map[string]*logHandler
}

func sessionsDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appDirName, "sessions"), nil
}

// New creates a new session directory with a fresh ID. When the user
// cache dir is unavailable it falls back to a temporary directory and
// the session is not listed later.
func New(agentName string) (*Session, error) {
	now := time.Now()
	dir, err := sessionsDir()
	if err != nil {
		tempDir, terr := os.MkdirTemp("", appDirName)
		if terr != nil {
			return nil, errors.Join(err, terr)
		}
		return &Session{
			meta:        sessionMeta{Timestamp: now, AgentName: agentName},
			sessionPath: tempDir,
			handlers:    map[string]*logHandler{},
		}, nil
	}

	sessionUUID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	s := &Session{
		meta: sessionMeta{
			SessionID: sessionUUID.String(),
			Timestamp: now,
			AgentName: agentName,
		},
		sessionPath: filepath.Join(dir, sessionUUID.String()),
		handlers:    map[string]*logHandler{},
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) init() error {
	if err := os.MkdirAll(s.sessionPath, 0755); err != nil {
		return err
	}
	encodedMeta, err := toml.Marshal(s.meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.sessionPath, sessionMetaFile), encodedMeta, 0644)
}

// NewFromID opens an existing session.
func NewFromID(sessionID string) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("illformed session ID %s: %w", sessionID, err)
	}
	dir, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	sessionPath := filepath.Join(dir, sessionID)
	metadata, err := os.ReadFile(filepath.Join(sessionPath, sessionMetaFile))
	if err != nil {
		return nil, err
	}
	var m sessionMeta
	if err := toml.Unmarshal(metadata, &m); err != nil {
		return nil, err
	}
	return &Session{
		meta:        m,
		sessionPath: sessionPath,
		handlers:    map[string]*logHandler{},
	}, nil
}

// List returns the stored sessions, oldest first.
func List() ([]*Session, error) {
	dir, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var results []*Session
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		s, err := NewFromID(ent.Name())
		if err != nil {
			continue
		}
		results = append(results, s)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].meta.Timestamp.Before(results[j].meta.Timestamp)
	})
	return results, nil
}

func (s *Session) ID() string {
	return s.meta.SessionID
}

func (s *Session) AgentName() string {
	return s.meta.AgentName
}

func (s *Session) historyFile() string {
	return filepath.Join(s.sessionPath, historyFileName)
}

// LoadHistory reads the replay file, one message per line.
func (s *Session) LoadHistory() ([]cortex.Message, error) {
	f, err := os.Open(s.historyFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var messages []cortex.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		m := cortex.Message{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, scanner.Err()
}

// AppendHistory appends messages to the replay file.
func (s *Session) AppendHistory(ms []cortex.Message) error {
	if len(ms) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.historyFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, m := range ms {
		encoded, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(encoded, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) logPath() string {
	return filepath.Join(s.sessionPath, "logs")
}

// NewLogHandler returns a JSON slog handler writing to a per-name
// file under the session's logs directory.
func (s *Session) NewLogHandler(name string) (slog.Handler, error) {
	h, ok := s.handlers[name]
	if ok {
		return h.h, nil
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	pathName := name
	if !strings.Contains(name, ".") {
		pathName = name + ".jsonl"
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	h, err := newLogHandler(filepath.Join(s.logPath(), pathName), nil)
	if err != nil {
		return nil, err
	}
	s.handlers[name] = h
	return h.h, nil
}

// GetLogger returns a logger backed by NewLogHandler.
func (s *Session) GetLogger(name string) (*slog.Logger, error) {
	h, err := s.NewLogHandler(name)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

func (s *Session) Close() error {
	var allerr error
	for name, h := range s.handlers {
		if err := h.Close(); err != nil {
			allerr = errors.Join(allerr, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	return allerr
}
