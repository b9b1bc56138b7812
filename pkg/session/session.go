// Package session persists discussion sessions to one JSON file per
// session, with search and paginated listing (spec §3's history schema,
// SPEC_FULL.md §C.2), ported from original_source's storage/models.py
// and storage/history.py. Adapted from the teacher's file-based
// pkg/conversation/state.go persistence idiom rather than a SQL driver —
// no SQL engine appears anywhere in the example pack (see DESIGN.md).
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyxforge/concord/pkg/log"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
)

// SenderType identifies who produced a Message.
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderAI     SenderType = "ai"
	SenderSystem SenderType = "system"
)

// Message is one entry in a session's history (original's HistoryMessage).
type Message struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"session_id"`
	SenderType SenderType             `json:"sender_type"`
	SenderID   string                 `json:"sender_id"`
	Content    string                 `json:"content"`
	RoundNum   int                    `json:"round_num"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Result is a session's final synthesized outcome (original's SessionResult).
type Result struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	Summary          string    `json:"summary"`
	KeyPoints        []string  `json:"key_points,omitempty"`
	ConsensusReached bool      `json:"consensus_reached"`
	Confidence       float64   `json:"confidence"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is a full discussion session: query, participants, messages,
// and (once finished) a Result. It owns its Messages and Result
// (cascade on delete, spec §3).
type Session struct {
	ID               string     `json:"id"`
	UserQuery        string     `json:"user_query"`
	TaskType         string     `json:"task_type"`
	ParticipatingAIs []string   `json:"participating_ais"`
	TotalRounds      int        `json:"total_rounds"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Messages         []Message  `json:"messages"`
	Result           *Result    `json:"result,omitempty"`
}

// New starts a session with a generated id (original's Session.create).
func New(userQuery, taskType string, participatingAIs []string) *Session {
	now := time.Now()
	return &Session{
		ID:               uuid.NewString(),
		UserQuery:        userQuery,
		TaskType:         taskType,
		ParticipatingAIs: participatingAIs,
		Status:           StatusInProgress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AddMessage appends a message and bumps UpdatedAt (original's add_message).
func (s *Session) AddMessage(senderType SenderType, senderID, content string, roundNum int, metadata map[string]interface{}) Message {
	msg := Message{
		ID:         uuid.NewString(),
		SessionID:  s.ID,
		SenderType: senderType,
		SenderID:   senderID,
		Content:    content,
		RoundNum:   roundNum,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.CreatedAt
	return msg
}

// SetResult finalizes the session with its result and marks it completed
// (original's set_result).
func (s *Session) SetResult(summary string, keyPoints []string, consensusReached bool, confidence float64) Result {
	res := Result{
		ID:               uuid.NewString(),
		SessionID:        s.ID,
		Summary:          summary,
		KeyPoints:        keyPoints,
		ConsensusReached: consensusReached,
		Confidence:       confidence,
		CreatedAt:        time.Now(),
	}
	s.Result = &res
	s.Status = StatusCompleted
	s.UpdatedAt = res.CreatedAt
	return res
}

// MarkError marks the session errored and, if a message is given, records
// it as a system message (original's mark_error).
func (s *Session) MarkError(errMessage string) {
	s.Status = StatusError
	s.UpdatedAt = time.Now()
	if errMessage != "" {
		s.AddMessage(SenderSystem, "system", "Error: "+errMessage, 0, nil)
	}
}

// MarkCancelled marks the session cancelled (original's mark_cancelled).
func (s *Session) MarkCancelled() {
	s.Status = StatusCancelled
	s.UpdatedAt = time.Now()
}

// DurationSeconds is the wall-clock span between CreatedAt and UpdatedAt.
func (s *Session) DurationSeconds() float64 {
	return s.UpdatedAt.Sub(s.CreatedAt).Seconds()
}

// SummaryText is a one-line preview for listings (original's summary_text).
func (s *Session) SummaryText() string {
	query := s.UserQuery
	if r := []rune(query); len(r) > 50 {
		query = string(r[:50]) + "..."
	}
	return fmt.Sprintf("%s (%d AIs, %d rounds)", query, len(s.ParticipatingAIs), s.TotalRounds)
}

type indexEntry struct {
	path      string
	createdAt time.Time
	status    Status
}

// Store is a one-file-per-session JSON store rooted at a directory.
// Writes go to a temp file and are atomically renamed over the target,
// giving save-is-all-or-nothing without a database engine. An in-memory
// index (by created_at/status) is rebuilt at Open and kept current on
// every Save/Delete, standing in for the original's SQL indices.
type Store struct {
	dir string

	mu    sync.RWMutex
	index map[string]indexEntry
}

// Open rebuilds a Store's index from dir's directory listing, creating
// dir if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).WithField("directory", dir).Error("failed to create session directory")
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	st := &Store{dir: dir, index: make(map[string]indexEntry)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") || strings.HasSuffix(ent.Name(), ".tmp") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping unreadable session file")
			continue
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping corrupt session file")
			continue
		}
		st.index[s.ID] = indexEntry{path: path, createdAt: s.CreatedAt, status: s.Status}
	}

	log.WithFields(map[string]interface{}{"directory": dir, "sessions": len(st.index)}).Info("session store opened")
	return st, nil
}

func (st *Store) pathFor(id string) string {
	return filepath.Join(st.dir, id+".json")
}

// Save writes s to disk atomically (temp file + os.Rename on the same
// filesystem) and updates the in-memory index.
func (st *Store) Save(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.WithError(err).Error("failed to marshal session")
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := st.pathFor(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		log.WithError(err).WithField("path", tmp).Error("failed to write session temp file")
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		log.WithError(err).WithField("path", path).Error("failed to commit session file")
		return fmt.Errorf("failed to commit session: %w", err)
	}

	st.mu.Lock()
	st.index[s.ID] = indexEntry{path: path, createdAt: s.CreatedAt, status: s.Status}
	st.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"session_id": s.ID,
		"messages":   len(s.Messages),
		"status":     s.Status,
	}).Info("session saved")
	return nil
}

func (st *Store) load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &s, nil
}

// Get loads a session by id, or (nil, nil) if it does not exist
// (original's get_session).
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	entry, ok := st.index[id]
	st.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return st.load(entry.path)
}

// Delete removes a session and its file, reporting whether it existed
// (original's delete_session).
func (st *Store) Delete(id string) (bool, error) {
	st.mu.Lock()
	entry, ok := st.index[id]
	if ok {
		delete(st.index, id)
	}
	st.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to delete session file: %w", err)
	}
	return true, nil
}

// Recent returns sessions ordered newest-first, paginated (original's
// get_recent).
func (st *Store) Recent(limit, offset int) ([]*Session, error) {
	ids := st.sortedByCreatedAtDesc()
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, err := st.Get(id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// Search full-text-matches query against each session's user query and
// message content, newest-first, capped at limit (original's search).
func (st *Store) Search(query string, limit int) ([]*Session, error) {
	query = strings.ToLower(query)
	var matches []*Session

	for _, id := range st.sortedByCreatedAtDesc() {
		s, err := st.Get(id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		if sessionMatches(s, query) {
			matches = append(matches, s)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

func sessionMatches(s *Session, query string) bool {
	if strings.Contains(strings.ToLower(s.UserQuery), query) {
		return true
	}
	for _, m := range s.Messages {
		if strings.Contains(strings.ToLower(m.Content), query) {
			return true
		}
	}
	if s.Result != nil && strings.Contains(strings.ToLower(s.Result.Summary), query) {
		return true
	}
	return false
}

func (st *Store) sortedByCreatedAtDesc() []string {
	st.mu.RLock()
	ids := make([]string, 0, len(st.index))
	createdAt := make(map[string]time.Time, len(st.index))
	for id, entry := range st.index {
		ids = append(ids, id)
		createdAt[id] = entry.createdAt
	}
	st.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		return createdAt[ids[i]].After(createdAt[ids[j]])
	})
	return ids
}

// Stats reports aggregate counters across the store (original's get_stats).
type Stats struct {
	TotalSessions     int
	CompletedSessions int
	TotalMessages     int
	AIUsage           map[string]int
}

// Stats computes aggregate counters by loading every session file.
func (st *Store) Stats() (Stats, error) {
	stats := Stats{AIUsage: make(map[string]int)}
	for _, id := range st.sortedByCreatedAtDesc() {
		s, err := st.Get(id)
		if err != nil {
			return Stats{}, err
		}
		if s == nil {
			continue
		}
		stats.TotalSessions++
		if s.Status == StatusCompleted {
			stats.CompletedSessions++
		}
		stats.TotalMessages += len(s.Messages)
		for _, ai := range s.ParticipatingAIs {
			stats.AIUsage[ai]++
		}
	}
	return stats, nil
}
