package models

import (
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/raido/distcache"
	"github.com/aukilabs/raido/spatial"
	"github.com/aukilabs/raido/streaming"
	"github.com/google/uuid"
)

// Snapshot is the state of a streaming session as published by the loop that
// owns it.
type Snapshot struct {
	Frame        uint32               `json:"frame"`
	Viewpoint    spatial.Vector3f     `json:"viewpoint"`
	HasViewpoint bool                 `json:"has_viewpoint"`
	CacheStats   distcache.CacheStats `json:"cache_stats"`
	Usage        streaming.Usage      `json:"usage"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Session represents a client connected to the stream endpoint.
type Session struct {
	ID          uint32
	SessionUUID string
	ClientID    string
	StartedAt   time.Time

	mutex    sync.RWMutex
	snapshot Snapshot
}

func NewSession(id uint32, clientID string) *Session {
	return &Session{
		ID:          id,
		SessionUUID: uuid.New().String(),
		ClientID:    clientID,
		StartedAt:   time.Now(),
	}
}

func (s *Session) SetSnapshot(snapshot Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.snapshot = snapshot
}

func (s *Session) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.snapshot
}

// SessionInfo describes a session for debug endpoints.
type SessionInfo struct {
	ID          uint32    `json:"id"`
	SessionUUID string    `json:"session_uuid"`
	ClientID    string    `json:"client_id"`
	StartedAt   time.Time `json:"started_at"`
	Snapshot    Snapshot  `json:"snapshot"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.ID,
		SessionUUID: s.SessionUUID,
		ClientID:    s.ClientID,
		StartedAt:   s.StartedAt,
		Snapshot:    s.Snapshot(),
	}
}

// SessionStore keeps track of the live sessions.
type SessionStore struct {
	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[uint32]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[uint32]*Session{}
}

// New creates and registers a session for the given client.
func (s *SessionStore) New(clientID string) *Session {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session := NewSession(s.ids.New(), clientID)
	s.sessions[session.ID] = session

	instrumentIncreaseSessionGauge()
	instrumentCountSession()
	return session
}

func (s *SessionStore) Remove(session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return
	}

	delete(s.sessions, session.ID)
	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge()
}

func (s *SessionStore) Get(id uint32) (*Session, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// List returns the live sessions ordered by id.
func (s *SessionStore) List() []*Session {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

func (s *SessionStore) Count() int {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sessions)
}
