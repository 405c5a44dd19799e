package bot

import "sync"

// State is the position of a chat inside the lead wizard.
type State int

const (
	StateIdle State = iota
	StateAwaitingName
	StateAwaitingPhone
	StateAwaitingEmail
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingName:
		return "awaiting_name"
	case StateAwaitingPhone:
		return "awaiting_phone"
	case StateAwaitingEmail:
		return "awaiting_email"
	default:
		return "unknown"
	}
}

// Session holds one chat's wizard progress.
type Session struct {
	State State
	Draft LeadDraft
}

// LeadDraft accumulates wizard answers before the final insert.
type LeadDraft struct {
	Name  string
	Phone string
	Email string
}

// SessionStore keeps per-chat sessions keyed by chat ID. Sessions are values,
// so two chats can never observe each other's draft.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]Session)}
}

// Get returns the session for chatID; an idle zero session if none exists.
func (s *SessionStore) Get(chatID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[chatID]
}

// Set stores the session for chatID.
func (s *SessionStore) Set(chatID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

// Reset drops the session for chatID, returning the chat to idle.
func (s *SessionStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// Active returns the number of chats currently inside the wizard.
func (s *SessionStore) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.State != StateIdle {
			n++
		}
	}
	return n
}
