package live

import (
	"time"

	"github.com/aslahtp/menti-clone/internal/domain"
)

// ConnID is an opaque connection identifier handed out by the transport.
type ConnID string

// Session is the live, in-memory state of one quiz broadcast.
//
// current is -1 while the session is a waiting room, an index into questions
// while a question is on screen, and len(questions) once the quiz has run out.
// It only ever moves forward.
//
// All fields are guarded by the coordinator mutex.
type Session struct {
	id          int64
	title       string
	questions   []domain.Question
	current     int
	admin       ConnID
	adminUserID int64

	participants map[ConnID]struct{}
	startedAt    time.Time
	active       bool
}

func newWaitingSession(q *domain.Quiz, now time.Time) *Session {
	return &Session{
		id:           q.ID,
		title:        q.Title,
		questions:    q.Questions,
		current:      -1,
		participants: make(map[ConnID]struct{}),
		startedAt:    now,
	}
}

func newActiveSession(q *domain.Quiz, admin ConnID, adminUserID int64, now time.Time) *Session {
	s := newWaitingSession(q, now)
	s.admin = admin
	s.adminUserID = adminUserID
	s.current = 0
	s.active = true
	return s
}

func (s *Session) currentQuestion() *domain.Question {
	if s.current < 0 || s.current >= len(s.questions) {
		return nil
	}
	return &s.questions[s.current]
}

// advance moves to the next question, or returns nil when none remains.
func (s *Session) advance() *domain.Question {
	if s.current < len(s.questions)-1 {
		s.current++
		return &s.questions[s.current]
	}
	return nil
}

func (s *Session) addParticipant(id ConnID) {
	s.participants[id] = struct{}{}
}

func (s *Session) removeParticipant(id ConnID) {
	delete(s.participants, id)
}

// registry maps quiz id to at most one live session. Not safe for concurrent
// use on its own; callers hold the coordinator mutex.
type registry struct {
	sessions map[int64]*Session
}

func newRegistry() registry {
	return registry{sessions: make(map[int64]*Session)}
}

func (r registry) get(quizID int64) *Session {
	return r.sessions[quizID]
}

func (r registry) put(s *Session) {
	r.sessions[s.id] = s
}

func (r registry) remove(quizID int64) {
	delete(r.sessions, quizID)
}

// binding records which session a connection belongs to and who it is.
type binding struct {
	userID int64
	name   string
	role   string
	quizID int64
}

// directory maps a live connection to its binding. Same locking discipline
// as registry.
type directory struct {
	conns map[ConnID]binding
}

func newDirectory() directory {
	return directory{conns: make(map[ConnID]binding)}
}

func (d directory) get(id ConnID) (binding, bool) {
	b, ok := d.conns[id]
	return b, ok
}

func (d directory) put(id ConnID, b binding) {
	d.conns[id] = b
}

func (d directory) remove(id ConnID) {
	delete(d.conns, id)
}
