// Package live implements the live quiz session coordinator: one admin
// connection drives a quiz while many participant connections receive
// synchronized question updates and submit answers.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
	"github.com/aslahtp/menti-clone/internal/event"
	"github.com/aslahtp/menti-clone/internal/telemetry"
)

const (
	defaultCacheTTL   = 5 * time.Minute
	defaultIdleAfter  = 30 * time.Minute
	defaultSweepEvery = 10 * time.Minute
)

// QuizStore loads quiz definitions. GetQuiz is participant-scoped and never
// returns answer keys; GetQuizForAdmin is restricted to the owning admin.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error)
	GetQuizForAdmin(ctx context.Context, quizID, adminID int64) (*domain.Quiz, error)
}

// ResultStore reads persisted quiz results, highest score first.
type ResultStore interface {
	ListResults(ctx context.Context, quizID int64) ([]domain.LeaderboardRow, error)
}

// TokenVerifier performs full verification of an identity token.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Outbox maps connection identifiers to their send capability. Broadcast
// delivers one message to many recipients so the transport can encode it
// once. Neither method may block: the coordinator calls both while holding
// its lock.
type Outbox interface {
	Send(id ConnID, msg any)
	Broadcast(ids []ConnID, msg any)
}

type Config struct {
	Quizzes  QuizStore
	Results  ResultStore
	Verifier TokenVerifier
	Outbox   Outbox
	EventBus *event.Bus

	// CacheTTL bounds how long a verified token is reused without
	// re-verification. IdleAfter and SweepEvery control eviction of
	// waiting rooms nobody started. Zero values mean defaults.
	CacheTTL   time.Duration
	IdleAfter  time.Duration
	SweepEvery time.Duration
}

// Coordinator owns all live quiz state for one process: the session registry,
// the connection directory, and the credential cache. A single mutex guards
// session mutation; persistence calls never run under it.
type Coordinator struct {
	quizzes  QuizStore
	results  ResultStore
	verifier TokenVerifier
	outbox   Outbox
	eb       *event.Bus

	cache     *credentialCache
	idleAfter time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions registry
	conns    directory

	done      chan struct{}
	closeOnce sync.Once
}

func New(c Config) *Coordinator {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = defaultIdleAfter
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = defaultSweepEvery
	}

	co := &Coordinator{
		quizzes:   c.Quizzes,
		results:   c.Results,
		verifier:  c.Verifier,
		outbox:    c.Outbox,
		eb:        c.EventBus,
		cache:     newCredentialCache(c.CacheTTL),
		idleAfter: c.IdleAfter,
		now:       time.Now,
		sessions:  newRegistry(),
		conns:     newDirectory(),
		done:      make(chan struct{}),
	}

	go co.sweepLoop(c.CacheTTL, c.SweepEvery)

	return co
}

// Close stops the background sweeps and clears all live state.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions = newRegistry()
	c.conns = newDirectory()
	c.cache.clear()
	telemetry.LiveSessions.Set(0)
}

// HandleMessage processes one inbound envelope from a connection. The
// transport delivers a connection's messages sequentially; messages from
// different connections arrive concurrently.
func (c *Coordinator) HandleMessage(ctx context.Context, id ConnID, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError(id, "Invalid message format")
		return
	}

	ident, err := c.authenticate(env.Token)
	if err != nil {
		c.sendError(id, errors.Convert(err).Message)
		return
	}

	telemetry.LiveMessages.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case msgJoin:
		c.handleJoin(ctx, id, ident, env)
	case msgStart:
		c.handleStart(ctx, id, ident, env)
	case msgNext:
		c.handleNext(ctx, id)
	case msgEnd:
		c.handleEnd(ctx, id)
	case msgSubmitAnswer:
		c.handleSubmitAnswer(id, env)
	case msgLeave:
		c.handleLeave(id)
	case msgGetLeaderboard:
		c.handleGetLeaderboard(ctx, id)
	default:
		c.sendError(id, fmt.Sprintf("Unknown message type: %s", env.Type))
	}
}

// HandleDisconnect cleans up after a closed connection. An admin close tears
// down its session; a participant close only shrinks the membership.
func (c *Coordinator) HandleDisconnect(ctx context.Context, id ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.conns.get(id)
	if !ok {
		return
	}

	if s := c.sessions.get(b.quizID); s != nil {
		if s.admin == id {
			slog.InfoContext(ctx, "live: admin disconnected, tearing down session", "quiz_id", s.id)
			c.broadcast(s, AdminDisconnectedMessage{Type: "admin_disconnected", Message: "Quiz admin disconnected"})
			c.destroySessionLocked(ctx, s, "admin disconnected")
		} else {
			s.removeParticipant(id)
		}
	}

	c.conns.remove(id)
}

// authenticate resolves a token to an identity, reusing the credential cache
// when the entry is still fresh.
func (c *Coordinator) authenticate(token string) (domain.Identity, error) {
	if ident, ok := c.cache.lookup(token); ok {
		return ident, nil
	}

	ident, err := c.verifier.Verify(token)
	if err != nil {
		return domain.Identity{}, err
	}

	c.cache.store(token, ident)
	return ident, nil
}

func (c *Coordinator) handleJoin(ctx context.Context, id ConnID, ident domain.Identity, env Envelope) {
	quizID, ok := c.parseQuizID(id, env)
	if !ok {
		return
	}

	// The lock is held from registry check through attach and dropped only
	// for the quiz load, so a session found here cannot be torn down before
	// this join attaches to it. When no session exists the quiz is loaded
	// unlocked and backs a fresh waiting room on reacquire, even if a
	// session appeared and was destroyed again in the meantime.
	var quiz *domain.Quiz

	c.mu.Lock()
	for c.sessions.get(quizID) == nil && quiz == nil {
		c.mu.Unlock()

		var err error
		quiz, err = c.quizzes.GetQuiz(ctx, quizID)
		if errors.HasCode(err, errors.CodeNotFound) {
			c.sendError(id, "Quiz not found")
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "live: load quiz failed", "op", "join", "quiz_id", quizID, "error", err)
			c.sendError(id, "Database error occurred")
			return
		}

		c.mu.Lock()
	}
	defer c.mu.Unlock()

	s := c.sessions.get(quizID)
	if s == nil {
		s = newWaitingSession(quiz, c.now())
		c.sessions.put(s)
		telemetry.LiveSessions.Inc()
		slog.InfoContext(ctx, "live: created waiting session", "quiz_id", quizID)
	}

	s.addParticipant(id)
	c.conns.put(id, binding{userID: ident.UserID, name: ident.Name, role: ident.Role, quizID: quizID})

	if q := s.currentQuestion(); q != nil {
		c.outbox.Send(id, JoinedMessage{
			Type:           "joined",
			Question:       participantQuestion(*q),
			QuestionIndex:  s.current,
			TotalQuestions: len(s.questions),
		})
	} else {
		c.outbox.Send(id, WaitingMessage{Type: "waiting", Message: "Waiting for admin to start the quiz"})
	}

	if s.admin != "" {
		c.outbox.Send(s.admin, UserJoinedMessage{
			Type:             "user_joined",
			UserID:           ident.UserID,
			ParticipantCount: len(s.participants),
		})
	}
}

func (c *Coordinator) handleStart(ctx context.Context, id ConnID, ident domain.Identity, env Envelope) {
	if !ident.IsAdmin() {
		c.sendError(id, fmt.Sprintf("Admin access required to start quiz. Your role: %q", ident.Role))
		return
	}

	quizID, ok := c.parseQuizID(id, env)
	if !ok {
		return
	}

	c.mu.Lock()
	if s := c.sessions.get(quizID); s != nil && s.admin != "" && s.current >= 0 {
		c.mu.Unlock()
		c.sendError(id, "Quiz is already started by another admin")
		return
	}
	c.mu.Unlock()

	quiz, err := c.quizzes.GetQuizForAdmin(ctx, quizID, ident.UserID)
	if errors.HasCode(err, errors.CodeNotFound) {
		c.sendError(id, "Quiz not found or unauthorized")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "live: load quiz failed", "op", "start", "quiz_id", quizID, "error", err)
		c.sendError(id, "Database error occurred")
		return
	}
	if len(quiz.Questions) == 0 {
		c.sendError(id, "Quiz has no questions")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions.get(quizID)
	if s != nil {
		// The already-started check must hold at attach time, not just at
		// the check before the unlocked quiz load.
		if s.admin != "" && s.current >= 0 {
			c.sendError(id, "Quiz is already started by another admin")
			return
		}

		// Take over the waiting room; early joiners stay in the set.
		slog.InfoContext(ctx, "live: taking over waiting session",
			"quiz_id", quizID, "participants", len(s.participants))
		s.questions = quiz.Questions
		s.admin = id
		s.adminUserID = ident.UserID
		s.current = 0
		s.active = true
	} else {
		s = newActiveSession(quiz, id, ident.UserID, c.now())
		c.sessions.put(s)
		telemetry.LiveSessions.Inc()
	}

	c.conns.put(id, binding{userID: ident.UserID, name: ident.Name, role: ident.Role, quizID: quizID})

	first := s.currentQuestion()
	c.outbox.Send(id, StartMessage{Type: "start", LiveQuiz: adminQuestion(*first)})

	c.broadcast(s, QuizStartedMessage{
		Type:           "quiz_started",
		Question:       participantQuestion(*first),
		QuestionIndex:  0,
		TotalQuestions: len(s.questions),
		Message:        "Quiz has started!",
	})

	slog.InfoContext(ctx, "live: quiz started",
		"quiz_id", quizID, "questions", len(s.questions), "participants", len(s.participants))
}

func (c *Coordinator) handleNext(ctx context.Context, id ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.conns.get(id)
	if !ok {
		c.sendError(id, "No active quiz session")
		return
	}

	s := c.sessions.get(b.quizID)
	if s == nil || !s.active {
		c.sendError(id, "Quiz session not found or inactive")
		return
	}

	if s.admin != id {
		c.sendError(id, "Only quiz admin can control questions")
		return
	}

	if q := s.advance(); q != nil {
		c.outbox.Send(id, NextMessage{Type: "next", LiveQuiz: adminQuestion(*q)})
		c.broadcast(s, QuestionUpdateMessage{
			Type:          "question_update",
			Question:      participantQuestion(*q),
			QuestionIndex: s.current,
		})
		return
	}

	// No further question: the quiz is complete.
	s.current = len(s.questions)
	c.outbox.Send(id, EndMessage{Type: "end", Message: "Quiz completed"})
	c.broadcast(s, QuizCompletedMessage{Type: "quiz_completed", Message: "Quiz has ended"})
	c.destroySessionLocked(ctx, s, "completed")
}

func (c *Coordinator) handleEnd(ctx context.Context, id ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.conns.get(id)
	if !ok {
		c.sendError(id, "No active quiz session")
		return
	}

	s := c.sessions.get(b.quizID)
	if s == nil {
		c.sendError(id, "Quiz session not found")
		return
	}

	if s.admin != id {
		c.sendError(id, "Only quiz admin can end quiz")
		return
	}

	c.outbox.Send(id, EndMessage{Type: "end", Message: "Quiz ended by admin"})
	c.broadcast(s, QuizEndedMessage{Type: "quiz_ended", Message: "Quiz ended by admin"})
	c.destroySessionLocked(ctx, s, "ended by admin")
}

func (c *Coordinator) handleSubmitAnswer(id ConnID, env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.conns.get(id)
	if !ok {
		c.sendError(id, "Not joined to any quiz")
		return
	}

	s := c.sessions.get(b.quizID)
	if s == nil || !s.active {
		c.sendError(id, "Quiz not active")
		return
	}

	// Correctness is not judged here; scoring happens at the submission
	// endpoint. The admin gets the raw answer for live monitoring.
	c.outbox.Send(id, AnswerSubmittedMessage{
		Type:          "answer_submitted",
		Message:       "Answer recorded successfully",
		QuestionIndex: s.current,
	})

	if s.admin != "" {
		c.outbox.Send(s.admin, AnswerReceivedMessage{
			Type:          "answer_received",
			UserID:        b.userID,
			UserName:      displayName(b.name),
			Answer:        env.Answer,
			QuestionIndex: s.current,
		})
	}
}

func (c *Coordinator) handleLeave(id ConnID) {
	c.mu.Lock()

	if b, ok := c.conns.get(id); ok {
		if s := c.sessions.get(b.quizID); s != nil {
			s.removeParticipant(id)

			if s.admin != "" {
				c.outbox.Send(s.admin, UserLeftMessage{
					Type:             "user_left",
					UserID:           b.userID,
					UserName:         displayName(b.name),
					ParticipantCount: len(s.participants),
				})
			}
		}
		c.conns.remove(id)
	}

	c.mu.Unlock()

	// Acknowledged even when the connection was never joined.
	c.outbox.Send(id, LeftQuizMessage{Type: "left_quiz", Message: "Successfully left the quiz"})
}

func (c *Coordinator) handleGetLeaderboard(ctx context.Context, id ConnID) {
	c.mu.Lock()
	b, ok := c.conns.get(id)
	c.mu.Unlock()

	if !ok {
		c.sendError(id, "Not joined to any quiz")
		return
	}

	rows, err := c.results.ListResults(ctx, b.quizID)
	if err != nil {
		slog.ErrorContext(ctx, "live: fetch leaderboard failed", "op", "get_leaderboard", "quiz_id", b.quizID, "error", err)
		c.sendError(id, "Failed to fetch leaderboard")
		return
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, LeaderboardEntry{
			Name:           displayName(r.Name),
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
		})
	}

	c.outbox.Send(id, LeaderboardMessage{Type: "leaderboard", Leaderboard: entries})
}

// destroySessionLocked removes s from the registry and clears its membership.
// Directory entries survive until each connection leaves or disconnects.
// Caller holds c.mu.
func (c *Coordinator) destroySessionLocked(ctx context.Context, s *Session, reason string) {
	c.sessions.remove(s.id)
	s.active = false
	s.admin = ""
	s.participants = make(map[ConnID]struct{})
	telemetry.LiveSessions.Dec()

	if c.eb != nil {
		c.eb.Publish(ctx, domain.EventSessionEnded{QuizID: s.id, Reason: reason})
	}

	slog.InfoContext(ctx, "live: session destroyed", "quiz_id", s.id, "reason", reason)
}

// broadcast fans msg out to every participant in one Outbox call. Caller
// holds c.mu.
func (c *Coordinator) broadcast(s *Session, msg any) {
	if len(s.participants) == 0 {
		return
	}

	ids := make([]ConnID, 0, len(s.participants))
	for p := range s.participants {
		ids = append(ids, p)
	}

	c.outbox.Broadcast(ids, msg)
}

func (c *Coordinator) sendError(id ConnID, message string) {
	c.outbox.Send(id, ErrorMessage{Type: "error", Message: message})
}

func (c *Coordinator) parseQuizID(id ConnID, env Envelope) (int64, bool) {
	if env.QuizID <= 0 {
		c.sendError(id, "Invalid quiz id")
		return 0, false
	}
	return int64(env.QuizID), true
}

func (c *Coordinator) sweepLoop(cacheEvery, idleEvery time.Duration) {
	cacheTick := time.NewTicker(cacheEvery)
	defer cacheTick.Stop()
	idleTick := time.NewTicker(idleEvery)
	defer idleTick.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-cacheTick.C:
			c.cache.sweep()
		case <-idleTick.C:
			c.evictIdle()
		}
	}
}

// evictIdle removes waiting rooms that nobody started within the idle
// threshold. Active sessions are never evicted, even with zero participants.
func (c *Coordinator) evictIdle() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.sessions.sessions {
		if !s.active && now.Sub(s.startedAt) > c.idleAfter {
			c.destroySessionLocked(context.Background(), s, "idle")
		}
	}
}

func displayName(name string) string {
	if name == "" {
		return "Anonymous"
	}
	return name
}
