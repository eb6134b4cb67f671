package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is a registered account row.
type User struct {
	ID    int64
	Name  string
	Email string
	Role  string
}

// Identity is the decoded content of a verified token.
type Identity struct {
	UserID int64
	Name   string
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
// The comparison is case-insensitive; tokens issued by older builds
// carry lowercase roles.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(i.Role, RoleAdmin)
}

// Quiz is a quiz definition with its ordered questions.
type Quiz struct {
	ID        int64
	Title     string
	AdminID   int64
	Questions []Question
}

// Question holds one question and its options. Answer is the correct
// option text and is only populated on admin-scoped loads.
type Question struct {
	ID      int64
	Title   string
	Options []Option
	Answer  string
}

type Option struct {
	ID    int64
	Title string
}

// LeaderboardRow is a persisted quiz result.
type LeaderboardRow struct {
	UserID         int64
	Name           string
	Score          int
	TotalQuestions int
}

// Score represents a user's graded result within a quiz.
type Score struct {
	QuizID     int64
	UserID     int64
	Name       string
	Value      decimal.Decimal
	Total      int
	SubmitTime time.Time
}

// Leaderboard is the live ranking for a quiz, sorted by score in
// descending order.
type Leaderboard struct {
	QuizID  int64
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID int64
	Name   string
	Score  float64
}
