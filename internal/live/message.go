package live

import (
	"strconv"
	"strings"

	"github.com/aslahtp/menti-clone/internal/domain"
)

// Envelope is the inbound wire format. Every message carries a type tag and
// the sender's token; the remaining fields depend on the type.
type Envelope struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	QuizID QuizID `json:"quizId"`
	Answer string `json:"answer"`
}

// QuizID accepts both JSON numbers and numeric strings; clients pass route
// params through as-is. Anything unparsable decodes to zero, which handlers
// reject as an invalid id.
type QuizID int64

func (q *QuizID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*q = 0
		return nil
	}
	*q = QuizID(n)
	return nil
}

// Inbound type tags.
const (
	msgJoin           = "join"
	msgStart          = "start"
	msgNext           = "next"
	msgEnd            = "end"
	msgSubmitAnswer   = "submit_answer"
	msgLeave          = "leave"
	msgGetLeaderboard = "get_leaderboard"
)

// QuestionPayload is the participant-facing shape of a question. It never
// carries the answer key.
type QuestionPayload struct {
	ID      int64           `json:"id"`
	Title   string          `json:"title"`
	Options []OptionPayload `json:"options"`
}

type OptionPayload struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// LiveQuiz is the admin-facing shape of the question currently on screen.
type LiveQuiz struct {
	Title   string          `json:"title"`
	Options []OptionPayload `json:"options"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type JoinedMessage struct {
	Type           string          `json:"type"`
	Question       QuestionPayload `json:"question"`
	QuestionIndex  int             `json:"questionIndex"`
	TotalQuestions int             `json:"totalQuestions"`
}

type WaitingMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type UserJoinedMessage struct {
	Type             string `json:"type"`
	UserID           int64  `json:"userId"`
	ParticipantCount int    `json:"participantCount"`
}

type UserLeftMessage struct {
	Type             string `json:"type"`
	UserID           int64  `json:"userId"`
	UserName         string `json:"userName"`
	ParticipantCount int    `json:"participantCount"`
}

type StartMessage struct {
	Type     string   `json:"type"`
	LiveQuiz LiveQuiz `json:"liveQuiz"`
}

type NextMessage struct {
	Type     string   `json:"type"`
	LiveQuiz LiveQuiz `json:"liveQuiz"`
}

type QuizStartedMessage struct {
	Type           string          `json:"type"`
	Question       QuestionPayload `json:"question"`
	QuestionIndex  int             `json:"questionIndex"`
	TotalQuestions int             `json:"totalQuestions"`
	Message        string          `json:"message"`
}

type QuestionUpdateMessage struct {
	Type          string          `json:"type"`
	Question      QuestionPayload `json:"question"`
	QuestionIndex int             `json:"questionIndex"`
}

type EndMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type QuizCompletedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type QuizEndedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AdminDisconnectedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AnswerSubmittedMessage struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	QuestionIndex int    `json:"questionIndex"`
}

type AnswerReceivedMessage struct {
	Type          string `json:"type"`
	UserID        int64  `json:"userId"`
	UserName      string `json:"userName"`
	Answer        string `json:"answer"`
	QuestionIndex int    `json:"questionIndex"`
}

type LeftQuizMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type LeaderboardMessage struct {
	Type        string             `json:"type"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type LeaderboardEntry struct {
	Name           string `json:"name"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
}

func participantQuestion(q domain.Question) QuestionPayload {
	return QuestionPayload{
		ID:      q.ID,
		Title:   q.Title,
		Options: optionPayloads(q.Options),
	}
}

func adminQuestion(q domain.Question) LiveQuiz {
	return LiveQuiz{
		Title:   q.Title,
		Options: optionPayloads(q.Options),
	}
}

func optionPayloads(opts []domain.Option) []OptionPayload {
	out := make([]OptionPayload, 0, len(opts))
	for _, o := range opts {
		out = append(out, OptionPayload{ID: o.ID, Title: o.Title})
	}
	return out
}
