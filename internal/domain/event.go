package domain

const (
	EventNameScoreRecorded = "score.recorded"
	EventNameSessionEnded  = "session.ended"
)

type EventScoreRecorded struct {
	Score Score
}

func (EventScoreRecorded) Name() string { return EventNameScoreRecorded }

type EventSessionEnded struct {
	QuizID int64
	Reason string
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }
