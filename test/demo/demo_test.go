//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	baseURL = "http://localhost:8080"
	wsURL   = "ws://localhost:8080"
)

// TestLiveQuiz walks the whole flow against a running server: accounts,
// quiz creation, a live session with one admin and two participants, and
// the persisted results afterwards.
func TestLiveQuiz(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run := uuid.New().String()[:8]

	adminToken := makeAccount(t, ctx, "Admin "+run, run+"-admin@example.com", "ADMIN")
	userTokens := []string{
		makeAccount(t, ctx, "User1 "+run, run+"-u1@example.com", "USER"),
		makeAccount(t, ctx, "User2 "+run, run+"-u2@example.com", "USER"),
	}

	// Create a quiz with two questions.
	var quizID string
	{
		resp := doJSON(t, ctx, http.MethodPost, "/quiz", adminToken, map[string]any{
			"title": "Demo " + run,
			"questions": []map[string]any{
				{
					"title":   "Capital of France?",
					"option1": "Paris", "option2": "Lyon", "option3": "Nice", "option4": "Lille",
					"answer": "Paris",
				},
				{
					"title":   "Capital of Japan?",
					"option1": "Kyoto", "option2": "Tokyo", "option3": "Osaka", "option4": "Nara",
					"answer": "Tokyo",
				},
			},
		})
		quizID = resp["quizId"].(string)
		require.NotEmpty(t, quizID)
	}

	// Participants join first and sit in the waiting room.
	users := make([]*websocket.Conn, len(userTokens))
	for i, token := range userTokens {
		conn := dial(t, ctx, fmt.Sprintf("%s/ws/user/%s", wsURL, quizID))
		defer conn.CloseNow()
		users[i] = conn

		send(t, ctx, conn, map[string]any{"type": "join", "token": token, "quizId": quizID})
		waitFor(t, ctx, conn, "waiting")
	}

	// Admin starts; every participant sees the first question.
	admin := dial(t, ctx, fmt.Sprintf("%s/ws/admin/%s", wsURL, quizID))
	defer admin.CloseNow()

	send(t, ctx, admin, map[string]any{"type": "start", "token": adminToken, "quizId": quizID})
	waitFor(t, ctx, admin, "start")

	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range users {
		i, conn := i, conn
		g.Go(func() error {
			started := waitFor(t, gctx, conn, "quiz_started")
			if idx := started["questionIndex"].(float64); idx != 0 {
				return fmt.Errorf("user %d: question index = %v, want 0", i, idx)
			}

			send(t, gctx, conn, map[string]any{"type": "submit_answer", "token": userTokens[i], "answer": "Paris"})
			waitFor(t, gctx, conn, "answer_submitted")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	waitFor(t, ctx, admin, "answer_received")

	// Advance past the last question; the session ends for everyone.
	send(t, ctx, admin, map[string]any{"type": "next", "token": adminToken})
	waitFor(t, ctx, admin, "next")
	send(t, ctx, admin, map[string]any{"type": "next", "token": adminToken})
	waitFor(t, ctx, admin, "end")
	for _, conn := range users {
		waitFor(t, ctx, conn, "quiz_completed")
	}

	// Submit answers for grading and read back the persisted results.
	{
		quiz := doJSON(t, ctx, http.MethodGet, "/quiz/"+quizID, userTokens[0], nil)
		questions := quiz["questions"].([]any)
		require.Len(t, questions, 2)

		answers := make([]map[string]any, 0, len(questions))
		wants := []string{"Paris", "Tokyo"}
		for i, q := range questions {
			answers = append(answers, map[string]any{
				"questionId":     q.(map[string]any)["id"].(string),
				"selectedOption": wants[i],
			})
		}

		resp := doJSON(t, ctx, http.MethodPost, "/quiz/"+quizID+"/submit", userTokens[0], map[string]any{
			"answers": answers,
		})
		require.EqualValues(t, 2, resp["score"])

		results := doJSON(t, ctx, http.MethodGet, "/result/"+quizID, adminToken, nil)
		require.NotEmpty(t, results["results"])
	}
}

func makeAccount(t *testing.T, ctx context.Context, name, email, role string) string {
	t.Helper()

	doJSON(t, ctx, http.MethodPost, "/signup", "", map[string]any{
		"name": name, "email": email, "password": "passw0rd", "role": role,
	})

	resp := doJSON(t, ctx, http.MethodPost, "/signin", "", map[string]any{
		"email": email, "password": "passw0rd",
	})

	token, _ := resp["token"].(string)
	require.NotEmpty(t, token, "should receive a token for %s", email)
	return token
}

func doJSON(t *testing.T, ctx context.Context, method, path, token string, body any) map[string]any {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Less(t, resp.StatusCode, 300, "%s %s", method, path)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err, "should connect to %s", url)
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg map[string]any) {
	t.Helper()

	b, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, b))
}

// waitFor reads messages until one with the wanted type arrives. Unrelated
// broadcasts (user_joined, question_update for earlier rounds) are skipped.
func waitFor(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err, "waiting for %q", typ)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))

		if msg["type"] == typ {
			return msg
		}
		if msg["type"] == "error" {
			t.Fatalf("waiting for %q, got error: %v", typ, msg["message"])
		}
	}
}
