// Package api wires the HTTP and websocket surfaces onto a gin engine.
// Handlers translate between the wire format and the services; all real
// logic lives behind them.
package api

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aslahtp/menti-clone/internal/auth"
	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
	"github.com/aslahtp/menti-clone/internal/leaderboard"
	"github.com/aslahtp/menti-clone/internal/live"
	"github.com/aslahtp/menti-clone/internal/quiz"
	"github.com/aslahtp/menti-clone/internal/score"
)

type Config struct {
	Engine      *gin.Engine
	Auth        *auth.Service
	Quiz        *quiz.Service
	Score       *score.Service
	Leaderboard *leaderboard.Service
	Verifier    live.TokenVerifier
	Gateway     *live.Gateway
}

type API struct {
	auth        *auth.Service
	quiz        *quiz.Service
	score       *score.Service
	leaderboard *leaderboard.Service
	verifier    live.TokenVerifier
	gateway     *live.Gateway
}

func New(c Config) *API {
	a := &API{
		auth:        c.Auth,
		quiz:        c.Quiz,
		score:       c.Score,
		leaderboard: c.Leaderboard,
		verifier:    c.Verifier,
		gateway:     c.Gateway,
	}

	e := c.Engine

	e.POST("/signup", a.signUp)
	e.POST("/signin", a.signIn)
	e.GET("/profile", a.authRequired, a.profile)

	q := e.Group("/quiz", a.authRequired)
	q.POST("", a.createQuiz)
	q.GET("", a.listQuizzes)
	q.GET("/:quizId", a.getQuiz)
	q.GET("/admin/:quizId", a.getQuizForAdmin)
	q.POST("/:quizId/submit", a.submitResult)

	r := e.Group("/result", a.authRequired)
	r.GET("/:quizId", a.getResults)
	r.GET("/live/:quizId", a.getLiveLeaderboard)
	r.DELETE("/clearleaderboard/:quizId", a.clearLeaderboard)

	// The role path segment is diagnostics only; the coordinator re-derives
	// authorization from the token on every privileged message.
	e.GET("/ws/user/:quizId", a.serveWS)
	e.GET("/ws/admin/:quizId", a.serveWS)

	return a
}

func (a *API) serveWS(c *gin.Context) {
	a.gateway.Handle(c.Writer, c.Request)
}

// authRequired verifies the Authorization token and stores the identity on
// the request context.
func (a *API) authRequired(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	ident, err := a.verifier.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(401, gin.H{"message": "Unauthorized"})
		return
	}

	c.Set("identity", ident)
	c.Next()
}

func identityFrom(c *gin.Context) domain.Identity {
	ident, _ := c.Get("identity")
	id, _ := ident.(domain.Identity)
	return id
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"path", c.FullPath(), "error", err)
		c.JSON(e.HTTPStatusCode(), gin.H{"message": "Internal error"})
		return
	}

	c.JSON(e.HTTPStatusCode(), gin.H{"message": e.Message})
}
