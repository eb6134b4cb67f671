package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aslahtp/menti-clone/internal/auth"
	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/leaderboard"
	"github.com/aslahtp/menti-clone/internal/quiz"
	"github.com/aslahtp/menti-clone/internal/score"
)

func (a *API) signUp(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	_, err := a.auth.SignUp(c.Request.Context(), auth.SignUpRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signup successful"})
}

func (a *API) signIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	resp, err := a.auth.SignIn(c.Request.Context(), auth.SignInRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": resp.Token, "message": "Signin successful"})
}

func (a *API) profile(c *gin.Context) {
	ident := identityFrom(c)

	u, err := a.auth.Profile(c.Request.Context(), ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    strconv.FormatInt(u.ID, 10),
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	})
}

type questionRequest struct {
	Title   string `json:"title"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
	Answer  string `json:"answer"`
}

func (a *API) createQuiz(c *gin.Context) {
	ident := identityFrom(c)
	if !ident.IsAdmin() {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var req struct {
		Title     string            `json:"title"`
		Questions []questionRequest `json:"questions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	questions := make([]quiz.QuestionInput, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, quiz.QuestionInput{
			Title:   q.Title,
			Options: []string{q.Option1, q.Option2, q.Option3, q.Option4},
			Answer:  q.Answer,
		})
	}

	quizID, err := a.quiz.CreateQuiz(c.Request.Context(), quiz.CreateQuizRequest{
		AdminID:   ident.UserID,
		Title:     req.Title,
		Questions: questions,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quizId":  strconv.FormatInt(quizID, 10),
		"message": "Quiz created successfully",
	})
}

func (a *API) listQuizzes(c *gin.Context) {
	ident := identityFrom(c)

	quizzes, err := a.quiz.ListQuizzes(c.Request.Context(), ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, gin.H{
			"id":    strconv.FormatInt(q.ID, 10),
			"title": q.Title,
		})
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": out})
}

func (a *API) getQuiz(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	q, err := a.quiz.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizResponse(q, false))
}

func (a *API) getQuizForAdmin(c *gin.Context) {
	ident := identityFrom(c)

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	q, err := a.quiz.GetQuizForAdmin(c.Request.Context(), quizID, ident.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizResponse(q, true))
}

// quizResponse flattens options into the option1..option4 shape the web
// client expects. Answer keys only appear in the admin view.
func quizResponse(q *domain.Quiz, withAnswers bool) gin.H {
	questions := make([]gin.H, 0, len(q.Questions))
	for _, question := range q.Questions {
		entry := gin.H{
			"id":    strconv.FormatInt(question.ID, 10),
			"title": question.Title,
		}
		for i, o := range question.Options {
			if i >= 4 {
				break
			}
			entry["option"+strconv.Itoa(i+1)] = o.Title
		}
		if withAnswers {
			entry["answer"] = question.Answer
		}
		questions = append(questions, entry)
	}

	return gin.H{
		"id":        strconv.FormatInt(q.ID, 10),
		"title":     q.Title,
		"questions": questions,
	}
}

func (a *API) submitResult(c *gin.Context) {
	ident := identityFrom(c)

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Answers []struct {
			QuestionID     string `json:"questionId"`
			SelectedOption string `json:"selectedOption"`
		} `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	answers := make([]score.Answer, 0, len(req.Answers))
	for _, ans := range req.Answers {
		questionID, err := strconv.ParseInt(ans.QuestionID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid question id"})
			return
		}
		answers = append(answers, score.Answer{
			QuestionID:     questionID,
			SelectedOption: ans.SelectedOption,
		})
	}

	resp, err := a.score.SubmitResult(c.Request.Context(), score.SubmitResultRequest{
		QuizID:   quizID,
		UserID:   ident.UserID,
		UserName: ident.Name,
		Answers:  answers,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":   resp.Score,
		"total":   resp.Total,
		"message": "Submission evaluated",
	})
}

func (a *API) getResults(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	rows, err := a.score.ListResults(c.Request.Context(), quizID)
	if err != nil {
		writeError(c, err)
		return
	}

	results := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		results = append(results, gin.H{
			"userId":         strconv.FormatInt(r.UserID, 10),
			"name":           r.Name,
			"score":          r.Score,
			"totalQuestions": r.TotalQuestions,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (a *API) getLiveLeaderboard(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	l, err := a.leaderboard.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		QuizID: quizID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, gin.H{
			"userId": strconv.FormatInt(e.UserID, 10),
			"name":   e.Name,
			"score":  e.Score,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"quizId":  strconv.FormatInt(l.QuizID, 10),
		"entries": entries,
	})
}

func (a *API) clearLeaderboard(c *gin.Context) {
	ident := identityFrom(c)
	if !ident.IsAdmin() {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := a.score.ClearResults(ctx, quizID); err != nil {
		writeError(c, err)
		return
	}
	if err := a.leaderboard.Clear(ctx, quizID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Leaderboard cleared"})
}

func quizIDParam(c *gin.Context) (int64, bool) {
	quizID, err := strconv.ParseInt(c.Param("quizId"), 10, 64)
	if err != nil || quizID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid quiz id"})
		return 0, false
	}
	return quizID, true
}
