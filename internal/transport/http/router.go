package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/export"
)

// Handler exposes the quiz use cases over REST and websockets.
type Handler struct {
	service  *app.QuizService
	log      zerolog.Logger
	validate *validator.Validate
	admin    AdminCredentials
	ws       *WSHandler
}

// AdminCredentials guard the quiz administration routes. An empty hash
// leaves them open.
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

// NewHandler wires the HTTP surface. pollInterval drives the websocket
// expiry watcher.
func NewHandler(service *app.QuizService, admin AdminCredentials, pollInterval time.Duration, log zerolog.Logger) *Handler {
	log = log.With().Str("component", "http").Logger()
	return &Handler{
		service:  service,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		admin:    admin,
		ws:       NewWSHandler(service, pollInterval, log),
	}
}

// Router builds the chi router with middleware and every route mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", h.ws.ServeWS)
	r.Get("/ws/leaderboard", h.ws.ServeLeaderboard)
	r.Route("/api", h.Routes)
	return r
}

// Routes registers the REST API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/quizzes", h.handleListQuizzes)
	r.Get("/quizzes/{quizID}/leaderboard", h.handleLeaderboard)
	r.Post("/quizzes/{quizID}/attempts", h.handleStartAttempt)
	r.Get("/attempts/{attemptID}", h.handleGetAttempt)
	r.Put("/attempts/{attemptID}/answers/{index}", h.handleAnswer)
	r.Post("/attempts/{attemptID}/move", h.handleMove)
	r.Get("/attempts/{attemptID}/remaining", h.handleRemaining)
	r.Post("/attempts/{attemptID}/submit", h.handleSubmit)
	r.Get("/attempts/{attemptID}/result", h.handleAttemptResult)
	r.Get("/students/results", h.handleStudentResults)

	r.Group(func(admin chi.Router) {
		admin.Use(h.requireAdmin)
		admin.Post("/quizzes", h.handleCreateQuiz)
		admin.Get("/quizzes/{quizID}", h.handleGetQuiz)
		admin.Delete("/quizzes/{quizID}", h.handleDeleteQuiz)
		admin.Post("/quizzes/{quizID}/questions", h.handleAddQuestion)
		admin.Post("/quizzes/{quizID}/generate", h.handleGenerate)
		admin.Get("/quizzes/{quizID}/results", h.handleQuizResults)
		admin.Get("/quizzes/{quizID}/stats", h.handleStats)
		admin.Get("/questions", h.handleQuestionBank)
		admin.Get("/results", h.handleExport)
	})
}

func (h *Handler) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, newQuizSummary(q))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !h.decode(w, r, &req) {
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), req.Name, req.TimeLimitMinutes, domain.ScoringPolicy{
		Mode:                 domain.ScoringMode(req.ScoringMode),
		NegativeMarkPerWrong: req.NegativeMark,
		FreeText:             domain.FreeTextPolicy(req.FreeText),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req addQuestionRequest
	if !h.decode(w, r, &req) {
		return
	}
	qt, err := domain.ParseQuestionType(req.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	quiz, err := h.service.AddQuestion(r.Context(), chi.URLParam(r, "quizID"), domain.Question{
		Type:            qt,
		Prompt:          req.Prompt,
		Options:         req.Options,
		CanonicalAnswer: req.Answer,
		Explanation:     req.Explanation,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}
	quiz, added, err := h.service.GenerateQuestions(r.Context(), chi.URLParam(r, "quizID"), req.Text, req.Count, req.Difficulty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Added: added, Quiz: quiz})
}

func (h *Handler) handleQuizResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) handleQuestionBank(w http.ResponseWriter, r *http.Request) {
	bank, err := h.service.QuestionBank(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if bank == nil {
		bank = []domain.BankEntry{}
	}
	writeJSON(w, http.StatusOK, bank)
}

// handleExport streams ledger results as json (default) or xlsx.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := export.ParseFormat(raw)
		if err != nil {
			h.fail(w, r, domain.Invalidf("%v", err))
			return
		}
		format = f
	}
	quizID := r.URL.Query().Get("quiz_id")
	results, err := h.service.Results(r.Context(), quizID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, export.Build(quizID, results, time.Now())); err != nil {
		h.fail(w, r, err)
		return
	}
	if format == export.FormatXLSX {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startAttemptRequest
	if !h.decode(w, r, &req) {
		return
	}
	attempt, err := h.service.StartAttempt(r.Context(), chi.URLParam(r, "quizID"), domain.Identity{
		Name:           req.Name,
		RegistrationID: req.RegistrationID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(attempt))
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(attempt))
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.fail(w, r, domain.Invalidf("question index must be a number"))
		return
	}
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	attempt, err := h.service.Answer(r.Context(), chi.URLParam(r, "attemptID"), index, req.Response)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(attempt))
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	attempt, err := h.service.Move(r.Context(), chi.URLParam(r, "attemptID"), req.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(attempt))
}

func (h *Handler) handleRemaining(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.service.Remaining(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"remaining_seconds": remaining})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	attempt, result, err := h.service.Submit(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Attempt: h.view(attempt), Result: result})
}

func (h *Handler) handleAttemptResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := h.service.ResultsFor(r.Context(), domain.Identity{
		Name:           q.Get("name"),
		RegistrationID: q.Get("registration_id"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) view(a domain.Attempt) attemptView {
	return newAttemptView(a, h.service.Engine().RemainingSeconds(a))
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, r, domain.Invalidf("malformed JSON body: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, r, domain.Invalidf("%s", validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
