package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

// Handler serves leaderboards, the live feed and the admin grading surface.
type Handler struct {
	grading  *app.GradingService
	board    *app.LeaderboardService
	admin    *app.AdminService
	feed     *app.Feed
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(grading *app.GradingService, board *app.LeaderboardService, admin *app.AdminService, feed *app.Feed, log zerolog.Logger) *Handler {
	return &Handler{
		grading: grading,
		board:   board,
		admin:   admin,
		feed:    feed,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, envelope{"status": "ok"})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.board.Leaderboard(r.Context(), chi.URLParam(r, "season"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, lb)
}

func (h *Handler) tournamentLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.board.TournamentLeaderboard(r.Context(), chi.URLParam(r, "season"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, lb)
}

func (h *Handler) grade(w http.ResponseWriter, r *http.Request) {
	req := app.GradeRequest{
		Season: chi.URLParam(r, "season"),
		Grader: app.GraderName(r.URL.Query().Get("grader")),
	}
	if raw := r.URL.Query().Get("force_knockout"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			h.errorResponse(w, http.StatusBadRequest, "force_knockout must be a boolean")
			return
		}
		req.ForceKnockout = force
	}

	summary, err := h.grading.Grade(r.Context(), req)
	switch {
	case err == nil:
		h.respond(w, http.StatusOK, summary)
	case summary.Season == "":
		// Rejected before the run started; there is nothing to report.
		h.serviceError(w, r, err)
	default:
		// Failed runs report the cause alongside the partial counts.
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("run_id", summary.RunID.String()).Str("path", r.URL.Path).Msg("grading run failed")
		}
		h.respond(w, status, envelope{"error": err.Error(), "summary": summary})
	}
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	entry, err := h.board.Audit(r.Context(), chi.URLParam(r, "season"), chi.URLParam(r, "username"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, entry)
}

func (h *Handler) refreshLookups(w http.ResponseWriter, r *http.Request) {
	tables, err := h.admin.RefreshLookups(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, envelope{"players": len(tables.Players), "teams": len(tables.Teams)})
}

type setAnswerRequest struct {
	// Empty clears the answer key.
	Value string `json:"value" validate:"max=255"`
}

func (h *Handler) setCorrectAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.questionID(w, r)
	if !ok {
		return
	}
	var req setAnswerRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	q, err := h.admin.SetCorrectAnswer(r.Context(), id, req.Value)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, newQuestionResponse(q))
}

func (h *Handler) updateFromOdds(w http.ResponseWriter, r *http.Request) {
	id, ok := h.questionID(w, r)
	if !ok {
		return
	}
	q, err := h.admin.UpdateFromLatestOdds(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, newQuestionResponse(q))
}

type finalizeRequest struct {
	Winner string `json:"winner" validate:"required,max=255"`
}

func (h *Handler) finalizeWinners(w http.ResponseWriter, r *http.Request) {
	id, ok := h.questionID(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	req.Winner = strings.TrimSpace(req.Winner)
	if req.Winner == "" {
		h.errorResponse(w, http.StatusBadRequest, "winner must not be blank")
		return
	}
	q, err := h.admin.FinalizeWinners(r.Context(), id, req.Winner)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, newQuestionResponse(q))
}

func (h *Handler) questionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errorResponse(w, http.StatusBadRequest, "invalid question id")
		return 0, false
	}
	return id, true
}

// questionResponse flattens the question with its kind and variant details.
type questionResponse struct {
	domain.Question
	Kind    domain.QuestionKind    `json:"kind"`
	Details domain.QuestionVariant `json:"details"`
}

func newQuestionResponse(q domain.Question) questionResponse {
	return questionResponse{Question: q, Kind: q.Kind(), Details: q.Variant}
}
