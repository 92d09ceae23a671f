package match

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/internal/auth"
	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/match/scoring"
	"github.com/loop-dev/loop-battle/internal/problem"
	"github.com/loop-dev/loop-battle/internal/room"
	httperrors "github.com/loop-dev/loop-battle/pkg/http/errors"
)

// ProblemCatalog serves the problem bank and its reference data.
type ProblemCatalog interface {
	List(ctx context.Context, f problem.Filter) ([]battle.Problem, error)
	Get(ctx context.Context, id int64) (battle.Problem, error)
	Subjects(ctx context.Context) ([]string, error)
}

// HTTPHandlers provides REST endpoints for rooms and matches.
type HTTPHandlers struct {
	service  *Service
	problems ProblemCatalog
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for room and match endpoints.
func NewHTTPHandlers(service *Service, problems ProblemCatalog, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service:  service,
		problems: problems,
		logger:   logger.With().Str("component", "match_http").Logger(),
	}
}

// Register mounts the routes. throttle guards password checks and joins.
func (h *HTTPHandlers) Register(r chi.Router, throttle func(http.Handler) http.Handler) {
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/problems", h.ListProblems)
	r.Get("/problems/{problemID}", h.GetProblem)
	r.Get("/types", h.ListTypes)
	r.Get("/subjects", h.ListSubjects)
	r.Get("/statuses", h.ListStatuses)
	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", h.ListRooms)
		r.Post("/", h.CreateRoom)
		r.Route("/{roomID}", func(r chi.Router) {
			r.Get("/", h.GetRoom)
			r.Delete("/", h.CloseRoom)
			r.With(throttle).Post("/verify-password", h.VerifyPassword)
			r.With(throttle).Post("/join", h.Join)
			r.Get("/progress", h.Progress)
			r.Put("/answers/{problemID}", h.RecordAnswer)
			r.Post("/finalize", h.Finalize)
			r.Post("/submit-result", h.SubmitResult)
			r.Get("/result", h.GetResult)
		})
	})
}

type playerResponse struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Grade    string `json:"grade,omitempty"`
}

type roomResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Mode        string          `json:"mode"`
	IsPrivate   bool            `json:"isPrivate"`
	Status      string          `json:"status"`
	Host        playerResponse  `json:"host"`
	Guest       *playerResponse `json:"guest,omitempty"`
	ProblemIDs  []int64         `json:"problemIds"`
	PlayerCount int             `json:"playerCount"`
	Capacity    int             `json:"capacity"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

type problemResponse struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Prompt  string   `json:"prompt"`
	Subject string   `json:"subject,omitempty"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

type submissionResponse struct {
	Finalized            bool      `json:"finalized"`
	Trigger              string    `json:"trigger"`
	ElapsedSeconds       int       `json:"elapsedSeconds"`
	CorrectCount         int       `json:"correctCount"`
	Attempted            int       `json:"attempted"`
	Total                int       `json:"total"`
	AccuracyPercent      int       `json:"accuracyPercent"`
	RemainingTimePercent int       `json:"remainingTimePercent"`
	TotalScore           int       `json:"totalScore"`
	FinalizedAt          time.Time `json:"finalizedAt"`
}

type progressResponse struct {
	Cursor           int                 `json:"cursor"`
	Answered         int                 `json:"answered"`
	Total            int                 `json:"total"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	Finalized        bool                `json:"finalized"`
	Submission       *submissionResponse `json:"submission,omitempty"`
}

type roomDetailResponse struct {
	roomResponse
	DurationSeconds int               `json:"durationSeconds"`
	Deadline        *time.Time        `json:"deadline,omitempty"`
	Problems        []problemResponse `json:"problems,omitempty"`
	Progress        *progressResponse `json:"progress,omitempty"`
}

type sessionResponse struct {
	RoomID          string            `json:"roomId"`
	Mode            string            `json:"mode"`
	Status          string            `json:"status"`
	DurationSeconds int               `json:"durationSeconds"`
	StartedAt       *time.Time        `json:"startedAt,omitempty"`
	Deadline        *time.Time        `json:"deadline,omitempty"`
	Players         []playerResponse  `json:"players"`
	Problems        []problemResponse `json:"problems"`
}

type finalizeResponse struct {
	Submission submissionResponse `json:"submission"`
	Response
}

func toPlayer(p battle.Player) playerResponse {
	return playerResponse{UserID: p.ID.String(), Nickname: p.Nickname, Grade: string(p.Grade)}
}

func toRoom(r battle.Room) roomResponse {
	out := roomResponse{
		ID:          r.ID.String(),
		Title:       r.Title,
		Mode:        string(r.Mode),
		IsPrivate:   r.Private,
		Status:      string(r.Status),
		Host:        toPlayer(r.Host),
		ProblemIDs:  r.ProblemIDs,
		PlayerCount: len(r.Players()),
		Capacity:    battle.Capacity,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	if r.Guest != nil {
		g := toPlayer(*r.Guest)
		out.Guest = &g
	}
	return out
}

// toProblems never carries the answer key.
func toProblems(problems []battle.Problem) []problemResponse {
	out := make([]problemResponse, 0, len(problems))
	for _, p := range problems {
		pr := problemResponse{ID: p.ID, Title: p.Title, Prompt: p.Prompt, Subject: p.Subject}
		if p.Body != nil {
			pr.Type = string(p.Body.Kind())
		}
		if mc, ok := p.Body.(battle.MultipleChoice); ok {
			pr.Options = mc.Options
		}
		out = append(out, pr)
	}
	return out
}

func toSubmission(s Submission) submissionResponse {
	return submissionResponse{
		Finalized:            s.Finalized,
		Trigger:              string(s.Trigger),
		ElapsedSeconds:       int(s.Elapsed / time.Second),
		CorrectCount:         s.CorrectCount,
		Attempted:            s.Attempted,
		Total:                s.Total,
		AccuracyPercent:      s.AccuracyPercent,
		RemainingTimePercent: s.RemainingTimePercent,
		TotalScore:           scoring.TotalScore(s.AccuracyPercent, s.RemainingTimePercent),
		FinalizedAt:          s.FinalizedAt,
	}
}

func toProgress(p Progress) progressResponse {
	out := progressResponse{
		Cursor:           p.Cursor,
		Answered:         p.Answered,
		Total:            p.Total,
		RemainingSeconds: p.RemainingSeconds,
		Finalized:        p.Submission != nil,
	}
	if p.Submission != nil {
		s := toSubmission(*p.Submission)
		out.Submission = &s
	}
	return out
}

// ListProblems handles GET /problems
func (h *HTTPHandlers) ListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := problem.Filter{Subject: q.Get("subject"), Kind: battle.ProblemKind(q.Get("type"))}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "limit must be an integer", "limit")
			return
		}
		f.Limit = n
	}

	problems, err := h.problems.List(r.Context(), f)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"problems": toProblems(problems)})
}

// GetProblem handles GET /problems/{problemID}
func (h *HTTPHandlers) GetProblem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.problemID(w, r)
	if !ok {
		return
	}
	p, err := h.problems.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toProblems([]battle.Problem{p})[0])
}

// ListTypes handles GET /types
func (h *HTTPHandlers) ListTypes(w http.ResponseWriter, r *http.Request) {
	kinds := battle.ProblemKinds()
	types := make([]string, 0, len(kinds))
	for _, k := range kinds {
		types = append(types, string(k))
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"types": types})
}

// ListSubjects handles GET /subjects
func (h *HTTPHandlers) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.problems.Subjects(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

// ListStatuses handles GET /statuses
func (h *HTTPHandlers) ListStatuses(w http.ResponseWriter, r *http.Request) {
	all := battle.RoomStatuses()
	statuses := make([]string, 0, len(all))
	for _, st := range all {
		statuses = append(statuses, string(st))
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

// ListRooms handles GET /rooms
func (h *HTTPHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f room.Filter
	var err error
	if v := q.Get("mode"); v != "" {
		if f.Mode, err = battle.ParseMode(v); err != nil {
			h.respondErr(w, r, err)
			return
		}
	}
	if f.Grade, err = battle.ParseGrade(q.Get("grade")); err != nil {
		h.respondErr(w, r, err)
		return
	}
	f.Search = q.Get("search")
	if v := q.Get("status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			st, err := battle.ParseRoomStatus(strings.TrimSpace(part))
			if err != nil {
				h.respondErr(w, r, err)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	rooms := h.service.ListRooms(f)
	out := make([]roomResponse, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, toRoom(rm))
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"rooms": out})
}

type createRoomRequest struct {
	Title      string  `json:"title"`
	Mode       string  `json:"mode"`
	IsPrivate  bool    `json:"isPrivate"`
	Password   string  `json:"password"`
	ProblemIDs []int64 `json:"problemIds"`
}

// CreateRoom handles POST /rooms
func (h *HTTPHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())

	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	mode, err := battle.ParseMode(req.Mode)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	rm, err := h.service.CreateRoom(r.Context(), room.CreateRequest{
		Title:      req.Title,
		Mode:       mode,
		Private:    req.IsPrivate,
		Password:   req.Password,
		ProblemIDs: req.ProblemIDs,
		Host:       player,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toRoom(rm))
}

// GetRoom handles GET /rooms/{roomID}
func (h *HTTPHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetRoom(r.Context(), roomID, player.ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	resp := roomDetailResponse{
		roomResponse:    toRoom(detail.Room),
		DurationSeconds: detail.DurationSeconds,
		Deadline:        detail.Deadline,
	}
	if detail.Problems != nil {
		resp.Problems = toProblems(detail.Problems)
	}
	if detail.Progress != nil {
		p := toProgress(*detail.Progress)
		resp.Progress = &p
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// CloseRoom handles DELETE /rooms/{roomID}
func (h *HTTPHandlers) CloseRoom(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	if err := h.service.Close(r.Context(), roomID, player.ID); err != nil {
		h.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// VerifyPassword handles POST /rooms/{roomID}/verify-password
func (h *HTTPHandlers) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	valid, err := h.service.VerifyPassword(roomID, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if !valid {
		httperrors.RespondError(w, http.StatusForbidden, httperrors.ErrCodeAccessDenied, "wrong room password")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// Join handles POST /rooms/{roomID}/join
func (h *HTTPHandlers) Join(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	desc, err := h.service.Join(r.Context(), roomID, player, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	players := make([]playerResponse, 0, battle.Capacity)
	for _, p := range desc.Room.Players() {
		players = append(players, toPlayer(p))
	}
	h.respondJSON(w, http.StatusOK, sessionResponse{
		RoomID:          desc.Room.ID.String(),
		Mode:            string(desc.Room.Mode),
		Status:          string(desc.Room.Status),
		DurationSeconds: desc.DurationSeconds,
		StartedAt:       desc.StartedAt,
		Deadline:        desc.Deadline,
		Players:         players,
		Problems:        toProblems(desc.Problems),
	})
}

// Progress handles GET /rooms/{roomID}/progress
func (h *HTTPHandlers) Progress(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Progress(roomID, player.ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toProgress(p))
}

// RecordAnswer handles PUT /rooms/{roomID}/answers/{problemID}
func (h *HTTPHandlers) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	problemID, ok := h.problemID(w, r)
	if !ok {
		return
	}
	var answer battle.Answer
	if err := decodeJSON(r, &answer); err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.service.RecordAnswer(r.Context(), roomID, player.ID, problemID, answer); err != nil {
		h.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type finalizeRequest struct {
	PassRatio *float64 `json:"passRatio"`
}

// Finalize handles POST /rooms/{roomID}/finalize
func (h *HTTPHandlers) Finalize(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	out, err := h.service.Finalize(r.Context(), roomID, player.ID, req.PassRatio)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, finalizeResponse{Submission: toSubmission(out.Submission), Response: out.Response})
}

type submitResultRequest struct {
	AccuracyPercent      *int `json:"accuracyPercent"`
	RemainingTimePercent *int `json:"remainingTimePercent"`
}

// SubmitResult handles POST /rooms/{roomID}/submit-result
func (h *HTTPHandlers) SubmitResult(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	var req submitResultRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if req.AccuracyPercent == nil {
		h.respondErr(w, r, battle.Validation("accuracyPercent", "accuracyPercent is required"))
		return
	}
	if req.RemainingTimePercent == nil {
		h.respondErr(w, r, battle.Validation("remainingTimePercent", "remainingTimePercent is required"))
		return
	}

	resp, err := h.service.SubmitResult(r.Context(), roomID, player.ID, Result{
		AccuracyPercent:      *req.AccuracyPercent,
		RemainingTimePercent: *req.RemainingTimePercent,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetResult handles GET /rooms/{roomID}/result
func (h *HTTPHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	player, _ := auth.PlayerFromContext(r.Context())
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetResult(r.Context(), roomID, player.ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandlers) roomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "room id must be a UUID", "roomId")
		return uuid.Nil, false
	}
	return id, true
}

func (h *HTTPHandlers) problemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "problemID"), 10, 64)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "problem id must be an integer", "problemId")
		return 0, false
	}
	return id, true
}

// decodeJSON rejects unknown fields. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return battle.Validation("body", err.Error())
	}
	if dec.More() {
		return battle.Validation("body", "request body must contain a single JSON object")
	}
	return nil
}

func (h *HTTPHandlers) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	if httperrors.RespondDomainError(w, err) {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("unexpected error")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("encode response failed")
	}
}
