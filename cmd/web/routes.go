package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/config"
	"github.com/AdamBeresnev/tourney/internal/httputil"
	"github.com/AdamBeresnev/tourney/internal/middleware"
	"github.com/AdamBeresnev/tourney/internal/service"
	"github.com/AdamBeresnev/tourney/internal/store"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/AdamBeresnev/tourney/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/markbates/goth/gothic"
)

const (
	maxChatBody     = 500
	defaultChatPage = 50
	tokenLifetime   = 24 * time.Hour
)

var reportTargets = map[string]bool{
	"tournament":   true,
	"team":         true,
	"match":        true,
	"chat_message": true,
}

type app struct {
	cfg            *config.Config
	sessionManager *scs.SessionManager
	tournaments    *service.TournamentService
	users          *service.UserService
	userStore      *store.UserStore
	community      *store.CommunityStore
	rules          string
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.NotFound(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// readJSON decodes the request body and answers 400 itself when it cannot.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := httputil.ReadJSON(w, r, dst)
	switch {
	case err == nil:
		return true
	case httputil.IsMalformedBody(err):
		httputil.BadRequest(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, "Failed to read request body", err)
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		httputil.InternalServerError(w, "Failed to write response", err)
	}
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(a.sessionManager.LoadAndSave)
	r.Use(middleware.LoadIdentity(a.sessionManager, a.userStore, a.cfg.JWTSecretKey))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/rules", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(a.rules))
	})

	a.authRoutes(r)

	r.Route("/tournaments", func(r chi.Router) {
		r.Get("/", a.listTournaments)
		r.With(middleware.RequireAdmin).Post("/", a.createTournament)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getTournament)
			r.Get("/teams", a.listTeams)
			r.Get("/teams/{teamID}", a.getTeam)
			r.Get("/matches", a.listMatches)
			r.Get("/bracket/view", a.bracketView)
			r.Post("/check-in", a.checkIn)
			r.Get("/chat", a.listChat)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/register", a.registerTeam)
				r.Get("/teams/{teamID}/code", a.checkInCode)
				r.Post("/chat", a.postChat)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Patch("/", a.updateTournament)
				r.Delete("/", a.deleteTournament)
				r.Post("/registration/open", a.openRegistration)
				r.Post("/registration/close", a.closeRegistration)
				r.Put("/teams/{teamID}/approval", a.setApproval)
				r.Put("/teams/{teamID}/seed", a.setSeed)
				r.Post("/bracket", a.generateBracket)
			})
		})
	})

	r.Get("/matches/{id}", a.getMatch)
	r.With(middleware.RequireAdmin).Post("/matches/{id}/result", a.reportResult)

	r.With(middleware.RequireAuth).Post("/reports", a.postReport)

	return r
}

func (a *app) authRoutes(r chi.Router) {
	r.With(middleware.RequireAuth).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, users.FromContext(r.Context()))
	})

	r.With(middleware.RequireAuth).Post("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.JWTSecretKey == "" {
			httputil.NotFound(w, "Bearer tokens are disabled", nil)
			return
		}
		token, err := middleware.IssueToken(a.cfg.JWTSecretKey, users.FromContext(r.Context()), tokenLifetime)
		if err != nil {
			httputil.InternalServerError(w, "Failed to sign token", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		user, err := a.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		if err := a.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		a.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())

		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := a.users.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		a.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
		writeJSON(w, http.StatusOK, user)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := a.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to end session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (a *app) listTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := a.tournaments.ListTournaments(r.Context())
	if err != nil {
		httputil.ServiceError(w, "Failed to list tournaments", err)
		return
	}
	writeJSON(w, http.StatusOK, tournaments)
}

func (a *app) createTournament(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTournamentInput
	if !readJSON(w, r, &input) {
		return
	}

	tournament, err := a.tournaments.CreateTournament(r.Context(), input)
	if err != nil {
		httputil.ServiceError(w, "Failed to create tournament", err)
		return
	}
	writeJSON(w, http.StatusCreated, tournament)
}

func (a *app) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	tournament, err := a.tournaments.GetTournament(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get tournament", err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

func (a *app) updateTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var input service.UpdateTournamentInput
	if !readJSON(w, r, &input) {
		return
	}

	tournament, err := a.tournaments.UpdateTournament(r.Context(), id, input)
	if err != nil {
		httputil.ServiceError(w, "Failed to update tournament", err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

func (a *app) deleteTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := a.tournaments.DeleteTournament(r.Context(), id); err != nil {
		httputil.ServiceError(w, "Failed to delete tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) openRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	tournament, err := a.tournaments.OpenRegistration(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to open registration", err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

func (a *app) closeRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	tournament, err := a.tournaments.CloseRegistration(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to close registration", err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

func (a *app) listTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	filter := store.TeamFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if status := r.URL.Query().Get("status"); status != "" {
		s := bracket.ApprovalStatus(status)
		filter.Status = &s
	}

	teams, err := a.tournaments.ListTeams(r.Context(), id, filter)
	if err != nil {
		httputil.ServiceError(w, "Failed to list teams", err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (a *app) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := uuidParam(w, r, "teamID")
	if !ok {
		return
	}

	team, err := a.tournaments.GetTeam(r.Context(), id, teamID)
	if err != nil {
		httputil.ServiceError(w, "Failed to get team", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (a *app) registerTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var input service.TeamInput
	if !readJSON(w, r, &input) {
		return
	}

	team, err := a.tournaments.RegisterTeam(r.Context(), id, input)
	if err != nil {
		httputil.ServiceError(w, "Failed to register team", err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (a *app) setApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := uuidParam(w, r, "teamID")
	if !ok {
		return
	}

	var input struct {
		Status bracket.ApprovalStatus `json:"status"`
	}
	if !readJSON(w, r, &input) {
		return
	}

	team, err := a.tournaments.SetApproval(r.Context(), id, teamID, input.Status)
	if err != nil {
		httputil.ServiceError(w, "Failed to set approval", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (a *app) setSeed(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := uuidParam(w, r, "teamID")
	if !ok {
		return
	}

	var input struct {
		Seed *int `json:"seed"`
	}
	if !readJSON(w, r, &input) {
		return
	}

	team, err := a.tournaments.SetSeed(r.Context(), id, teamID, input.Seed)
	if err != nil {
		httputil.ServiceError(w, "Failed to set seed", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (a *app) checkInCode(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := uuidParam(w, r, "teamID")
	if !ok {
		return
	}

	code, err := a.tournaments.GetCheckInCode(r.Context(), id, teamID)
	if err != nil {
		httputil.ServiceError(w, "Failed to get check-in code", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (a *app) checkIn(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var input struct {
		Code string `json:"code"`
	}
	if !readJSON(w, r, &input) {
		return
	}

	if _, err := a.tournaments.CheckIn(r.Context(), id, input.Code); err != nil {
		httputil.ServiceError(w, "Check-in failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *app) generateBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	matches, err := a.tournaments.GenerateBracket(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to generate bracket", err)
		return
	}
	writeJSON(w, http.StatusCreated, matches)
}

func (a *app) listMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	matches, err := a.tournaments.GetMatches(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to list matches", err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (a *app) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	match, err := a.tournaments.GetMatch(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get match", err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (a *app) reportResult(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var input struct {
		Score1 *int `json:"score1"`
		Score2 *int `json:"score2"`
	}
	if !readJSON(w, r, &input) {
		return
	}
	if input.Score1 == nil || input.Score2 == nil {
		httputil.ServiceError(w, "Missing scores", service.ErrInvalidScore)
		return
	}

	progress, err := a.tournaments.ReportResult(r.Context(), id, *input.Score1, *input.Score2)
	if err != nil {
		httputil.ServiceError(w, "Failed to report result", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match":    progress.Match,
		"next":     progress.Next,
		"champion": progress.Champion,
	})
}

func (a *app) bracketView(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	data, err := a.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get tournament", err)
		return
	}

	if err := views.Render(w, r, views.BracketPage(data)); err != nil {
		httputil.InternalServerError(w, "Failed to render bracket", err)
	}
}

func (a *app) listChat(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := a.tournaments.GetTournament(r.Context(), id); err != nil {
		httputil.ServiceError(w, "Failed to get tournament", err)
		return
	}

	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			httputil.BadRequest(w, "since must be an RFC 3339 timestamp", err)
			return
		}
		since = parsed
	}

	limit := defaultChatPage
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 200 {
			httputil.BadRequest(w, "limit must be between 1 and 200", err)
			return
		}
		limit = n
	}

	messages, err := a.community.ListMessages(r.Context(), id, since, limit)
	if err != nil {
		httputil.InternalServerError(w, "Failed to list chat", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (a *app) postChat(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var input struct {
		Body string `json:"body"`
	}
	if !readJSON(w, r, &input) {
		return
	}
	body := strings.TrimSpace(input.Body)
	if body == "" || len(body) > maxChatBody {
		httputil.ServiceError(w, "Rejected chat message", service.ErrInvalidInput)
		return
	}

	if _, err := a.tournaments.GetTournament(r.Context(), id); err != nil {
		httputil.ServiceError(w, "Failed to get tournament", err)
		return
	}

	user := users.FromContext(r.Context())
	msg := &store.ChatMessage{
		ID:           uuid.New(),
		TournamentID: id,
		UserID:       user.ID,
		Username:     user.Username,
		Body:         body,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.community.AppendMessage(r.Context(), msg); err != nil {
		httputil.InternalServerError(w, "Failed to post chat message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *app) postReport(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TargetType string `json:"targetType"`
		TargetID   string `json:"targetId"`
		Reason     string `json:"reason"`
	}
	if !readJSON(w, r, &input) {
		return
	}
	if !reportTargets[input.TargetType] || strings.TrimSpace(input.TargetID) == "" || strings.TrimSpace(input.Reason) == "" {
		httputil.ServiceError(w, "Rejected report", service.ErrInvalidInput)
		return
	}

	report := &store.Report{
		ID:         uuid.New(),
		ReporterID: users.FromContext(r.Context()).ID,
		TargetType: input.TargetType,
		TargetID:   strings.TrimSpace(input.TargetID),
		Reason:     strings.TrimSpace(input.Reason),
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.community.AppendReport(r.Context(), report); err != nil {
		httputil.InternalServerError(w, "Failed to file report", err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}
