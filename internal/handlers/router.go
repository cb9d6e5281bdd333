package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	mw "hybridhouse/internal/middleware"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Identities  IdentityStore
	Artifacts   ArtifactStore
	Ranker      Ranker
	Interviewer Interviewer
	Scores      ScoreApplier
	Auth        *mw.AuthMiddleware
	DB          Pinger
	Cache       Pinger
	Status      StatusConfig
	CORSOrigins []string
	Log         *zap.Logger
}

// NewRouter mounts every route on a chi router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.ZapRequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	status := NewStatusHandler(d.DB, d.Cache, d.Status)
	users := NewUserProfileHandler(d.Identities, d.Artifacts, d.Log)
	athletes := NewAthleteProfileHandler(d.Identities, d.Artifacts, d.Ranker, d.Log)
	board := NewLeaderboardHandler(d.Ranker, d.Log)
	interview := NewInterviewHandler(d.Interviewer, d.Log)
	scores := NewScoreHandler(d.Scores, d.Log)

	r.Get("/", status.Banner)
	r.Get("/status", status.Status)

	r.Get("/leaderboard", board.Leaderboard)
	r.Get("/ranking/{id}", board.Ranking)

	r.Get("/athlete-profiles", athletes.ListPublic)
	r.Post("/athlete-profiles/public", athletes.CreatePublic)
	r.Get("/public-profile/{user_id}", athletes.PublicProfile)
	r.With(d.Auth.OptionalAuth).Get("/athlete-profile/{id}", athletes.Get)

	r.Post("/athlete-profile/{id}/score", scores.ScoreByPath)
	r.Post("/webhook/score/{id}", scores.ScoreByPath)
	r.Post("/webhook/score", scores.ScoreByBody)

	r.Group(func(pr chi.Router) {
		pr.Use(d.Auth.RequireAuth)

		pr.Get("/user-profile/me", users.GetMe)
		pr.Put("/user-profile/me", users.UpdateMe)
		pr.Post("/user-profile/me/avatar", users.UploadAvatar)
		pr.Get("/user-profile/me/athlete-profiles", users.MyArtifacts)

		pr.Post("/athlete-profiles", athletes.Create)
		pr.Put("/athlete-profile/{id}", athletes.Update)
		pr.Put("/athlete-profile/{id}/privacy", athletes.SetPrivacy)
		pr.Delete("/athlete-profile/{id}", athletes.Delete)

		pr.Post("/hybrid-interview/start", interview.Start)
		pr.Post("/hybrid-interview/chat", interview.Chat)
		pr.Get("/hybrid-interview/session/{id}", interview.Session)
	})

	return r
}
