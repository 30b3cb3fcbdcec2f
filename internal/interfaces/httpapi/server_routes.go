package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET /v1/leagues", RequireAuth(http.HandlerFunc(handler.ListLeagues)))
	mux.Handle("GET /v1/leagues/{leagueKey}/stats", RequireAuth(http.HandlerFunc(handler.GetLeagueStats)))
	mux.Handle("GET /v1/teams/{teamKey}/stats", RequireAuth(http.HandlerFunc(handler.GetTeamStats)))
	mux.Handle("GET /v1/teams/{teamKey}/compare", RequireAuth(http.HandlerFunc(handler.CompareRosters)))
	mux.Handle("GET /v1/players/{playerKey}/gamelogs", RequireAuth(http.HandlerFunc(handler.GetPlayerGameLogs)))
	mux.Handle("POST /v1/sync/player", RequireAuth(http.HandlerFunc(handler.SyncPlayer)))
	mux.Handle("POST /v1/leagues/{leagueKey}/backfill", RequireAuth(http.HandlerFunc(handler.ScheduleBackfill)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/jobs/backfill", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.EnqueueBackfill)))
	mux.Handle("GET /v1/jobs/backfill/{jobID}", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GetBackfillJob)))
	mux.Handle("GET /v1/jobs/backfill", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ListBackfillJobs)))
}
