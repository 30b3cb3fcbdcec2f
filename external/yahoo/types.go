package yahoo

// providerError is the error block a 200-status envelope can carry. The
// provider reports quota denials this way instead of a 429: code 999 with a
// "request denied" description.
type providerError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type responseEnvelope struct {
	Error *providerError `json:"error,omitempty"`
}

type statValue struct {
	StatID string `json:"stat_id"`
	Value  string `json:"value"`
}

type leaguePayload struct {
	LeagueKey   string `json:"league_key"`
	Name        string `json:"name"`
	Season      string `json:"season"`
	CurrentWeek int    `json:"current_week"`
	StartWeek   int    `json:"start_week"`
	EndWeek     int    `json:"end_week"`
	ScoringType string `json:"scoring_type"`
	NumTeams    int    `json:"num_teams"`
}

type leagueMetaEnvelope struct {
	responseEnvelope
	League leaguePayload `json:"league"`
}

type userLeaguesEnvelope struct {
	responseEnvelope
	Leagues []leaguePayload `json:"leagues"`
}

type teamPayload struct {
	TeamKey   string `json:"team_key"`
	Name      string `json:"name"`
	LeagueKey string `json:"league_key"`
}

type leagueTeamsEnvelope struct {
	responseEnvelope
	Teams []teamPayload `json:"teams"`
}

type rosterPlayerPayload struct {
	PlayerKey        string `json:"player_key"`
	PlayerID         string `json:"player_id"`
	FullName         string `json:"full_name"`
	Position         string `json:"display_position"`
	SelectedPosition string `json:"selected_position"`
	Status           string `json:"status"`
}

type teamRosterEnvelope struct {
	responseEnvelope
	Team    teamPayload           `json:"team"`
	Players []rosterPlayerPayload `json:"players"`
}

type teamWeekStatsEnvelope struct {
	responseEnvelope
	TeamKey string      `json:"team_key"`
	Week    int         `json:"week"`
	Stats   []statValue `json:"stats"`
}

type playerDateStatsEnvelope struct {
	responseEnvelope
	PlayerKey string      `json:"player_key"`
	FullName  string      `json:"full_name"`
	Date      string      `json:"date"`
	Stats     []statValue `json:"stats"`
}

type leaguePlayerPayload struct {
	PlayerKey string `json:"player_key"`
	FullName  string `json:"full_name"`
	Position  string `json:"display_position"`
	TeamAbbr  string `json:"editorial_team_abbr"`
}

type leaguePlayersEnvelope struct {
	responseEnvelope
	Players []leaguePlayerPayload `json:"players"`
	Start   int                   `json:"start"`
	Count   int                   `json:"count"`
	Total   int                   `json:"total"`
}

func statMap(values []statValue) map[string]string {
	out := make(map[string]string, len(values))
	for _, v := range values {
		if v.StatID == "" {
			continue
		}
		out[v.StatID] = v.Value
	}
	return out
}
