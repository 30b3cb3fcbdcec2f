package roster

// Player is a fantasy roster slot as reported by the league provider.
type Player struct {
	PlayerKey        string
	PlayerID         string
	Name             string
	Position         string
	SelectedPosition string
	Status           string
}

type Team struct {
	TeamKey   string
	Name      string
	LeagueKey string
	Players   []Player
}

// League carries the provider-side league metadata a sync pass needs.
type League struct {
	LeagueKey   string
	Name        string
	SeasonKey   string
	CurrentWeek int
	StartWeek   int
	EndWeek     int
	ScoringType string
	NumTeams    int
}
