package usecase

import (
	"testing"

	"github.com/hoopsync/hoopsync/internal/domain/roster"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Luka Dončić":             "luka doncic",
		"P.J. Washington Jr.":     "pj washington",
		"Jaren Jackson Jr.":       "jaren jackson",
		"Kelly Oubre Jr.":         "kelly oubre",
		"  Nikola   Jokić ":       "nikola jokic",
		"Wendell Carter III":      "wendell carter",
		"Shai Gilgeous-Alexander": "shai gilgeousalexander",
		"V":                       "v",
	}

	for in, want := range cases {
		if got := normalizeName(in); got != want {
			t.Fatalf("normalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReconcileIdentities_ExactMatchWinsOverNormalized(t *testing.T) {
	t.Parallel()

	keyspace := map[string]StatBundle{
		"Luka Doncic":  {PlayerName: "Luka Doncic", Stats: map[string]float64{"PTS": 33.1}},
		"Luka Dončić":  {PlayerName: "Luka Dončić", Stats: map[string]float64{"PTS": 99.9}},
		"Kevin Durant": {PlayerName: "Kevin Durant", Stats: map[string]float64{"PTS": 27.3}},
	}

	players := []roster.Player{
		{PlayerKey: "nba.p.1", Name: "Luka Dončić"},
		{PlayerKey: "nba.p.2", Name: "Kevin Durant"},
	}

	matched, diag := ReconcileIdentities(players, keyspace)
	if diag.MatchedExact != 2 || diag.MatchedNormalized != 0 {
		t.Fatalf("diagnostics = %+v, want two exact matches", diag)
	}
	if got := matched["nba.p.1"].Stats["PTS"]; got != 99.9 {
		t.Fatalf("exact match must win: PTS = %v, want 99.9", got)
	}
}

func TestReconcileIdentities_FallsBackToNormalizedScan(t *testing.T) {
	t.Parallel()

	keyspace := map[string]StatBundle{
		"Nikola Jokić":      {PlayerName: "Nikola Jokić", Stats: map[string]float64{"REB": 12.4}},
		"Jaren Jackson Jr.": {PlayerName: "Jaren Jackson Jr.", Stats: map[string]float64{"BLK": 1.6}},
		"Gary Payton II":    {PlayerName: "Gary Payton II", Stats: map[string]float64{"STL": 1.1}},
	}

	players := []roster.Player{
		{PlayerKey: "nba.p.10", Name: "Nikola Jokic"},
		{PlayerKey: "nba.p.11", Name: "Jaren Jackson"},
		{PlayerKey: "nba.p.12", Name: "Gary Payton"},
		{PlayerKey: "nba.p.13", Name: "Retired Guy"},
	}

	matched, diag := ReconcileIdentities(players, keyspace)
	if diag.MatchedNormalized != 3 {
		t.Fatalf("normalized matches = %d, want 3 (diag %+v)", diag.MatchedNormalized, diag)
	}
	if got := matched["nba.p.10"].Stats["REB"]; got != 12.4 {
		t.Fatalf("diacritics fold failed, REB = %v", got)
	}
	if got := matched["nba.p.11"].Stats["BLK"]; got != 1.6 {
		t.Fatalf("suffix drop failed, BLK = %v", got)
	}
	if len(diag.Unmatched) != 1 || diag.Unmatched[0] != "Retired Guy" {
		t.Fatalf("unmatched = %v, want [Retired Guy]", diag.Unmatched)
	}
}

func TestReconcileIdentities_NormalizedCollisionIsDeterministic(t *testing.T) {
	t.Parallel()

	// Two keyspace names fold to the same normalized form; the scan keeps
	// the first in sorted key order on every run.
	keyspace := map[string]StatBundle{
		"Jae'Sean Tate": {PlayerName: "Jae'Sean Tate", Stats: map[string]float64{"PTS": 7.0}},
		"JaeSean Tate":  {PlayerName: "JaeSean Tate", Stats: map[string]float64{"PTS": 5.0}},
	}
	players := []roster.Player{{PlayerKey: "nba.p.20", Name: "JAESEAN TATE"}}

	for i := 0; i < 20; i++ {
		matched, _ := ReconcileIdentities(players, keyspace)
		if got := matched["nba.p.20"].PlayerName; got != "Jae'Sean Tate" {
			t.Fatalf("run %d picked %q, want first sorted candidate", i, got)
		}
	}
}
