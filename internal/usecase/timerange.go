package usecase

import (
	"fmt"
	"strings"
)

// RangePolicy tells a stat lookup which source to use: full-season
// aggregates, or a trailing window measured in whole weeks.
type RangePolicy struct {
	UseSeasonAggregates bool
	Weeks               int
}

func (p RangePolicy) Days() int {
	return p.Weeks * 7
}

// ResolveRange maps a caller-facing range token onto a policy. An empty
// token means the trailing week. Unknown tokens are rejected.
func ResolveRange(token string) (RangePolicy, error) {
	switch strings.TrimSpace(token) {
	case "season":
		return RangePolicy{UseSeasonAggregates: true}, nil
	case "", "last7":
		return RangePolicy{Weeks: 1}, nil
	case "last14":
		return RangePolicy{Weeks: 2}, nil
	case "last30":
		return RangePolicy{Weeks: 4}, nil
	default:
		return RangePolicy{}, fmt.Errorf("%w: unknown range %q", ErrInvalidInput, token)
	}
}

// ResolveRangeOrDefault is the lenient variant: an unrecognized token falls
// back to the trailing-week policy instead of failing the request.
func ResolveRangeOrDefault(token string) RangePolicy {
	policy, err := ResolveRange(token)
	if err != nil {
		return RangePolicy{Weeks: 1}
	}
	return policy
}
