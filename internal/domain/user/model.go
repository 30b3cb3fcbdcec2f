package user

// Principal is the authenticated caller. AccessToken is the raw bearer
// credential forwarded to the league provider on every upstream call;
// it is never persisted.
type Principal struct {
	AccessToken string
}
