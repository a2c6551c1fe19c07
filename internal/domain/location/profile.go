package location

// ProfileSummary is the slice of a user profile joined into discovery
// results. Blocked profiles are dropped from discovery output entirely.
type ProfileSummary struct {
	UserID  string  `json:"user_id"`
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Rating  float64 `json:"rating"`
	Blocked bool    `json:"-"`
}
