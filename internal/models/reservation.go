package models

// Reservation is a committed time slot on a place calendar. Date and the two
// clock fields hold the canonical forms produced by timeparse ("dd/mm" and
// "hh:mm AM/PM"), so records compare and re-parse safely.
type Reservation struct {
	Place        string `json:"place"`
	Date         string `json:"date"`
	TimeFrom     string `json:"time_from"`
	TimeTo       string `json:"time_to"`
	OwnerID      int64  `json:"owner_id"`
	Participants string `json:"participants"` // comma-joined list, may be empty
}

// RoleBinding allows a role to invoke a command. A command with no bindings is
// open to everyone; multiple bindings are additive.
type RoleBinding struct {
	Command string `json:"command"`
	RoleID  string `json:"role_id"`
}
