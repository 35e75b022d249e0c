package model

import "time"

// StatusChange is the outcome of an admin status update.
type StatusChange struct {
	Ticket Ticket `json:"ticket"`
	From   Status `json:"from"`
	To     Status `json:"to"`
}

// UpvoteToggled records a confirmed upvote toggle.
type UpvoteToggled struct {
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	Upvoted   bool      `json:"upvoted"`
	ToggledAt time.Time `json:"toggled_at"`
}
