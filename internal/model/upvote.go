package model

import (
	"time"
)

type Upvote struct {
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type UpvoteResponse struct {
	Applied bool   `json:"applied"`
	Upvoted bool   `json:"upvoted"`
	Ticket  Ticket `json:"ticket"`
}
