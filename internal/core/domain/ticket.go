package domain

// Ticket is a purchased event ticket, read-only from this service's
// perspective.
type Ticket struct {
	TicketID   string `json:"ticket_id"`
	AccountID  string `json:"account_id"`
	EventName  string `json:"event_name"`
	EventDate  string `json:"event_date"`
	EventVenue string `json:"event_venue"`
	TicketType string `json:"ticket_type"`
	Verified   bool   `json:"verified"`
}
