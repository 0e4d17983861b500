package postgres

import (
	"context"
	"fmt"

	"telegram-wallet-bridge/internal/core/domain"
)

// TicketRepo implements ports.TicketRepository.
type TicketRepo struct {
	pool Pool
}

// NewTicketRepo creates a new TicketRepo.
func NewTicketRepo(pool Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

// ListByAccountID fetches all tickets an account holds, newest first.
func (r *TicketRepo) ListByAccountID(ctx context.Context, accountID string) ([]domain.Ticket, error) {
	query := `SELECT ticket_id, account_id, event_name, event_date, event_venue, ticket_type, verified
		FROM tickets WHERE account_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.TicketID, &t.AccountID, &t.EventName, &t.EventDate, &t.EventVenue, &t.TicketType, &t.Verified); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}
