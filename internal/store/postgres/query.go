package postgres

import (
	"fmt"
	"strings"

	"github.com/bwise1/campus_voice/internal/store"
)

const ticketColumns = `id::text, title, description, category, severity, status, visibility,
            upvote_count, created_by::text, created_at, updated_at, image_url`

const severityRank = `CASE severity WHEN 'critical' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END`

// buildWhere renders p as a WHERE clause with positional args.
func buildWhere(p store.Predicate) (string, []any) {
	conds := []string{}
	args := []any{}

	if p.CreatedBy != "" {
		args = append(args, p.CreatedBy)
		conds = append(conds, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if p.Visibility != "" {
		args = append(args, string(p.Visibility))
		conds = append(conds, fmt.Sprintf("visibility = $%d", len(args)))
	}
	if len(p.Statuses) > 0 {
		statuses := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(s store.Sort) string {
	switch s {
	case store.SortFeed:
		return "ORDER BY upvote_count DESC, " + severityRank + ", created_at DESC"
	case store.SortTriage:
		return "ORDER BY " + severityRank + ", upvote_count DESC, created_at DESC"
	default:
		return "ORDER BY created_at DESC"
	}
}

func buildTicketQuery(p store.Predicate, s store.Sort) (string, []any) {
	where, args := buildWhere(p)
	query := fmt.Sprintf(`
        SELECT %s
        FROM tickets
        %s
        %s
    `, ticketColumns, where, orderBy(s))
	return query, args
}
