package persistence

import (
	"context"
	"fmt"

	"PortfolioLedger/internal/ledger"
)

// ExternalIDExists reports whether externalID was already used by a cash
// movement or a position event.
func (q *Queries) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	var n int
	err := q.get(ctx, &n, `SELECT COUNT(*) FROM external_id WHERE external_id = ?`, externalID)
	if err != nil {
		return false, fmt.Errorf("check external id %s: %w", externalID, err)
	}
	return n > 0, nil
}

// claimExternalID reserves externalID in the namespace shared by both
// ledgers. The primary key makes a concurrent claim from another owner fail
// with ErrDuplicateOperation even when the pre-check missed it.
func (q *Queries) claimExternalID(ctx context.Context, externalID string, ownerID int64, ledgerName string) error {
	_, err := q.exec(ctx, `
		INSERT INTO external_id (external_id, owner_id, ledger) VALUES (?, ?, ?)`,
		externalID, ownerID, ledgerName,
	)
	if err != nil {
		return fmt.Errorf("claim external id %s: %w", externalID, classify(err, ledger.ErrDuplicateOperation))
	}
	return nil
}

// RecentExternalIDs returns up to limit external ids from both ledgers,
// newest first, for warming the in-memory tier after a restart.
func (q *Queries) RecentExternalIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := q.selectAll(ctx, &ids, `
		SELECT external_id FROM (
			SELECT external_id, timestamp FROM cash_movement
			UNION ALL
			SELECT external_id, timestamp FROM position_event
		) recent
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent external ids: %w", err)
	}
	return ids, nil
}

// LatestActivity is the newest cash or position snapshot timestamp of the
// owner, zero when the owner has no history.
func (q *Queries) LatestActivity(ctx context.Context, ownerID int64) (int64, error) {
	var ts int64
	err := q.get(ctx, &ts, `
		SELECT COALESCE(MAX(t), 0) FROM (
			SELECT MAX(timestamp) AS t FROM cash_snapshot WHERE owner_id = ?
			UNION ALL
			SELECT MAX(timestamp) AS t FROM position_snapshot WHERE owner_id = ?
		) activity`,
		ownerID, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("latest activity owner %d: %w", ownerID, err)
	}
	return ts, nil
}
