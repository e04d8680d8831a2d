package persistence

import (
	"fmt"

	"PortfolioLedger/internal/ledger"
)

// classify maps driver constraint failures onto ledger error kinds. A unique
// violation becomes onUnique (duplicate external id or a colliding snapshot
// timestamp, depending on the table); foreign key failures mean the
// referenced owner or symbol is gone.
func classify(err error, onUnique error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", onUnique, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", ledger.ErrNotFound, err)
	default:
		return err
	}
}
