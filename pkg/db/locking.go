package db

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Advisory lock scopes. Each names a set of rows whose count a transaction
// checks before inserting.
const (
	LockScopeProviderSchedules = "provider-schedules"
	LockScopeScheduleBookings  = "schedule-bookings"
)

const advisoryXactLockSQL = "SELECT pg_advisory_xact_lock(hashtext(?))"

// ForUpdate adds a pessimistic row lock to the query. The sqlite dialect has
// no row locks; callers relying on it must serialize through a single
// connection.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ForUpdateSkipLocked locks rows and skips those held by other transactions.
func ForUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}

// IsSQLite reports whether tx is bound to the sqlite dialect.
func IsSQLite(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == "sqlite"
}

// AdvisoryXactLock holds a postgres advisory lock on scope/id until tx ends.
// It guards count-then-insert checks where no existing row can be locked.
// sqlite writers already serialize, so there it does nothing.
func AdvisoryXactLock(tx *gorm.DB, scope string, id uuid.UUID) error {
	if IsSQLite(tx) {
		return nil
	}
	return tx.Exec(advisoryXactLockSQL, advisoryKey(scope, id)).Error
}

func advisoryKey(scope string, id uuid.UUID) string {
	return scope + ":" + id.String()
}
