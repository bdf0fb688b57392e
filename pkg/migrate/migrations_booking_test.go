package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBookingMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_booking.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS reservation_items",
		"FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE",
		"CHECK (status IN ('WAITING', 'ACCEPT', 'REJECT', 'CANCEL'))",
		"ON assigns (issue_id) WHERE status = 'ACCEPT'",
		"ON assigns (client_id, consultant_id, reservation_id) WHERE status = 'ACCEPT'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_tickets_reservation_item",
		"DROP TABLE IF EXISTS assigned",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestScheduleMigrationEnforcesSingleTypedRuleValue(t *testing.T) {
	content := readMigration(t, "*_create_schedules.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_schedule_terms_schedule ON schedule_terms (schedule_id)",
		"ON rules (term_id, mode, identifier, direction)",
		"(CASE WHEN datetime_value IS NOT NULL THEN 1 ELSE 0 END) = 1",
		"FOREIGN KEY (term_id) REFERENCES schedule_terms(id) ON DELETE CASCADE",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matches %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
