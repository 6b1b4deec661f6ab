package ledger_repo

import (
	"strings"
	"testing"
)

// Two concurrent first movements for a pair must serialize on a real row
// lock. That only works if the missing-row path seeds the row before
// re-reading it FOR UPDATE; these assertions pin that statement shape.
func TestSnapshotLockStatements(t *testing.T) {
	if !strings.Contains(lockSnapshotSQL, "FOR UPDATE") {
		t.Fatalf("snapshot lock read must take a row lock:\n%s", lockSnapshotSQL)
	}

	if !strings.Contains(seedSnapshotSQL, "ON CONFLICT (title_id, warehouse_id) DO NOTHING") {
		t.Fatalf("snapshot seed must tolerate a concurrent seeder:\n%s", seedSnapshotSQL)
	}
	if !strings.Contains(seedSnapshotSQL, "INSERT INTO inventory_snapshots") {
		t.Fatalf("snapshot seed must write the snapshots table:\n%s", seedSnapshotSQL)
	}

	// The seed carries no stock: quantities come from the upsert after the
	// movement is validated under the lock.
	if !strings.Contains(seedSnapshotSQL, "VALUES ($1, $2, $3, 0, 0, 0, 0, now(), now())") {
		t.Fatalf("snapshot seed must insert zero stock and value:\n%s", seedSnapshotSQL)
	}
}
