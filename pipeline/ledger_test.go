package pipeline

import "testing"

func TestNewUID_Format(t *testing.T) {
	uid := NewUID()
	if len(uid) != 32 {
		t.Fatalf("uid length = %d, want 32", len(uid))
	}
	for _, r := range uid {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("uid %q contains non-hex character %q", uid, r)
		}
	}
	if NewUID() == uid {
		t.Error("consecutive identifiers must differ")
	}
}

func TestLedger_AssignOrGetIsIdempotent(t *testing.T) {
	ledger := NewLedger()

	first := ledger.AssignOrGet("old-1")
	second := ledger.AssignOrGet("old-1")
	if first != second {
		t.Errorf("same source identifier mapped twice: %q vs %q", first, second)
	}
	if other := ledger.AssignOrGet("old-2"); other == first {
		t.Error("distinct source identifiers share a mapping")
	}
}

func TestLedger_ResolveOnlyKnownIdentifiers(t *testing.T) {
	ledger := NewLedger()
	assigned := ledger.AssignOrGet("old-1")

	if got, ok := ledger.Resolve("old-1"); !ok || got != assigned {
		t.Errorf("Resolve(old-1) = %q, %v", got, ok)
	}
	if _, ok := ledger.Resolve("never-seen"); ok {
		t.Error("unknown identifier resolved")
	}
}

func TestLedger_AliasKeepsExportedIdentity(t *testing.T) {
	ledger := NewLedger()
	ledger.Alias("abc123", "abc123")

	if got, ok := ledger.Resolve("abc123"); !ok || got != "abc123" {
		t.Errorf("self alias lost: %q, %v", got, ok)
	}
}

func TestLedger_SeenTracking(t *testing.T) {
	ledger := NewLedger()
	if ledger.HasSeen("old-1") {
		t.Error("fresh ledger claims to have seen a record")
	}
	ledger.MarkSeen("old-1")
	if !ledger.HasSeen("old-1") {
		t.Error("seen mark lost")
	}
}

func TestLedger_RestoreRoundTrip(t *testing.T) {
	ledger := NewLedger()
	ledger.MarkSeen("old-1")
	uid := ledger.AssignOrGet("old-1")

	restored := NewLedger()
	restored.Restore(ledger.Seen(), ledger.Mappings())

	if !restored.HasSeen("old-1") {
		t.Error("seen set lost in restore")
	}
	if got, ok := restored.Resolve("old-1"); !ok || got != uid {
		t.Errorf("mapping lost in restore: %q, %v", got, ok)
	}
}
