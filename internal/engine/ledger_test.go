package engine

import "testing"

func TestDecodeMembersLegacy(t *testing.T) {
	entries := decodeMembers(" alice, bob ,carol")
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	for i, name := range []string{"alice", "bob", "carol"} {
		if entries[i].Name != name || entries[i].ID != 0 {
			t.Fatalf("entry %d: %+v", i, entries[i])
		}
	}
	if got := decodeMembers(""); len(got) != 0 {
		t.Fatalf("empty payload decoded to %+v", got)
	}
	if got := decodeMembers(" , ,"); len(got) != 0 {
		t.Fatalf("blank names decoded to %+v", got)
	}
}

func TestDecodeMembersStructured(t *testing.T) {
	raw := `[{"id":7,"name":"alice","assigned_count":3},{"id":0,"name":"bob","assigned_count":0}]`
	entries := decodeMembers(raw)
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].ID != 7 || entries[0].Name != "alice" || entries[0].AssignedCount != 3 {
		t.Fatalf("first entry: %+v", entries[0])
	}
	// a malformed structured payload falls back to the delimited parse
	got := decodeMembers("[{broken")
	if len(got) != 1 || got[0].ID != 0 {
		t.Fatalf("malformed payload decoded to %+v", got)
	}
}

func TestEncodeMembersAlwaysStructured(t *testing.T) {
	s, err := encodeMembers(nil)
	if err != nil || s != "[]" {
		t.Fatalf("nil entries: %q err=%v", s, err)
	}
	s, err = encodeMembers([]memberEntry{{ID: 7, Name: "alice", AssignedCount: 2}})
	if err != nil {
		t.Fatal(err)
	}
	back := decodeMembers(s)
	if len(back) != 1 || back[0] != (memberEntry{ID: 7, Name: "alice", AssignedCount: 2}) {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestSameMemberIdentity(t *testing.T) {
	byID := memberEntry{ID: 7, Name: "alice"}
	renamed := memberEntry{ID: 7, Name: "alice-v2"}
	legacy := memberEntry{ID: 0, Name: "alice"}
	caseDiff := memberEntry{ID: 0, Name: "Alice"}

	if !sameMember(byID, renamed) {
		t.Fatal("matching ids should match regardless of name")
	}
	if !sameMember(byID, legacy) {
		t.Fatal("legacy entry should match by name")
	}
	if sameMember(legacy, caseDiff) {
		t.Fatal("name match is case-sensitive")
	}
}

func TestMergeMembersUpgradesAndSums(t *testing.T) {
	base := []memberEntry{{ID: 0, Name: "alice", AssignedCount: 2}, {ID: 3, Name: "bob"}}
	extra := []memberEntry{{ID: 7, Name: "alice", AssignedCount: 1}, {ID: 9, Name: "carol"}}

	merged := mergeMembers(base, extra)
	if len(merged) != 3 {
		t.Fatalf("got %d entries", len(merged))
	}
	if merged[0].ID != 7 || merged[0].AssignedCount != 3 {
		t.Fatalf("alice not upgraded and summed: %+v", merged[0])
	}
	if merged[1].Name != "bob" || merged[2].Name != "carol" {
		t.Fatalf("order not preserved: %+v", merged)
	}
}
