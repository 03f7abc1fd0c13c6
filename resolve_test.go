package sidcodec

import "testing"

func TestResolvePath_PrefixedThenStripped(t *testing.T) {
	tables := buildInterfacesTables()

	segs, err := parseInstanceID("/ietf-interfaces:interfaces/ietf-interfaces:interface[name='1']/enabled")
	if err != nil {
		t.Fatalf("parseInstanceID() error = %v", err)
	}
	sid, err := resolvePath(segs, ResolveContext{}, tables)
	if err != nil {
		t.Fatalf("resolvePath() error = %v", err)
	}
	if sid != 2036 {
		t.Errorf("resolvePath() = %d, want 2036", sid)
	}

	// Stripped form (no module prefixes) resolves through the same table.
	segs2, err := parseInstanceID("/interfaces/interface[name='1']/enabled")
	if err != nil {
		t.Fatalf("parseInstanceID() error = %v", err)
	}
	sid2, err := resolvePath(segs2, ResolveContext{}, tables)
	if err != nil {
		t.Fatalf("resolvePath() error = %v", err)
	}
	if sid2 != 2036 {
		t.Errorf("resolvePath() stripped = %d, want 2036", sid2)
	}
}

func TestResolvePath_Unresolved(t *testing.T) {
	tables := buildInterfacesTables()
	segs, err := parseInstanceID("/nonexistent/leaf")
	if err != nil {
		t.Fatalf("parseInstanceID() error = %v", err)
	}
	if _, err := resolvePath(segs, ResolveContext{}, tables); err == nil {
		t.Fatal("resolvePath() on an unknown path should error")
	}
}

func TestFuzzyResolve_SingleCandidate(t *testing.T) {
	tables := buildInterfacesTables()
	segs, err := parseInstanceID("/enabled")
	if err != nil {
		t.Fatalf("parseInstanceID() error = %v", err)
	}
	sid, err := resolvePath(segs, ResolveContext{}, tables)
	if err != nil {
		t.Fatalf("resolvePath() fuzzy error = %v", err)
	}
	if sid != 2036 {
		t.Errorf("fuzzy resolvePath() = %d, want 2036", sid)
	}
}

func TestFuzzyResolve_ScoredByAncestors(t *testing.T) {
	sid := newSidTree()
	add := func(stripped string, s SID) {
		sid.PathToSID[stripped] = s
		sid.SIDToPath[s] = stripped
		sid.LeafToPaths[lastSegmentName(stripped)] = append(sid.LeafToPaths[lastSegmentName(stripped)], stripped)
	}
	add("a/x/name", 1)
	add("b/y/name", 2)
	tables := &Tables{Sid: sid, Types: newTypeTable()}

	candidates := tables.Sid.LeafToPaths["name"]
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	ctx := ResolveContext{StrippedAncestors: []string{"b", "y"}}
	got, ok, err := fuzzyResolve([]Segment{{Name: "name"}}, ctx, tables)
	if err != nil || !ok {
		t.Fatalf("fuzzyResolve() = (%d, %v, %v)", got, ok, err)
	}
	if got != 2 {
		t.Errorf("fuzzyResolve() = %d, want 2 (matches ancestor b/y)", got)
	}
}

func TestMatchesPredicate(t *testing.T) {
	if !matchesPredicate("eth0", "eth0") {
		t.Error("matchesPredicate(eth0, eth0) should be true")
	}
	if matchesPredicate("eth0", "eth1") {
		t.Error("matchesPredicate(eth0, eth1) should be false")
	}
}
