package sidcodec

// buildInterfacesTables constructs a small ietf-interfaces-shaped fixture:
// interfaces->2033, interface->2034 (parent 2033, delta 1), name->2035
// (parent 2034, delta 1, the list key), enabled->2036 (parent 2034, delta 2).
func buildInterfacesTables() *Tables {
	sid := newSidTree()

	add := func(stripped, prefixed string, s SID) {
		sid.PathToSID[stripped] = s
		sid.SIDToPath[s] = stripped
		sid.PrefixedToSID[prefixed] = s
		sid.SIDToPrefixed[s] = prefixed
		sid.PathToPrefixed[stripped] = prefixed
		sid.LeafToPaths[lastSegmentName(stripped)] = append(sid.LeafToPaths[lastSegmentName(stripped)], stripped)
	}

	add("interfaces", "ietf-interfaces:interfaces", 2033)
	add("interfaces/interface", "ietf-interfaces:interfaces/ietf-interfaces:interface", 2034)
	add("interfaces/interface/name", "ietf-interfaces:interfaces/ietf-interfaces:interface/name", 2035)
	add("interfaces/interface/enabled", "ietf-interfaces:interfaces/ietf-interfaces:interface/enabled", 2036)

	computeNodeInfo(sid)

	tt := newTypeTable()
	tt.Types["interfaces/interface/name"] = &TypeInfo{Kind: TypeString}
	tt.Types["interfaces/interface/enabled"] = &TypeInfo{Kind: TypeBoolean}

	return &Tables{Sid: sid, Types: tt}
}

// buildABTables constructs a minimal two-node fixture: /m:a/m:b where
// a=100 (root) and b=103 (parent 100, delta 3).
func buildABTables() *Tables {
	sid := newSidTree()

	sid.PathToSID["a"] = 100
	sid.SIDToPath[100] = "a"
	sid.PrefixedToSID["m:a"] = 100
	sid.SIDToPrefixed[100] = "m:a"
	sid.PathToPrefixed["a"] = "m:a"

	sid.PathToSID["a/b"] = 103
	sid.SIDToPath[103] = "a/b"
	sid.PrefixedToSID["m:a/m:b"] = 103
	sid.SIDToPrefixed[103] = "m:a/m:b"
	sid.PathToPrefixed["a/b"] = "m:a/m:b"

	computeNodeInfo(sid)

	tt := newTypeTable()
	tt.Types["a/b"] = &TypeInfo{Kind: TypeEmpty}

	return &Tables{Sid: sid, Types: tt}
}
