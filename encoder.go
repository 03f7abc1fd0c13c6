package sidcodec

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
	"github.com/openconfig/ygot/util"
	"gopkg.in/yaml.v2"
)

// EncodeOptions controls EncodeYAMLToCBOR.
type EncodeOptions struct {
	// SortMode picks the byte-level ordering of the emitted CBOR maps.
	// "velocity" (the default) preserves the order this encoder builds
	// (NodeOrders, then ascending SID); "rfc8949" instead sorts map pairs
	// by their encoded-key bytes per RFC 8949's core deterministic
	// encoding, independent of insertion order.
	SortMode string

	// AllowMultiQuery makes ExtractSidQueries return one SID query per
	// entry; by default only the first query is kept. ExtractSidQueries
	// returns the queries as Go values and does not CBOR-encode them.
	AllowMultiQuery bool
}

const (
	sortModeVelocity = "velocity"
	sortModeRFC8949  = "rfc8949"
)

// orderedEntry is one key/value pair of a container node, kept in the
// order the encoder's ordering rule (NodeOrders, else ascending SID)
// produces.
type orderedEntry struct {
	key   interface{} // int64 delta-SID or uint64 absolute SID
	value interface{}
}

// orderedMap is a CBOR map with an explicit, caller-controlled pair order,
// standing in for Go's unordered map[K]V the way encoder.go needs to when
// SortMode is "velocity".
type orderedMap struct {
	entries []orderedEntry
}

// treeNode is one node of the in-progress Delta-SID tree the encoder
// builds from (path, value) entries before it is rendered to CBOR.
type treeNode struct {
	sid      SID
	isList   bool
	children map[SID]*treeNode // container: absolute child SID -> node
	entries  []*listElement    // list: each element is one list entry
	scalar   interface{}
	hasValue bool
}

// listElement is one entry of a list node under construction. fields holds
// the rendered child tree (by absolute SID); rawKeys holds the predicate
// strings as parsed, used only to recognize "the same list entry seen
// again across multiple YAML lines" — matching happens against the
// original predicate text, not against the already scalar-encoded key value.
type listElement struct {
	fields  map[SID]*treeNode
	rawKeys map[string]string
}

func newTreeNode(sid SID) *treeNode {
	return &treeNode{sid: sid, children: map[SID]*treeNode{}}
}

// EncodeYAMLToCBOR parses operator YAML into (instance-id, value) entries,
// resolves every segment to an absolute SID, builds the Delta-SID tree, and
// renders it to CBOR bytes.
func EncodeYAMLToCBOR(yamlText []byte, tables *Tables, opts EncodeOptions) ([]byte, error) {
	entries, err := parseOperatorYAML(yamlText)
	if err != nil {
		return nil, err
	}

	root := newTreeNode(0)
	for _, e := range entries {
		if err := insertEntry(root, e, tables); err != nil {
			return nil, err
		}
	}

	sortMode := opts.SortMode
	if sortMode == "" {
		sortMode = sortModeVelocity
	}

	rendered, err := renderRootChildren(root, tables, sortMode)
	if err != nil {
		return nil, err
	}
	return marshalOrdered(rendered, sortMode)
}

// parseOperatorYAML accepts either of the two input shapes the encoder's
// callers use: a top-level sequence of single-key maps, each an
// instance-identifier path to a scalar or map value; or a top-level
// hierarchical mapping (module/container/list nesting, RFC 7951 style).
// Both are flattened into the same []PathEntry shape. A trailing colon on
// a bare path, or a nil leaf in the hierarchical form, marks a map-valued
// entry rather than a scalar leaf.
func parseOperatorYAML(yamlText []byte) ([]PathEntry, error) {
	var probe interface{}
	if err := yaml.Unmarshal(yamlText, &probe); err != nil {
		return nil, errSchemaParse("malformed operator YAML: %v", err)
	}

	if _, isList := probe.([]interface{}); isList || probe == nil {
		return parseInstanceIDList(yamlText)
	}
	if root, isMap := probe.(map[interface{}]interface{}); isMap {
		var out []PathEntry
		walkHierarchicalYAML(root, nil, &out)
		return out, nil
	}
	return nil, errSchemaParse("operator YAML root must be a sequence or a mapping, got %T", probe)
}

// parseInstanceIDList reads the top-level YAML sequence of single-key
// maps, each an instance-identifier path to a scalar or map value.
func parseInstanceIDList(yamlText []byte) ([]PathEntry, error) {
	var doc []map[interface{}]interface{}
	if err := yaml.Unmarshal(yamlText, &doc); err != nil {
		return nil, errSchemaParse("malformed operator YAML: %v", err)
	}

	var out []PathEntry
	for _, item := range doc {
		for k, v := range item {
			pathStr, ok := k.(string)
			if !ok {
				return nil, errInstanceIdParse("non-string instance-id key %v", k)
			}
			segments, err := parseInstanceID(pathStr)
			if err != nil {
				return nil, err
			}
			out = append(out, PathEntry{
				Segments: segments,
				Value:    v,
				IsMap:    v == nil,
			})
		}
	}
	return out, nil
}

// walkHierarchicalYAML descends a nested YAML mapping/sequence tree,
// accumulating the segment path seen so far, and appends one PathEntry
// per leaf it reaches. A "module:name" key only needs the module prefix
// at a namespace boundary (mirroring decodeNodeName's rfc7951 rule in
// reverse), but accepting a prefix on every segment costs nothing and
// keeps a fully-prefixed document equally valid input.
func walkHierarchicalYAML(node map[interface{}]interface{}, prefix []Segment, out *[]PathEntry) {
	for k, v := range node {
		name, ok := k.(string)
		if !ok {
			continue
		}
		seg := Segment{Predicates: map[string]string{}}
		if idx := strings.IndexByte(name, ':'); idx >= 0 {
			seg.Prefix, seg.Name = name[:idx], name[idx+1:]
		} else {
			seg.Name = name
		}
		segments := append(append([]Segment{}, prefix...), seg)

		switch vv := v.(type) {
		case map[interface{}]interface{}:
			walkHierarchicalYAML(vv, segments, out)
		case []interface{}:
			walkHierarchicalList(vv, segments, out)
		default:
			*out = append(*out, PathEntry{Segments: segments, Value: v, IsMap: v == nil})
		}
	}
}

// walkHierarchicalList handles a YAML sequence reached mid-walk: either a
// list of scalar leaves under a leaf-list, or a list of entry maps under a
// YANG list, where each entry's own key/value pairs (including its list
// keys) become predicates and nested fields off the same segment path.
func walkHierarchicalList(items []interface{}, segments []Segment, out *[]PathEntry) {
	for _, item := range items {
		entry, ok := item.(map[interface{}]interface{})
		if !ok {
			*out = append(*out, PathEntry{Segments: segments, Value: item})
			continue
		}

		predicates := map[string]string{}
		for k, v := range entry {
			if s, ok := scalarToPredicateString(v); ok {
				if name, ok := k.(string); ok {
					predicates[name] = s
				}
			}
		}
		keyed := append([]Segment{}, segments...)
		last := len(keyed) - 1
		keyed[last] = Segment{Prefix: keyed[last].Prefix, Name: keyed[last].Name, Predicates: predicates}

		// Every field is walked into its own PathEntry, even one already
		// folded into predicates above: selectListElement plants predicate
		// fields as key leaves by SID, so re-applying the same value here
		// through applyLeafValue is a harmless overwrite, and it guarantees
		// an entry whose every field is predicate-shaped (e.g. two plain
		// scalar fields) still produces at least one PathEntry that visits
		// this list element instead of silently vanishing.
		for k, v := range entry {
			name, ok := k.(string)
			if !ok {
				continue
			}
			seg := Segment{Predicates: map[string]string{}}
			if idx := strings.IndexByte(name, ':'); idx >= 0 {
				seg.Prefix, seg.Name = name[:idx], name[idx+1:]
			} else {
				seg.Name = name
			}
			fieldSegments := append(append([]Segment{}, keyed...), seg)

			switch vv := v.(type) {
			case map[interface{}]interface{}:
				walkHierarchicalYAML(vv, fieldSegments, out)
			case []interface{}:
				walkHierarchicalList(vv, fieldSegments, out)
			default:
				*out = append(*out, PathEntry{Segments: fieldSegments, Value: v, IsMap: v == nil})
			}
		}
	}
}

// scalarToPredicateString renders a leaf value the way a YAML list key
// appears in an instance-identifier predicate: unquoted text. Only string
// and integer values are converted; a bool is excluded on purpose, since
// encodeValue requires an actual Go bool for TypeBoolean and never accepts
// a textual "true"/"false" the way it does numeric strings — a bool field
// just flows through the ordinary per-field PathEntry walk instead.
func scalarToPredicateString(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case int:
		return strconv.Itoa(vv), true
	default:
		return "", false
	}
}

// insertEntry resolves every segment of one PathEntry to an absolute SID,
// descending the tree under construction, and plants the scalar or
// map-valued leaf at the walk's end.
func insertEntry(root *treeNode, entry PathEntry, tables *Tables) error {
	ctx := ResolveContext{}
	node := root
	for i, seg := range entry.Segments {
		sid, err := resolvePath(entry.Segments[:i+1], ctx, tables)
		if err != nil {
			return err
		}
		ctx.StrippedAncestors = append(ctx.StrippedAncestors, seg.Name)

		if len(seg.Predicates) > 0 {
			elem, err := selectListElement(node, sid, seg, tables, entry.Segments[:i+1])
			if err != nil {
				return err
			}
			// fieldsNode wraps elem.fields directly (not a fresh child
			// keyed by sid) so that a path continuing past the predicate
			// segment plants its leaves straight into the list entry's own
			// flat field map, alongside its key leaves, rather than
			// nesting them one level deeper under the list's own SID.
			fieldsNode := &treeNode{sid: sid, children: elem.fields}
			if i == len(entry.Segments)-1 {
				return applyLeafValue(fieldsNode, sid, entry.Value, tables)
			}
			node = fieldsNode
			continue
		}

		if i == len(entry.Segments)-1 {
			return applyLeafValue(node, sid, entry.Value, tables)
		}
		next, ok := node.children[sid]
		if !ok {
			next = newTreeNode(sid)
			node.children[sid] = next
		}
		node = next
	}
	return nil
}

// selectListElement finds an existing list element whose raw predicate
// text matches seg's predicates, or appends a new one and plants its key
// leaves (scalar-encoded) — a "check existent, else create" shape.
func selectListElement(parent *treeNode, listSID SID, seg Segment, tables *Tables, segments []Segment) (*listElement, error) {
	list, ok := parent.children[listSID]
	if !ok {
		list = newTreeNode(listSID)
		list.isList = true
		parent.children[listSID] = list
	}
	list.isList = true

	for _, elem := range list.entries {
		if rawKeysEqual(elem.rawKeys, seg.Predicates) {
			return elem, nil
		}
	}

	elem := &listElement{fields: map[SID]*treeNode{}, rawKeys: copyStringMap(seg.Predicates)}
	for key, value := range seg.Predicates {
		keySID, err := resolveListKeySID(tables, segments, key)
		if err != nil {
			return nil, err
		}
		leaf := newTreeNode(keySID)
		leaf.hasValue = true
		if ti := tables.Types.Types[tables.Sid.SIDToPath[keySID]]; ti != nil {
			encoded, err := encodeValue(ti, value, tables.Sid.SIDToPath[keySID], tables)
			if err != nil {
				return nil, err
			}
			leaf.scalar = encoded
		} else {
			leaf.scalar = value
		}
		elem.fields[keySID] = leaf
	}
	list.entries = append(list.entries, elem)
	return elem, nil
}

func rawKeysEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !matchesPredicate(v, bv) {
			return false
		}
	}
	return true
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func resolveListKeySID(tables *Tables, listSegments []Segment, key string) (SID, error) {
	stripped := joinSegmentsStripped(listSegments) + "/" + key
	if sid, ok := tables.Sid.PathToSID[stripped]; ok {
		return sid, nil
	}
	if candidates := tables.Sid.LeafToPaths[key]; len(candidates) > 0 {
		return tables.Sid.PathToSID[candidates[0]], nil
	}
	return 0, errPathUnresolved(stripped)
}

// applyLeafValue stores the encoded value of the leaf at sid under node. A
// nil value (util.IsValueNil) is stored as an explicit null without
// consulting the leaf's type or PathEntry.IsMap, so an `empty`-typed leaf
// and a bare map-valued path are handled alike: the node renders as null
// unless a later entry plants children under it, in which case it renders
// as a container.
func applyLeafValue(node *treeNode, sid SID, value interface{}, tables *Tables) error {
	child, ok := node.children[sid]
	if !ok {
		child = newTreeNode(sid)
		node.children[sid] = child
	}
	if util.IsValueNil(value) {
		child.hasValue = true
		child.scalar = nil
		return nil
	}
	ti := tables.Types.Types[tables.Sid.SIDToPath[sid]]
	if ti == nil {
		glog.Warningf("%v", (&unknownTypeWarning{Path: tables.Sid.SIDToPath[sid]}).Error())
		child.hasValue = true
		child.scalar = value
		return nil
	}
	encoded, err := encodeValue(ti, value, tables.Sid.SIDToPath[sid], tables)
	child.hasValue = true
	child.scalar = encoded
	return err
}

// renderRootChildren renders the root's children into an orderedMap whose
// keys are always absolute SIDs (the root has no parent).
func renderRootChildren(root *treeNode, tables *Tables, sortMode string) (*orderedMap, error) {
	return renderContainer(root, 0, tables, sortMode)
}

// renderContainer renders node's children as a container map. Each child
// key is the Delta-SID (child.sid - parentSID) when nodeInfo confirms that
// relationship, else the absolute SID.
func renderContainer(node *treeNode, parentSID SID, tables *Tables, sortMode string) (*orderedMap, error) {
	type keyed struct {
		sid   SID
		value interface{}
		order int
	}
	var items []keyed

	for sid, child := range node.children {
		rendered, err := renderNode(child, sid, tables, sortMode)
		if err != nil {
			return nil, err
		}
		items = append(items, keyed{sid: sid, value: rendered, order: nodeOrderFor(tables, sid)})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].order != items[j].order {
			return items[i].order < items[j].order
		}
		return items[i].sid < items[j].sid
	})

	out := &orderedMap{}
	for _, it := range items {
		key := deltaOrAbsoluteKey(it.sid, node.sid, tables)
		out.entries = append(out.entries, orderedEntry{key: key, value: it.value})
	}
	return out, nil
}

func renderNode(child *treeNode, sid SID, tables *Tables, sortMode string) (interface{}, error) {
	if child.isList {
		seq := make([]interface{}, 0, len(child.entries))
		for _, elem := range child.entries {
			listNode := &treeNode{sid: sid, children: elem.fields}
			rendered, err := renderContainer(listNode, sid, tables, sortMode)
			if err != nil {
				return nil, err
			}
			seq = append(seq, rendered)
		}
		return seq, nil
	}
	if child.hasValue && len(child.children) == 0 {
		return child.scalar, nil
	}
	return renderContainer(child, sid, tables, sortMode)
}

// deltaOrAbsoluteKey picks the Delta-SID when the child's recorded parent
// relationship matches parentSID, falling back to the absolute SID.
func deltaOrAbsoluteKey(childSID, parentSID SID, tables *Tables) interface{} {
	path, ok := tables.Sid.SIDToPath[childSID]
	if ok {
		if info, ok := tables.Sid.NodeInfo[path]; ok && info.HasParent && info.Parent == parentSID {
			return info.DeltaSID
		}
	}
	return uint64(childSID)
}

func nodeOrderFor(tables *Tables, sid SID) int {
	path, ok := tables.Sid.SIDToPath[sid]
	if !ok {
		return 1 << 30
	}
	if order, ok := tables.Types.NodeOrders[lastSegmentName(path)]; ok {
		return order
	}
	return 1 << 30
}

// marshalOrdered renders an orderedMap/[]interface{}/scalar tree to CBOR
// bytes. "velocity" mode hand-writes the map header so pair order matches
// exactly what renderContainer built; "rfc8949" mode hands the same tree,
// converted to native Go maps, to the library's core-deterministic sorter
// since that sort operates on each pair's encoded bytes and is therefore
// independent of Go map iteration order.
func marshalOrdered(v interface{}, sortMode string) ([]byte, error) {
	if sortMode == sortModeRFC8949 {
		em, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return nil, err
		}
		return em.Marshal(toNativeValue(v))
	}
	var buf bytes.Buffer
	if err := writeVelocity(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeVelocity(buf *bytes.Buffer, v interface{}) error {
	switch vv := v.(type) {
	case *orderedMap:
		if err := writeCBORMapHeader(buf, len(vv.entries)); err != nil {
			return err
		}
		for _, e := range vv.entries {
			kb, err := cbor.Marshal(e.key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			if err := writeVelocity(buf, e.value); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		if err := writeCBORArrayHeader(buf, len(vv)); err != nil {
			return err
		}
		for _, e := range vv {
			if err := writeVelocity(buf, e); err != nil {
				return err
			}
		}
		return nil
	default:
		b, err := cbor.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// writeCBORMapHeader writes a definite-length CBOR map header (major type
// 5) for n pairs, per RFC 8949 §3.1.
func writeCBORMapHeader(buf *bytes.Buffer, n int) error {
	return writeCBORHeader(buf, 5, uint64(n))
}

// writeCBORArrayHeader writes a definite-length CBOR array header (major
// type 4) for n elements.
func writeCBORArrayHeader(buf *bytes.Buffer, n int) error {
	return writeCBORHeader(buf, 4, uint64(n))
}

func writeCBORHeader(buf *bytes.Buffer, majorType byte, n uint64) error {
	major := majorType << 5
	switch {
	case n < 24:
		buf.WriteByte(major | byte(n))
	case n <= 0xff:
		buf.WriteByte(major | 24)
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(major | 25)
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	case n <= 0xffffffff:
		buf.WriteByte(major | 26)
		for shift := 24; shift >= 0; shift -= 8 {
			buf.WriteByte(byte(n >> shift))
		}
	default:
		buf.WriteByte(major | 27)
		for shift := 56; shift >= 0; shift -= 8 {
			buf.WriteByte(byte(n >> shift))
		}
	}
	return nil
}

// toNativeValue converts our ordered intermediate tree to Go's native
// map/slice/scalar shapes for "rfc8949" mode, where the library's own
// sorting makes our explicit order moot.
func toNativeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case *orderedMap:
		out := make(map[interface{}]interface{}, len(vv.entries))
		for _, e := range vv.entries {
			out[e.key] = toNativeValue(e.value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = toNativeValue(e)
		}
		return out
	default:
		return v
	}
}

// extractSidQueries produces the SID-array query form for the device's
// fetch verb: each instance-id becomes a single SID (leaf) or a
// [listSid, key1, key2, ...] array (list entry).
func extractSidQueries(entries []PathEntry, tables *Tables, opts EncodeOptions) ([]interface{}, error) {
	var out []interface{}
	for _, entry := range entries {
		q, err := buildSidQuery(entry, tables)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
		if !opts.AllowMultiQuery {
			break
		}
	}
	return out, nil
}

func buildSidQuery(entry PathEntry, tables *Tables) (interface{}, error) {
	sid, err := resolvePath(entry.Segments, ResolveContext{}, tables)
	if err != nil {
		return nil, err
	}
	last := entry.Segments[len(entry.Segments)-1]
	if len(last.Predicates) == 0 {
		return uint64(sid), nil
	}
	arr := []interface{}{uint64(sid)}
	keys := make([]string, 0, len(last.Predicates))
	for k := range last.Predicates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		arr = append(arr, last.Predicates[k])
	}
	return arr, nil
}
