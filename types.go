package sidcodec

// SID is a Schema Item Identifier (RFC 9254): a compact integer naming a
// YANG schema node, identity, feature, or module within a deployment.
type SID uint64

// NodeInfo is the per-data-node record tracking a node's parent SID and
// its delta encoding. DeltaSID equals SID-Parent when Parent is present,
// else it equals SID itself.
type NodeInfo struct {
	SID          SID
	Parent       SID
	HasParent    bool
	DeltaSID     int64
	Depth        int
	PrefixedPath string
}

// SidTree is the global, read-only-after-build table produced by schema
// merge. Every field pair that looks like a reverse map is kept as two
// paired maps, never derived on the fly, because fuzzy resolution needs
// both directions simultaneously.
type SidTree struct {
	PathToSID      map[string]SID
	SIDToPath      map[SID]string
	PrefixedToSID  map[string]SID
	SIDToPrefixed  map[SID]string
	PathToPrefixed map[string]string

	IdentityToSID map[string]SID
	SIDToIdentity map[SID]string

	NodeInfo map[string]*NodeInfo // keyed by stripped path

	// LeafToPaths indexes a leaf's bare name to every stripped path that
	// ends in it, for fuzzy resolution when choice/case segments are
	// omitted.
	LeafToPaths map[string][]string

	aliasApplied bool // sentinel: alias augmentation is idempotent
}

func newSidTree() *SidTree {
	return &SidTree{
		PathToSID:      map[string]SID{},
		SIDToPath:      map[SID]string{},
		PrefixedToSID:  map[string]SID{},
		SIDToPrefixed:  map[SID]string{},
		PathToPrefixed: map[string]string{},
		IdentityToSID:  map[string]SID{},
		SIDToIdentity:  map[SID]string{},
		NodeInfo:       map[string]*NodeInfo{},
		LeafToPaths:    map[string][]string{},
	}
}

// TypeKind tags the variant a TypeInfo holds.
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeBoolean
	TypeString
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeEnumeration
	TypeIdentityref
	TypeDecimal64
	TypeUnion
	TypeBits
	TypeBinary
	TypeEmpty
	TypeLeafref
)

// TypeInfo is a tagged variant over the concrete YANG type of a leaf,
// leaf-list, or typedef.
type TypeInfo struct {
	Kind TypeKind

	// TypeEnumeration / TypeBits: bijective name<->value maps.
	NameToValue map[string]int64
	ValueToName map[int64]string

	// TypeIdentityref: the base identity, fully qualified as module:identity.
	IdentityBase string

	// TypeDecimal64
	FractionDigits int

	// TypeUnion: ordered member types, tried in order on encode.
	Members []*TypeInfo

	// TypeLeafref
	LeafrefTarget string

	// Original, when this TypeInfo was produced from a typedef, names the
	// typedef it came from so a later vendor-prefix merge can rewrite
	// references to it.
	Original string
}

// TypeTable is the merged, read-only-after-build type table produced by
// schema merge.
type TypeTable struct {
	Types      map[string]*TypeInfo // stripped path -> TypeInfo
	Identities map[string]*Identity // identity name -> {bases}
	Typedefs   map[string]*TypeInfo // typedef name -> TypeInfo

	ChoiceNames map[string]bool
	CaseNames   map[string]bool

	NodeOrders map[string]int // node name -> ordering index, for deterministic emission

	mergedTypedefs map[string]bool // typedefs touched by the vendor-prefix merge
}

func newTypeTable() *TypeTable {
	return &TypeTable{
		Types:          map[string]*TypeInfo{},
		Identities:     map[string]*Identity{},
		Typedefs:       map[string]*TypeInfo{},
		ChoiceNames:    map[string]bool{},
		CaseNames:      map[string]bool{},
		NodeOrders:     map[string]int{},
		mergedTypedefs: map[string]bool{},
	}
}

// Identity records an identity declaration and the bases it derives from.
type Identity struct {
	Name  string
	Bases map[string]bool
}

// Tables bundles the SidTree and TypeTable: the immutable pair every
// downstream operation is built against.
type Tables struct {
	Sid   *SidTree
	Types *TypeTable
}

// Segment is one element of a parsed instance-identifier.
type Segment struct {
	Prefix     string
	Name       string
	Predicates map[string]string // list-key predicates, empty for a bare segment
}

// PathEntry pairs a parsed path with the value to encode at it.
type PathEntry struct {
	Segments []Segment
	Value    interface{}
	IsMap    bool // a trailing colon in the source YAML: map-valued, not a list item
}
