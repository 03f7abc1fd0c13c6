package sidcodec

import (
	"fmt"
	"sort"

	"github.com/openconfig/goyang/pkg/yang"
)

// moduleTypes is one module's parsed output: a partial type table plus
// the choice/case names and child orders needed by the cross-module merge
// step.
type moduleTypes struct {
	types       map[string]*TypeInfo
	identities  map[string]*Identity
	typedefs    map[string]*TypeInfo
	choiceNames map[string]bool
	caseNames   map[string]bool
	nodeOrders  map[string]int
}

func newModuleTypes() *moduleTypes {
	return &moduleTypes{
		types:       map[string]*TypeInfo{},
		identities:  map[string]*Identity{},
		typedefs:    map[string]*TypeInfo{},
		choiceNames: map[string]bool{},
		caseNames:   map[string]bool{},
		nodeOrders:  map[string]int{},
	}
}

// extractModuleTypes parses one already-processed YANG module (via goyang)
// and extracts its type information.
func extractModuleTypes(ms *yang.Modules, module *yang.Module) (*moduleTypes, error) {
	out := newModuleTypes()

	for _, td := range module.Typedef {
		ti, err := typeInfoFromYangType(td.YangType)
		if err != nil {
			return nil, errSchemaParse("%s: typedef %s: %v", module.Name, td.Name, err).withPath(module.Name)
		}
		ti.Original = td.Name
		out.typedefs[td.Name] = ti
	}

	entry := yang.ToEntry(module)
	if entry == nil {
		return nil, errSchemaParse("%s: module produced no schema entry", module.Name).withPath(module.Name)
	}

	for _, id := range entry.Identities {
		out.identities[id.Name] = identityFromYang(id)
	}

	// Walk the module entry's own children, not the module entry itself:
	// SidTree paths (sidfile.go's stripModulePrefixes) are bare,
	// slash-joined segment names with no leading slash and no module-name
	// segment, so TypeTable paths must use that exact same convention for
	// tables.Types.Types[tables.Sid.SIDToPath[sid]] to ever find a hit.
	names := make([]string, 0, len(entry.Dir))
	for name := range entry.Dir {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		out.nodeOrders[name] = i
		if err := walkEntry(entry.Dir[name], "", out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// walkEntry recursively extracts TypeInfo for every leaf/leaf-list under e,
// a child order for containers/lists, and the set of choice/case names
// encountered, mirroring buildSchemaNode's recursive Dir walk. The child
// order is each child's position in alphabetical order of names; the order
// in which the module declares the children is not kept. path
// is built without a leading slash, matching sidfile.go's stripped-path
// convention.
func walkEntry(e *yang.Entry, parentPath string, out *moduleTypes) error {
	if e.IsChoice() {
		out.choiceNames[e.Name] = true
	}
	if e.IsCase() {
		out.caseNames[e.Name] = true
	}

	path := e.Name
	if parentPath != "" {
		path = parentPath + "/" + e.Name
	}

	if e.IsLeaf() || e.IsLeafList() {
		ti, err := typeInfoFromYangType(e.Type)
		if err != nil {
			// Unknown type on a leaf is not fatal: TypeUnknown, encoder
			// falls back to string and emits an UnknownType warning.
			out.types[path] = &TypeInfo{Kind: TypeUnknown}
			return nil
		}
		out.types[path] = ti
		return nil
	}

	if len(e.Dir) == 0 {
		return nil
	}

	names := make([]string, 0, len(e.Dir))
	for name := range e.Dir {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		out.nodeOrders[name] = i
		if err := walkEntry(e.Dir[name], path, out); err != nil {
			return err
		}
	}
	return nil
}

// typeInfoFromYangType translates a resolved goyang YangType (typedef
// chains already collapsed by goyang's Process pass) into our TypeInfo sum
// type.
func typeInfoFromYangType(typ *yang.YangType) (*TypeInfo, error) {
	if typ == nil {
		return nil, fmt.Errorf("nil type")
	}
	switch typ.Kind {
	case yang.Ybool:
		return &TypeInfo{Kind: TypeBoolean}, nil
	case yang.Ystring:
		return &TypeInfo{Kind: TypeString}, nil
	case yang.Yint8:
		return &TypeInfo{Kind: TypeInt8}, nil
	case yang.Yint16:
		return &TypeInfo{Kind: TypeInt16}, nil
	case yang.Yint32:
		return &TypeInfo{Kind: TypeInt32}, nil
	case yang.Yint64:
		return &TypeInfo{Kind: TypeInt64}, nil
	case yang.Yuint8:
		return &TypeInfo{Kind: TypeUint8}, nil
	case yang.Yuint16:
		return &TypeInfo{Kind: TypeUint16}, nil
	case yang.Yuint32:
		return &TypeInfo{Kind: TypeUint32}, nil
	case yang.Yuint64:
		return &TypeInfo{Kind: TypeUint64}, nil
	case yang.Yenum:
		return enumTypeInfo(typ), nil
	case yang.Ybits:
		ti := enumTypeInfo(typ)
		ti.Kind = TypeBits
		return ti, nil
	case yang.Yidentityref:
		base := ""
		if typ.IdentityBase != nil {
			base = identityBaseName(typ.IdentityBase)
		}
		return &TypeInfo{Kind: TypeIdentityref, IdentityBase: base}, nil
	case yang.Ydecimal64:
		return &TypeInfo{Kind: TypeDecimal64, FractionDigits: int(typ.FractionDigits)}, nil
	case yang.Yunion:
		members := make([]*TypeInfo, 0, len(typ.Type))
		for _, m := range typ.Type {
			mi, err := typeInfoFromYangType(m)
			if err != nil {
				mi = &TypeInfo{Kind: TypeUnknown}
			}
			members = append(members, mi)
		}
		return &TypeInfo{Kind: TypeUnion, Members: members}, nil
	case yang.Ybinary:
		return &TypeInfo{Kind: TypeBinary}, nil
	case yang.Yempty:
		return &TypeInfo{Kind: TypeEmpty}, nil
	case yang.Yleafref:
		return &TypeInfo{Kind: TypeLeafref, LeafrefTarget: typ.Path}, nil
	default:
		return nil, fmt.Errorf("unsupported YANG type kind %v", typ.Kind)
	}
}

// enumTypeInfo builds the name<->value bijection for an enumeration or
// bits type. Explicit "value"/"position" statements override positional
// assignment, which is exactly what goyang's Enum.NameMap already encodes.
func enumTypeInfo(typ *yang.YangType) *TypeInfo {
	ti := &TypeInfo{
		Kind:        TypeEnumeration,
		NameToValue: map[string]int64{},
		ValueToName: map[int64]string{},
	}
	if typ.Enum == nil {
		return ti
	}
	for name, val := range typ.Enum.NameMap() {
		ti.NameToValue[name] = val
		ti.ValueToName[val] = name
	}
	return ti
}

// identityFromYang converts one goyang-parsed identity declaration into
// our Identity record, recording its resolved base (if any) the same
// module-qualified way identityBaseName renders an identityref's base.
func identityFromYang(id *yang.Identity) *Identity {
	out := &Identity{Name: id.Name, Bases: map[string]bool{}}
	if id.Base != nil {
		out.Bases[identityBaseName(id.Base)] = true
	}
	return out
}

func identityBaseName(base *yang.Identity) string {
	mod := yang.RootNode(base)
	if mod != nil {
		return mod.Name + ":" + base.Name
	}
	return base.Name
}
