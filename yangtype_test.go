package sidcodec

import (
	"testing"

	"github.com/openconfig/goyang/pkg/yang"
)

func TestTypeInfoFromYangType_ScalarKinds(t *testing.T) {
	tests := []struct {
		kind yang.TypeKind
		want TypeKind
	}{
		{yang.Ybool, TypeBoolean},
		{yang.Ystring, TypeString},
		{yang.Yint8, TypeInt8},
		{yang.Yint16, TypeInt16},
		{yang.Yint32, TypeInt32},
		{yang.Yint64, TypeInt64},
		{yang.Yuint8, TypeUint8},
		{yang.Yuint16, TypeUint16},
		{yang.Yuint32, TypeUint32},
		{yang.Yuint64, TypeUint64},
		{yang.Ybinary, TypeBinary},
		{yang.Yempty, TypeEmpty},
	}
	for _, tt := range tests {
		ti, err := typeInfoFromYangType(&yang.YangType{Kind: tt.kind})
		if err != nil {
			t.Fatalf("typeInfoFromYangType(%v) error = %v", tt.kind, err)
		}
		if ti.Kind != tt.want {
			t.Errorf("typeInfoFromYangType(%v).Kind = %v, want %v", tt.kind, ti.Kind, tt.want)
		}
	}
}

func TestTypeInfoFromYangType_Decimal64(t *testing.T) {
	ti, err := typeInfoFromYangType(&yang.YangType{Kind: yang.Ydecimal64, FractionDigits: 2})
	if err != nil {
		t.Fatalf("typeInfoFromYangType() error = %v", err)
	}
	if ti.Kind != TypeDecimal64 || ti.FractionDigits != 2 {
		t.Errorf("typeInfoFromYangType() = %+v, want Kind=Decimal64 FractionDigits=2", ti)
	}
}

func TestTypeInfoFromYangType_Leafref(t *testing.T) {
	ti, err := typeInfoFromYangType(&yang.YangType{Kind: yang.Yleafref, Path: "/a/b"})
	if err != nil {
		t.Fatalf("typeInfoFromYangType() error = %v", err)
	}
	if ti.Kind != TypeLeafref || ti.LeafrefTarget != "/a/b" {
		t.Errorf("typeInfoFromYangType() = %+v, want Kind=Leafref LeafrefTarget=/a/b", ti)
	}
}

func TestTypeInfoFromYangType_Nil(t *testing.T) {
	if _, err := typeInfoFromYangType(nil); err == nil {
		t.Fatal("typeInfoFromYangType(nil) should error")
	}
}

func TestEnumTypeInfo_NilEnum(t *testing.T) {
	ti := enumTypeInfo(&yang.YangType{Kind: yang.Yenum})
	if ti.Kind != TypeEnumeration {
		t.Errorf("enumTypeInfo().Kind = %v, want TypeEnumeration", ti.Kind)
	}
	if len(ti.NameToValue) != 0 || len(ti.ValueToName) != 0 {
		t.Errorf("enumTypeInfo() with nil Enum should have empty bijections, got %+v", ti)
	}
}

func TestWalkEntry_LeafTypeAndNodeOrder(t *testing.T) {
	leaf := &yang.Entry{Name: "enabled", Type: &yang.YangType{Kind: yang.Ybool}}
	root := &yang.Entry{
		Name: "interfaces",
		Dir: map[string]*yang.Entry{
			"enabled": leaf,
		},
	}
	out := newModuleTypes()
	if err := walkEntry(root, "", out); err != nil {
		t.Fatalf("walkEntry() error = %v", err)
	}
	ti, ok := out.types["interfaces/enabled"]
	if !ok {
		t.Fatalf("expected a type entry for interfaces/enabled, got %v", out.types)
	}
	if ti.Kind != TypeBoolean {
		t.Errorf("walkEntry() leaf kind = %v, want TypeBoolean", ti.Kind)
	}
	if _, ok := out.nodeOrders["enabled"]; !ok {
		t.Errorf("expected nodeOrders to record 'enabled', got %v", out.nodeOrders)
	}
}

func TestWalkEntry_UnknownTypeIsNotFatal(t *testing.T) {
	leaf := &yang.Entry{Name: "mystery", Type: &yang.YangType{Kind: yang.YinstanceIdentifier}}
	root := &yang.Entry{
		Name: "top",
		Dir: map[string]*yang.Entry{
			"mystery": leaf,
		},
	}
	out := newModuleTypes()
	if err := walkEntry(root, "", out); err != nil {
		t.Fatalf("walkEntry() should not error on an unsupported kind, got %v", err)
	}
	ti := out.types["top/mystery"]
	if ti == nil || ti.Kind != TypeUnknown {
		t.Errorf("walkEntry() unsupported kind = %+v, want TypeUnknown", ti)
	}
}
