package sidcodec

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// TestEncodeValue_Enumeration covers an enumeration name encoding to its
// bijective integer value.
func TestEncodeValue_Enumeration(t *testing.T) {
	ti := &TypeInfo{
		Kind:        TypeEnumeration,
		NameToValue: map[string]int64{"open": 0, "closed": 1},
		ValueToName: map[int64]string{0: "open", 1: "closed"},
	}
	got, err := encodeValue(ti, "open", "status", &Tables{Sid: newSidTree(), Types: newTypeTable()})
	if err != nil {
		t.Fatalf("encodeValue() error = %v", err)
	}
	if got != int64(0) {
		t.Errorf("encodeValue(open) = %v, want 0", got)
	}

	decoded, err := decodeValue(ti, int64(0), "status", &Tables{Sid: newSidTree(), Types: newTypeTable()})
	if err != nil {
		t.Fatalf("decodeValue() error = %v", err)
	}
	if decoded != "open" {
		t.Errorf("decodeValue(0) = %v, want open", decoded)
	}
}

// TestEncodeValue_Decimal64 covers 3.14 under decimal64{fractionDigits=2}
// encoding to CBOR tag(4, [-2, 314]).
func TestEncodeValue_Decimal64(t *testing.T) {
	ti := &TypeInfo{Kind: TypeDecimal64, FractionDigits: 2}
	tables := &Tables{Sid: newSidTree(), Types: newTypeTable()}

	got, err := encodeValue(ti, 3.14, "rate", tables)
	if err != nil {
		t.Fatalf("encodeValue() error = %v", err)
	}
	tag, ok := got.(cbor.Tag)
	if !ok {
		t.Fatalf("encodeValue() = %T, want cbor.Tag", got)
	}
	if tag.Number != 4 {
		t.Errorf("tag.Number = %d, want 4", tag.Number)
	}
	parts, ok := tag.Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("tag.Content = %v, want [exp, mantissa]", tag.Content)
	}
	if parts[0] != int64(-2) {
		t.Errorf("exponent = %v, want -2", parts[0])
	}
	if parts[1] != int64(314) {
		t.Errorf("mantissa = %v, want 314", parts[1])
	}

	decoded, err := decodeValue(ti, cbor.Tag{Number: 4, Content: []interface{}{int64(-2), int64(314)}}, "rate", tables)
	if err != nil {
		t.Fatalf("decodeValue() error = %v", err)
	}
	if decoded != 3.14 {
		t.Errorf("decodeValue() = %v, want 3.14", decoded)
	}
}

// TestEncodeValue_Identityref covers an identityref resolving to its
// identity's SID.
func TestEncodeValue_Identityref(t *testing.T) {
	sid := newSidTree()
	sid.IdentityToSID["iana-if-type:ethernetCsmacd"] = 1880
	sid.IdentityToSID["ethernetCsmacd"] = 1880
	sid.SIDToIdentity[1880] = "iana-if-type:ethernetCsmacd"
	tables := &Tables{Sid: sid, Types: newTypeTable()}

	ti := &TypeInfo{Kind: TypeIdentityref, IdentityBase: "iana-if-type:interfaceType"}

	got, err := encodeValue(ti, "ethernetCsmacd", "type", tables)
	if err != nil {
		t.Fatalf("encodeValue() error = %v", err)
	}
	if got != uint64(1880) {
		t.Errorf("encodeValue() = %v, want 1880", got)
	}

	decoded, err := decodeValue(ti, uint64(1880), "type", tables)
	if err != nil {
		t.Fatalf("decodeValue() error = %v", err)
	}
	if decoded != "iana-if-type:ethernetCsmacd" {
		t.Errorf("decodeValue() = %v, want iana-if-type:ethernetCsmacd", decoded)
	}
}

func TestEncodeDecodeNumeric(t *testing.T) {
	tables := &Tables{Sid: newSidTree(), Types: newTypeTable()}
	tests := []struct {
		name string
		kind TypeKind
		in   interface{}
		want interface{}
	}{
		{"int8", TypeInt8, int(42), int8(42)},
		{"uint32 from string", TypeUint32, "4000000000", uint32(4000000000)},
		{"uint64", TypeUint64, uint64(18000000000000000000), uint64(18000000000000000000)},
		{"int64 negative", TypeInt64, -7, int64(-7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := &TypeInfo{Kind: tt.kind}
			got, err := encodeValue(ti, tt.in, "leaf", tables)
			if err != nil {
				t.Fatalf("encodeValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("encodeValue(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestUnionEncodeDecode(t *testing.T) {
	sid := newSidTree()
	sid.IdentityToSID["base:alpha"] = 42
	sid.IdentityToSID["alpha"] = 42
	sid.SIDToIdentity[42] = "base:alpha"
	tables := &Tables{Sid: sid, Types: newTypeTable()}

	ti := &TypeInfo{
		Kind: TypeUnion,
		Members: []*TypeInfo{
			{Kind: TypeIdentityref, IdentityBase: "base:kind"},
			{Kind: TypeEnumeration, NameToValue: map[string]int64{"x": 1}, ValueToName: map[int64]string{1: "x"}},
			{Kind: TypeString},
		},
	}

	gotID, err := encodeValue(ti, "alpha", "u", tables)
	if err != nil {
		t.Fatalf("encodeValue(identity member) error = %v", err)
	}
	tag, ok := gotID.(cbor.Tag)
	if !ok || tag.Number != identityrefUnionTag {
		t.Fatalf("encodeValue(identity member) = %#v, want tag 44", gotID)
	}

	decodedID, err := decodeValue(ti, gotID, "u", tables)
	if err != nil {
		t.Fatalf("decodeValue(identity member) error = %v", err)
	}
	if decodedID != "base:alpha" {
		t.Errorf("decodeValue(identity member) = %v, want base:alpha", decodedID)
	}

	gotStr, err := encodeValue(ti, "plain text", "u", tables)
	if err != nil {
		t.Fatalf("encodeValue(string fallback member) error = %v", err)
	}
	if gotStr != "plain text" {
		t.Errorf("encodeValue(string fallback) = %v, want plain text", gotStr)
	}
}

// TestUnknownTypeFallsBackToString ensures the one recoverable case logs a
// warning instead of aborting: a zero-valued TypeInfo.Kind (TypeUnknown) still
// returns a usable value and no error.
func TestUnknownTypeFallsBackToString(t *testing.T) {
	ti := &TypeInfo{Kind: TypeUnknown}
	tables := &Tables{Sid: newSidTree(), Types: newTypeTable()}

	got, err := encodeValue(ti, 42, "mystery", tables)
	if err != nil {
		t.Fatalf("encodeValue(unknown type) returned an error, want nil (fallback): %v", err)
	}
	if got != "42" {
		t.Errorf("encodeValue(unknown type) = %v, want string fallback \"42\"", got)
	}

	decoded, err := decodeValue(ti, "raw", "mystery", tables)
	if err != nil {
		t.Fatalf("decodeValue(unknown type) returned an error, want nil (fallback): %v", err)
	}
	if decoded != "raw" {
		t.Errorf("decodeValue(unknown type) = %v, want raw", decoded)
	}
}

func TestDecimal64NegativeValue(t *testing.T) {
	ti := &TypeInfo{Kind: TypeDecimal64, FractionDigits: 3}
	tables := &Tables{Sid: newSidTree(), Types: newTypeTable()}

	got, err := encodeValue(ti, -1.5, "delta", tables)
	if err != nil {
		t.Fatalf("encodeValue() error = %v", err)
	}
	tag := got.(cbor.Tag)
	parts := tag.Content.([]interface{})
	if parts[1] != int64(-1500) {
		t.Errorf("mantissa = %v, want -1500", parts[1])
	}
}
