package sidcodec

import (
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v2"
)

// TestDecodeCBORToYAML_ListEntry decodes a Delta-SID encoded interface list
// entry back to a keyed YAML document.
func TestDecodeCBORToYAML_ListEntry(t *testing.T) {
	tables := buildInterfacesTables()
	payload, err := cbor.Marshal(map[interface{}]interface{}{
		uint64(2033): map[interface{}]interface{}{
			int64(1): []interface{}{
				map[interface{}]interface{}{
					int64(1): "1",
					int64(2): true,
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("building input CBOR: %v", err)
	}

	out, err := DecodeCBORToYAML(payload, tables, DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeCBORToYAML() error = %v", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decoded output is not valid YAML: %v\n%s", err, out)
	}
	ifacesRaw, ok := doc["ietf-interfaces:interfaces"]
	if !ok {
		t.Fatalf("expected top-level 'ietf-interfaces:interfaces' key, got %v", doc)
	}
	ifaces, ok := ifacesRaw.(map[interface{}]interface{})
	if !ok {
		t.Fatalf("expected map under 'ietf-interfaces:interfaces', got %T", ifacesRaw)
	}
	list, ok := ifaces["interface"].([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected one interface entry, got %v", ifaces["interface"])
	}
	entry, ok := list[0].(map[interface{}]interface{})
	if !ok {
		t.Fatalf("expected interface entry to be a map, got %T", list[0])
	}
	if entry["name"] != "1" {
		t.Errorf("name = %v, want \"1\"", entry["name"])
	}
	if entry["enabled"] != true {
		t.Errorf("enabled = %v, want true", entry["enabled"])
	}
}

// TestDecodeCBORToYAML_EmptyLeaf round-trips a null-valued empty-typed leaf.
func TestDecodeCBORToYAML_EmptyLeaf(t *testing.T) {
	tables := buildABTables()
	payload, err := cbor.Marshal(map[interface{}]interface{}{
		uint64(100): map[interface{}]interface{}{
			int64(3): nil,
		},
	})
	if err != nil {
		t.Fatalf("building input CBOR: %v", err)
	}

	out, err := DecodeCBORToYAML(payload, tables, DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeCBORToYAML() error = %v", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decoded output is not valid YAML: %v\n%s", err, out)
	}
	aRaw, ok := doc["m:a"]
	if !ok {
		t.Fatalf("expected top-level 'm:a' key, got %v", doc)
	}
	a, ok := aRaw.(map[interface{}]interface{})
	if !ok {
		t.Fatalf("expected map under 'm:a', got %T", aRaw)
	}
	if v, present := a["b"]; !present || v != nil {
		t.Errorf("a.b = %v (present=%v), want nil", v, present)
	}
}

// TestDecodeKeyToSID_AbsoluteFallback covers key 99 under parent 100 with
// no recorded parent relationship to 100 (nodeInfo shows no child of 100
// at delta 99), but SID 99 exists as an independent root node, so it must
// decode by absolute fallback.
func TestDecodeKeyToSID_AbsoluteFallback(t *testing.T) {
	tables := buildABTables()
	// Plant an unrelated root-level node at SID 99, sharing no parent
	// relationship with 100.
	tables.Sid.PathToSID["independent"] = 99
	tables.Sid.SIDToPath[99] = "independent"
	computeNodeInfo(tables.Sid)

	got, err := decodeKeyToSID(int64(99), SID(100), true, tables)
	if err != nil {
		t.Fatalf("decodeKeyToSID() error = %v", err)
	}
	if got != SID(99) {
		t.Errorf("decodeKeyToSID() = %d, want 99 (absolute fallback)", got)
	}
}

// TestEncodeDecodeRoundTrip confirms the encoder's output decodes back to
// an equivalent YAML document.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	tables := buildInterfacesTables()
	yamlText := []byte(`- /ietf-interfaces:interfaces/interface[name='1']/enabled: true` + "\n")

	cborBytes, err := EncodeYAMLToCBOR(yamlText, tables, EncodeOptions{})
	if err != nil {
		t.Fatalf("EncodeYAMLToCBOR() error = %v", err)
	}
	out, err := DecodeCBORToYAML(cborBytes, tables, DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeCBORToYAML() error = %v", err)
	}
	if !strings.Contains(out, "enabled: true") {
		t.Errorf("round-tripped YAML missing enabled: true:\n%s", out)
	}
	if !strings.Contains(out, `name: "1"`) && !strings.Contains(out, "name: 1") {
		t.Errorf("round-tripped YAML missing name key:\n%s", out)
	}
}
