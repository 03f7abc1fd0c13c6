package sidcodec

import (
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
	"gopkg.in/yaml.v2"
)

// DecodeOptions controls DecodeCBORToYAML.
type DecodeOptions struct {
	// OutputFormat selects "rfc7951" (the default: module prefixes only
	// at namespace boundaries) or "fully-prefixed" (every segment
	// qualified).
	OutputFormat string
}

const (
	outputFormatRFC7951       = "rfc7951"
	outputFormatFullyPrefixed = "fully-prefixed"
)

// DecodeCBORToYAML decodes the CBOR bytes into a generic tree, expands
// Delta-SID keys to absolute SIDs per the parent-match-then-absolute-
// fallback cascade, decodes scalar leaves by TypeInfo kind, and marshals
// the reconstructed hierarchy as YAML.
func DecodeCBORToYAML(cborBytes []byte, tables *Tables, opts DecodeOptions) (string, error) {
	var raw interface{}
	if err := cbor.Unmarshal(cborBytes, &raw); err != nil {
		return "", errSchemaParse("malformed CBOR payload: %v", err)
	}
	rootMap, ok := raw.(map[interface{}]interface{})
	if !ok {
		return "", errSchemaParse("CBOR payload root must be a map, got %T", raw)
	}

	format := opts.OutputFormat
	if format == "" {
		format = outputFormatRFC7951
	}

	out := map[string]interface{}{}
	for k, v := range rootMap {
		sid, err := decodeKeyToSID(k, 0, false, tables)
		if err != nil {
			return "", err
		}
		name, module, err := decodeNodeName(sid, "", format, tables)
		if err != nil {
			return "", err
		}
		decoded, err := decodeTreeValue(sid, v, module, format, tables)
		if err != nil {
			return "", err
		}
		out[name] = decoded
	}

	b, err := yaml.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeKeyToSID treats k as a Delta-SID relative to parentSID first; only
// if that candidate has no recorded parent relationship to parentSID, it
// falls back to treating k as already absolute. For the root, hasParent is
// false and k must already be absolute.
func decodeKeyToSID(k interface{}, parentSID SID, hasParent bool, tables *Tables) (SID, error) {
	n, cerr := toInt64(k)
	if cerr != nil {
		return 0, cerr
	}

	if hasParent {
		candidate := int64(parentSID) + n
		if candidate >= 0 {
			a1 := SID(candidate)
			if path, ok := tables.Sid.SIDToPath[a1]; ok {
				if info, ok := tables.Sid.NodeInfo[path]; ok && info.HasParent && info.Parent == parentSID {
					return a1, nil
				}
			}
		}
	}

	if n >= 0 {
		abs := SID(n)
		if _, ok := tables.Sid.SIDToPath[abs]; ok {
			return abs, nil
		}
	}

	return 0, errDeltaResolve(n, uint64(parentSID))
}

// decodeNodeName picks the YAML key to emit for sid and the "current
// module" its children should compare against, per the output format.
// rfc7951 mode emits "module:name" only when the module differs from
// parentModule (a namespace boundary); fully-prefixed mode always emits
// "module:name" when a module is known.
func decodeNodeName(sid SID, parentModule, format string, tables *Tables) (name string, module string, err error) {
	if _, ok := tables.Sid.SIDToPath[sid]; !ok {
		return "", "", errPathUnresolved("sid:" + strconv.FormatUint(uint64(sid), 10))
	}
	prefix, bare := lastPrefixedSegment(tables.Sid.SIDToPrefixed[sid])
	if prefix == "" {
		return bare, parentModule, nil
	}
	if format == outputFormatFullyPrefixed || prefix != parentModule {
		return prefix + ":" + bare, prefix, nil
	}
	return bare, parentModule, nil
}

func lastPrefixedSegment(prefixedPath string) (prefix, name string) {
	segs := strings.Split(prefixedPath, "/")
	last := segs[len(segs)-1]
	if idx := strings.IndexByte(last, ':'); idx >= 0 {
		return last[:idx], last[idx+1:]
	}
	return "", last
}

// decodeTreeValue recursively decodes the CBOR value at sid: a map is a
// container, a slice is a list of entries, anything else is a scalar leaf
// decoded by its TypeInfo kind.
func decodeTreeValue(sid SID, v interface{}, parentModule, format string, tables *Tables) (interface{}, error) {
	switch vv := v.(type) {
	case map[interface{}]interface{}:
		out := map[string]interface{}{}
		for k, cv := range vv {
			childSID, err := decodeKeyToSID(k, sid, true, tables)
			if err != nil {
				return nil, err
			}
			name, module, err := decodeNodeName(childSID, parentModule, format, tables)
			if err != nil {
				return nil, err
			}
			decoded, err := decodeTreeValue(childSID, cv, module, format, tables)
			if err != nil {
				return nil, err
			}
			out[name] = decoded
		}
		return out, nil

	case []interface{}:
		seq := make([]interface{}, 0, len(vv))
		for _, elem := range vv {
			entry, err := decodeListEntry(sid, elem, parentModule, format, tables)
			if err != nil {
				return nil, err
			}
			seq = append(seq, entry)
		}
		return seq, nil

	default:
		path := tables.Sid.SIDToPath[sid]
		ti := tables.Types.Types[path]
		if ti == nil {
			glog.Warningf("%v", (&unknownTypeWarning{Path: path}).Error())
			return toStringFallback(vv), nil
		}
		return decodeValue(ti, vv, path, tables)
	}
}

func decodeListEntry(listSID SID, elem interface{}, parentModule, format string, tables *Tables) (interface{}, error) {
	fields, ok := elem.(map[interface{}]interface{})
	if !ok {
		return nil, errSchemaParse("list entry for sid %d must be a map, got %T", listSID, elem)
	}
	out := map[string]interface{}{}
	for k, cv := range fields {
		fieldSID, err := decodeKeyToSID(k, listSID, true, tables)
		if err != nil {
			return nil, err
		}
		name, module, err := decodeNodeName(fieldSID, parentModule, format, tables)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeTreeValue(fieldSID, cv, module, format, tables)
		if err != nil {
			return nil, err
		}
		out[name] = decoded
	}
	return out, nil
}
