package sidcodec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	gnmivalue "github.com/openconfig/gnmi/value"
)

// decimal64Tag, identityrefUnionTag, and enumUnionTag are the CBOR tags
// used for RFC 9254's decimal fraction, and the union disambiguation tags
// used when a union member is an identityref or an enumeration.
const (
	decimal64Tag        = 4
	identityrefUnionTag = 44
	enumUnionTag        = 45
)

// encodeValue turns a decoded-YAML scalar into its CBOR-ready form given
// the leaf's TypeInfo.
func encodeValue(ti *TypeInfo, v interface{}, path string, tables *Tables) (interface{}, error) {
	switch ti.Kind {
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, errSchemaParse("expected boolean at %q, got %T", path, v).withPath(path)
		}
		return b, nil

	case TypeString, TypeBinary:
		s, ok := v.(string)
		if !ok {
			return nil, errSchemaParse("expected string at %q, got %T", path, v).withPath(path)
		}
		if ti.Kind == TypeBinary {
			if _, err := base64.StdEncoding.DecodeString(s); err != nil {
				return nil, errSchemaParse("invalid base64 at %q: %v", path, err).withPath(path)
			}
		}
		return s, nil

	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return encodeNumeric(ti, v, path)

	case TypeEnumeration, TypeBits:
		names, err := scalarOrSliceToStrings(v)
		if err != nil {
			return nil, err.withPath(path)
		}
		if ti.Kind == TypeBits {
			return names, nil // bits: list-of-names, mirrored on decode
		}
		name := names[0]
		n, ok := ti.NameToValue[name]
		if !ok {
			return nil, errEnumUnknown(path, name)
		}
		return n, nil

	case TypeIdentityref:
		name, ok := v.(string)
		if !ok {
			return nil, errSchemaParse("expected identityref name at %q, got %T", path, v).withPath(path)
		}
		sid, ok := resolveIdentity(tables, name)
		if !ok {
			return nil, errIdentityUnknown(path, name)
		}
		return uint64(sid), nil

	case TypeDecimal64:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err.withPath(path)
		}
		return encodeDecimal64(ti.FractionDigits, f), nil

	case TypeUnion:
		return encodeUnion(ti, v, path, tables)

	case TypeEmpty:
		if v != nil {
			return nil, errSchemaParse("empty leaf at %q must have a null value, got %v", path, v).withPath(path)
		}
		return nil, nil

	case TypeLeafref:
		return v, nil

	default: // TypeUnknown: string fallback with a warning
		glog.Warningf("%v", (&unknownTypeWarning{Path: path}).Error())
		return toStringFallback(v), nil
	}
}

// decodeValue is the symmetric reverse of encodeValue.
func decodeValue(ti *TypeInfo, v interface{}, path string, tables *Tables) (interface{}, error) {
	switch ti.Kind {
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, errSchemaParse("expected CBOR boolean at %q, got %T", path, v).withPath(path)
		}
		return b, nil

	case TypeString, TypeBinary:
		s, ok := v.(string)
		if !ok {
			return nil, errSchemaParse("expected CBOR string at %q, got %T", path, v).withPath(path)
		}
		return s, nil

	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return decodeNumeric(ti, v, path)

	case TypeEnumeration:
		n, err := toInt64(v)
		if err != nil {
			return nil, err.withPath(path)
		}
		name, ok := ti.ValueToName[n]
		if !ok {
			return nil, errEnumUnknown(path, n)
		}
		return name, nil

	case TypeBits:
		names, err := scalarOrSliceToStrings(v)
		if err != nil {
			return nil, err.withPath(path)
		}
		return names, nil

	case TypeIdentityref:
		sid, err := toUint64(v)
		if err != nil {
			return nil, err.withPath(path)
		}
		name, ok := tables.Sid.SIDToIdentity[SID(sid)]
		if !ok {
			return nil, errIdentityUnknown(path, sid)
		}
		return name, nil

	case TypeDecimal64:
		f, err := decodeDecimal64Value(v, ti.FractionDigits)
		if err != nil {
			return nil, err.withPath(path)
		}
		return f, nil

	case TypeUnion:
		return decodeUnion(ti, v, path, tables)

	case TypeEmpty:
		return nil, nil

	case TypeLeafref:
		return v, nil

	default:
		glog.Warningf("%v", (&unknownTypeWarning{Path: path}).Error())
		return toStringFallback(v), nil
	}
}

func resolveIdentity(tables *Tables, name string) (SID, bool) {
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		if s, ok := tables.Sid.IdentityToSID[name]; ok {
			return s, true
		}
		if s, ok := tables.Sid.IdentityToSID[name[idx+1:]]; ok {
			return s, true
		}
		return 0, false
	}
	s, ok := tables.Sid.IdentityToSID[name]
	return s, ok
}

// encodeDecimal64 produces CBOR tag 4 with [-fractionDigits, mantissa],
// e.g. tag(4, [-2, 314]) for 3.14 at fractionDigits=2.
func encodeDecimal64(fractionDigits int, f float64) cbor.Tag {
	scale := pow10(fractionDigits)
	mantissa := int64(roundHalfAwayFromZero(f * float64(scale)))
	return cbor.Tag{
		Number: decimal64Tag,
		Content: []interface{}{
			-int64(fractionDigits),
			mantissa,
		},
	}
}

func decodeDecimal64Value(v interface{}, fractionDigits int) (float64, *CodecError) {
	tag, ok := v.(cbor.Tag)
	if !ok || tag.Number != decimal64Tag {
		return 0, newError(KindSchemaParse, "expected CBOR tag 4 for decimal64, got %T", v)
	}
	parts, ok := tag.Content.([]interface{})
	if !ok || len(parts) != 2 {
		return 0, newError(KindSchemaParse, "malformed decimal64 tag content")
	}
	exp, err1 := toInt64(parts[0])
	mantissa, err2 := toInt64(parts[1])
	if err1 != nil || err2 != nil {
		return 0, newError(KindSchemaParse, "malformed decimal64 tag numbers")
	}
	return float64(mantissa) * pow10f(exp), nil
}

func encodeUnion(ti *TypeInfo, v interface{}, path string, tables *Tables) (interface{}, error) {
	var firstErr error
	for _, member := range ti.Members {
		encoded, err := encodeValue(member, v, path, tables)
		if err == nil {
			switch member.Kind {
			case TypeIdentityref:
				sid, _ := encoded.(uint64)
				return cbor.Tag{Number: identityrefUnionTag, Content: sid}, nil
			case TypeEnumeration:
				return cbor.Tag{Number: enumUnionTag, Content: encoded}, nil
			default:
				return encoded, nil
			}
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, errSchemaParse("no union member at %q accepted value %v", path, v).withPath(path)
}

func decodeUnion(ti *TypeInfo, v interface{}, path string, tables *Tables) (interface{}, error) {
	if tag, ok := v.(cbor.Tag); ok {
		switch tag.Number {
		case identityrefUnionTag:
			for _, m := range ti.Members {
				if m.Kind == TypeIdentityref {
					return decodeValue(m, tag.Content, path, tables)
				}
			}
		case enumUnionTag:
			for _, m := range ti.Members {
				if m.Kind == TypeEnumeration {
					return decodeValue(m, tag.Content, path, tables)
				}
			}
		}
	}
	var firstErr error
	for _, member := range ti.Members {
		decoded, err := decodeValue(member, v, path, tables)
		if err == nil {
			return decoded, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, errSchemaParse("no union member at %q accepted CBOR value %v", path, v).withPath(path)
}

// encodeNumeric coerces a decoded-YAML scalar (int, int64, float64,
// string, ...) into the exact numeric type TypeInfo calls for, the same
// normalization neoul-yangtree's gnmi subpackage performs via
// gnmi/value.FromScalar before handing a Go value to a gNMI TypedValue.
func encodeNumeric(ti *TypeInfo, v interface{}, path string) (interface{}, error) {
	var n int64
	var u uint64
	var isUnsigned bool

	if tv, convErr := gnmivalue.FromScalar(v); convErr == nil {
		switch tv.Value.(type) {
		case *gnmipb.TypedValue_IntVal:
			n = tv.GetIntVal()
		case *gnmipb.TypedValue_UintVal:
			u = tv.GetUintVal()
			isUnsigned = true
		case *gnmipb.TypedValue_FloatVal:
			n = int64(tv.GetFloatVal())
		default:
			var err *CodecError
			n, err = toInt64(v)
			if err != nil {
				return nil, err.withPath(path)
			}
		}
	} else {
		var err *CodecError
		n, err = toInt64(v)
		if err != nil {
			return nil, err.withPath(path)
		}
	}
	if isUnsigned {
		n = int64(u)
	}
	switch ti.Kind {
	case TypeInt8:
		return int8(n), nil
	case TypeInt16:
		return int16(n), nil
	case TypeInt32:
		return int32(n), nil
	case TypeInt64:
		return n, nil
	case TypeUint8:
		return uint8(n), nil
	case TypeUint16:
		return uint16(n), nil
	case TypeUint32:
		return uint32(n), nil
	case TypeUint64:
		if isUnsigned {
			return u, nil
		}
		return uint64(n), nil
	}
	return n, nil
}

func decodeNumeric(ti *TypeInfo, v interface{}, path string) (interface{}, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err.withPath(path)
	}
	switch ti.Kind {
	case TypeInt8:
		return int8(n), nil
	case TypeInt16:
		return int16(n), nil
	case TypeInt32:
		return int32(n), nil
	case TypeInt64:
		return n, nil
	case TypeUint8:
		return uint8(n), nil
	case TypeUint16:
		return uint16(n), nil
	case TypeUint32:
		return uint32(n), nil
	case TypeUint64:
		return uint64(n), nil
	}
	return n, nil
}

func scalarOrSliceToStrings(v interface{}) ([]string, *CodecError) {
	switch vv := v.(type) {
	case string:
		return []string{vv}, nil
	case []string:
		return vv, nil
	case []interface{}:
		out := make([]string, len(vv))
		for i, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, newError(KindSchemaParse, "expected string element, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, newError(KindSchemaParse, "expected string or list of strings, got %T", v)
	}
}

func toFloat64(v interface{}) (float64, *CodecError) {
	switch vv := v.(type) {
	case float64:
		return vv, nil
	case float32:
		return float64(vv), nil
	case int:
		return float64(vv), nil
	case int64:
		return float64(vv), nil
	case string:
		f, err := strconv.ParseFloat(vv, 64)
		if err != nil {
			return 0, newError(KindSchemaParse, "cannot parse %q as a number", vv)
		}
		return f, nil
	default:
		return 0, newError(KindSchemaParse, "expected a number, got %T", v)
	}
}

func toInt64(v interface{}) (int64, *CodecError) {
	switch vv := v.(type) {
	case int64:
		return vv, nil
	case int:
		return int64(vv), nil
	case int32:
		return int64(vv), nil
	case uint64:
		return int64(vv), nil
	case uint32:
		return int64(vv), nil
	case float64:
		return int64(vv), nil
	case string:
		n, err := strconv.ParseInt(vv, 10, 64)
		if err != nil {
			return 0, newError(KindSchemaParse, "cannot parse %q as an integer", vv)
		}
		return n, nil
	default:
		return 0, newError(KindSchemaParse, "expected an integer, got %T", v)
	}
}

func toUint64(v interface{}) (uint64, *CodecError) {
	switch vv := v.(type) {
	case uint64:
		return vv, nil
	case int64:
		return uint64(vv), nil
	case int:
		return uint64(vv), nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return 0, err
		}
		return uint64(n), nil
	}
}

func toStringFallback(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return vv
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func pow10(n int) int64 {
	r := int64(1)
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}

func pow10f(exp int64) float64 {
	r := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := int64(0); i < exp; i++ {
		r *= 10
	}
	if neg {
		return 1 / r
	}
	return r
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}
