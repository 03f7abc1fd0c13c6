package sidcodec

import "fmt"

// Kind classifies a CodecError by the stage that raised it.
type Kind int

const (
	KindSchemaParse Kind = iota
	KindCacheVersion
	KindInstanceIdParse
	KindPathUnresolved
	KindEnumUnknown
	KindIdentityUnknown
	KindDeltaResolve
	KindUnknownType
)

func (k Kind) String() string {
	switch k {
	case KindSchemaParse:
		return "schema-parse"
	case KindCacheVersion:
		return "cache-version"
	case KindInstanceIdParse:
		return "instance-id-parse"
	case KindPathUnresolved:
		return "path-unresolved"
	case KindEnumUnknown:
		return "enum-unknown"
	case KindIdentityUnknown:
		return "identity-unknown"
	case KindDeltaResolve:
		return "delta-resolve"
	case KindUnknownType:
		return "unknown-type"
	default:
		return "unknown"
	}
}

// CodecError is the error type the codec's own checks return, carrying the
// path, SID, and/or value involved where one is known. An error from the
// CBOR or YAML library while marshalling the final output
// (EncodeYAMLToCBOR, DecodeCBORToYAML) is returned as is, not wrapped.
type CodecError struct {
	Kind    Kind
	Message string
	Path    string
	SID     uint64
	HasSID  bool
	Value   interface{}
}

func (e *CodecError) Error() string {
	if e == nil {
		return ""
	}
	s := "[" + e.Kind.String() + "] " + e.Message
	if e.Path != "" {
		s += fmt.Sprintf(" (path=%q)", e.Path)
	}
	if e.HasSID {
		s += fmt.Sprintf(" (sid=%d)", e.SID)
	}
	return s
}

func newError(k Kind, format string, arg ...interface{}) *CodecError {
	return &CodecError{Kind: k, Message: fmt.Sprintf(format, arg...)}
}

func (e *CodecError) withPath(path string) *CodecError {
	e.Path = path
	return e
}

func (e *CodecError) withSID(sid uint64) *CodecError {
	e.SID = sid
	e.HasSID = true
	return e
}

func (e *CodecError) withValue(v interface{}) *CodecError {
	e.Value = v
	return e
}

func errSchemaParse(format string, arg ...interface{}) *CodecError {
	return newError(KindSchemaParse, format, arg...)
}

func errCacheVersion(format string, arg ...interface{}) *CodecError {
	return newError(KindCacheVersion, format, arg...)
}

func errInstanceIdParse(format string, arg ...interface{}) *CodecError {
	return newError(KindInstanceIdParse, format, arg...)
}

func errPathUnresolved(path string) *CodecError {
	return newError(KindPathUnresolved, "no candidate path resolves %q", path).withPath(path)
}

func errEnumUnknown(path string, name interface{}) *CodecError {
	return newError(KindEnumUnknown, "enum value %v not recognized", name).withPath(path).withValue(name)
}

func errIdentityUnknown(path string, v interface{}) *CodecError {
	return newError(KindIdentityUnknown, "identity %v not recognized", v).withPath(path).withValue(v)
}

func errDeltaResolve(key int64, parent uint64) *CodecError {
	return newError(KindDeltaResolve, "key %d does not resolve relative to parent", key).withSID(parent)
}

// unknownTypeWarning is the one case the codec recovers from internally:
// the scalar codec logs it via glog and falls back to string encoding
// rather than surfacing it as an aborting error, since every other
// CodecError halts the calling operation.
type unknownTypeWarning struct {
	Path string
}

func (w *unknownTypeWarning) Error() string {
	return newError(KindUnknownType, "leaf has no recognized YANG type, falling back to string").withPath(w.Path).Error()
}
