package sidcodec

import "strings"

// parseInstanceID tokenizes an RFC 7951 §6.11-style instance-identifier
// into an ordered segment list:
//
//	instance-id  := '/' segment ( '/' segment )*
//	segment      := (prefix ':')? name ( '[' predicate ']' )*
//	predicate    := key '=' quoted-value        // quote is ' or "
//
// It uses a bracket-depth counting state machine, folding a segment's
// predicates straight into a map, since a parsed instance-identifier
// segment here carries list keys, not general XPath predicates.
func parseInstanceID(path string) ([]Segment, error) {
	if path == "" || path[0] != '/' {
		return nil, errInstanceIdParse("instance-identifier must start with '/': %q", path).withPath(path)
	}

	var segments []Segment
	rest := path[1:]
	for {
		segText, remainder, hasMore := splitNextSegment(rest)
		seg, err := parseSegment(segText)
		if err != nil {
			return nil, err.withPath(path)
		}
		segments = append(segments, seg)
		if !hasMore {
			break
		}
		rest = remainder
	}
	if len(segments) == 0 {
		return nil, errInstanceIdParse("empty instance-identifier").withPath(path)
	}
	return segments, nil
}

// splitNextSegment finds the next unbracketed '/' in s, so that a literal
// '/' inside a quoted predicate value (e.g. a key containing a slash) does
// not split the segment prematurely.
func splitNextSegment(s string) (segment, remainder string, hasMore bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == '/' && depth == 0:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// parseSegment parses one segment's "(prefix:)?name([predicate])*" form.
func parseSegment(s string) (Segment, *CodecError) {
	if s == "" {
		return Segment{}, errInstanceIdParse("empty path segment")
	}

	nameEnd := len(s)
	if idx := strings.IndexByte(s, '['); idx >= 0 {
		nameEnd = idx
	}
	nameAndPrefix := s[:nameEnd]
	predicateText := s[nameEnd:]

	prefix, name, err := splitPrefix(nameAndPrefix)
	if err != nil {
		return Segment{}, err
	}
	if name == "" {
		return Segment{}, errInstanceIdParse("empty segment name in %q", s)
	}

	predicates, err := parsePredicates(predicateText)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Prefix: prefix, Name: name, Predicates: predicates}, nil
}

func splitPrefix(s string) (prefix, name string, cerr *CodecError) {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return s[:idx], s[idx+1:], nil
	}
	return "", s, nil
}

// parsePredicates parses the ('[' key '=' quoted-value ']')* suffix of a
// segment, looking for each closing ']' only outside quotes so a quoted
// value may contain any character except its own quote.
func parsePredicates(s string) (map[string]string, *CodecError) {
	if s == "" {
		return map[string]string{}, nil
	}
	predicates := map[string]string{}
	i := 0
	for i < len(s) {
		if s[i] != '[' {
			return nil, errInstanceIdParse("malformed predicate near %q", s[i:])
		}
		end := -1
		var quote byte
		for j := i + 1; j < len(s) && end < 0; j++ {
			switch c := s[j]; {
			case quote != 0:
				if c == quote {
					quote = 0
				}
			case c == '\'' || c == '"':
				quote = c
			case c == ']':
				end = j
			}
		}
		if end < 0 {
			return nil, errInstanceIdParse("unmatched '[' in %q", s)
		}
		body := s[i+1 : end]

		eq := strings.IndexByte(body, '=')
		if eq < 0 {
			return nil, errInstanceIdParse("predicate %q missing '='", body)
		}
		key := body[:eq]
		value := body[eq+1:]
		if key == "" {
			return nil, errInstanceIdParse("predicate %q has an empty key", body)
		}
		unquoted, qerr := unquotePredicateValue(value)
		if qerr != nil {
			return nil, qerr
		}
		predicates[key] = unquoted

		i = end + 1
	}
	return predicates, nil
}

func unquotePredicateValue(v string) (string, *CodecError) {
	if len(v) < 2 {
		return "", errInstanceIdParse("predicate value %q is not quoted", v)
	}
	quote := v[0]
	if quote != '\'' && quote != '"' {
		return "", errInstanceIdParse("predicate value %q must be quoted with ' or \"", v)
	}
	if v[len(v)-1] != quote {
		return "", errInstanceIdParse("predicate value %q has mismatched quotes", v)
	}
	return v[1 : len(v)-1], nil
}

// joinSegmentsStripped renders segments back into a bare "/"-joined path
// (no prefixes, no predicates), the form SidTree.PathToSID is keyed on.
func joinSegmentsStripped(segments []Segment) string {
	names := make([]string, len(segments))
	for i, s := range segments {
		names[i] = s.Name
	}
	return strings.Join(names, "/")
}

// joinSegmentsPrefixed renders segments back into a "/"-joined path with
// module prefixes retained where present.
func joinSegmentsPrefixed(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		if s.Prefix != "" {
			parts[i] = s.Prefix + ":" + s.Name
		} else {
			parts[i] = s.Name
		}
	}
	return strings.Join(parts, "/")
}
