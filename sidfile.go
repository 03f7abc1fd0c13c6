package sidcodec

import (
	"encoding/json"
	"strings"
)

// sidItem is one entry of a SID file, RFC 9254-compatible.
type sidItem struct {
	SID        SID    `json:"sid"`
	Namespace  string `json:"namespace"`
	Identifier string `json:"identifier"`
}

// sidFileEnvelope accepts either the RFC 9254 "ietf-sid-file:sid-file"
// wrapper or the simplified {items: [...]} form.
type sidFileEnvelope struct {
	SIDFile *struct {
		Items []sidItem `json:"items"`
	} `json:"ietf-sid-file:sid-file"`
	Items []sidItem `json:"items"`
}

// localSidFile is one file's parsed output: a local path<->SID map with
// the same field shape as the global SidTree, but with no parent relation
// computed yet (augmentation may cross file boundaries, so that step is
// deferred until all files are merged).
type localSidFile struct {
	pathToSID      map[string]SID
	sidToPath      map[SID]string
	prefixedToSID  map[string]SID
	sidToPrefixed  map[SID]string
	pathToPrefixed map[string]string
	identityToSID  map[string]SID
	sidToIdentity  map[SID]string
	leafToPaths    map[string][]string
}

func newLocalSidFile() *localSidFile {
	return &localSidFile{
		pathToSID:      map[string]SID{},
		sidToPath:      map[SID]string{},
		prefixedToSID:  map[string]SID{},
		sidToPrefixed:  map[SID]string{},
		pathToPrefixed: map[string]string{},
		identityToSID:  map[string]SID{},
		sidToIdentity:  map[SID]string{},
		leafToPaths:    map[string][]string{},
	}
}

// loadSIDFile parses one SID file (JSON bytes) into a localSidFile. It does
// not compute parent relations; that happens once all files are merged.
func loadSIDFile(name string, data []byte) (*localSidFile, error) {
	var env sidFileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errSchemaParse("%s: malformed SID file: %v", name, err).withPath(name)
	}
	items := env.Items
	if env.SIDFile != nil {
		items = env.SIDFile.Items
	}
	if items == nil {
		return nil, errSchemaParse("%s: no items in SID file", name).withPath(name)
	}

	local := newLocalSidFile()
	for _, it := range items {
		switch it.Namespace {
		case "data":
			prefixed := it.Identifier
			stripped := stripModulePrefixes(prefixed)
			local.pathToSID[stripped] = it.SID
			local.sidToPath[it.SID] = stripped
			local.prefixedToSID[prefixed] = it.SID
			local.sidToPrefixed[it.SID] = prefixed
			local.pathToPrefixed[stripped] = prefixed

			last := lastSegmentName(stripped)
			if last != "" {
				local.leafToPaths[last] = append(local.leafToPaths[last], stripped)
			}
		case "identity":
			bare, withModule := splitModuleQualified(it.Identifier)
			strippedKey := "identity:" + bare
			prefixedKey := "identity:" + withModule
			local.pathToSID[strippedKey] = it.SID
			local.sidToPath[it.SID] = strippedKey
			local.prefixedToSID[prefixedKey] = it.SID
			local.sidToPrefixed[it.SID] = prefixedKey
			local.pathToPrefixed[strippedKey] = prefixedKey

			local.identityToSID[bare] = it.SID
			local.identityToSID[withModule] = it.SID
			local.sidToIdentity[it.SID] = bare
		case "feature":
			bare, withModule := splitModuleQualified(it.Identifier)
			strippedKey := "feature:" + bare
			prefixedKey := "feature:" + withModule
			local.pathToSID[strippedKey] = it.SID
			local.sidToPath[it.SID] = strippedKey
			local.prefixedToSID[prefixedKey] = it.SID
			local.sidToPrefixed[it.SID] = prefixedKey
			local.pathToPrefixed[strippedKey] = prefixedKey
		case "module":
			key := "module:" + it.Identifier
			local.pathToSID[key] = it.SID
			local.sidToPath[it.SID] = key
		default:
			return nil, errSchemaParse("%s: unknown SID namespace %q", name, it.Namespace).withPath(name)
		}
	}
	return local, nil
}

// stripModulePrefixes removes every "module:" segment prefix from a
// slash-separated instance-identifier-shaped path, leaving bare segment
// names.
func stripModulePrefixes(path string) string {
	path = strings.TrimPrefix(path, "/")
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if idx := strings.IndexByte(s, ':'); idx >= 0 {
			segs[i] = s[idx+1:]
		}
	}
	return strings.Join(segs, "/")
}

func lastSegmentName(strippedPath string) string {
	if strippedPath == "" {
		return ""
	}
	segs := strings.Split(strippedPath, "/")
	return segs[len(segs)-1]
}

// splitModuleQualified splits "module:name" into ("name", "module:name"),
// or ("name", "name") when no module qualifier is present.
func splitModuleQualified(identifier string) (bare, withModule string) {
	if idx := strings.IndexByte(identifier, ':'); idx >= 0 {
		return identifier[idx+1:], identifier
	}
	return identifier, identifier
}
