package sidcodec

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	cacheFileName      = ".sidcodec-cache.json"
	cacheFormatVersion = 1
)

// cacheFile is the on-disk, versioned JSON shape of a persisted Tables pair.
type cacheFile struct {
	Version int `json:"version"`

	PathToSID      map[string]SID    `json:"pathToSid"`
	SIDToPath      map[SID]string    `json:"sidToPath"`
	PrefixedToSID  map[string]SID    `json:"prefixedPathToSid"`
	SIDToPrefixed  map[SID]string    `json:"sidToPrefixedPath"`
	PathToPrefixed map[string]string `json:"pathToPrefixed"`
	IdentityToSID  map[string]SID    `json:"identityToSid"`
	SIDToIdentity  map[SID]string    `json:"sidToIdentity"`
	NodeInfo       map[string]*NodeInfo `json:"nodeInfo"`
	LeafToPaths    map[string][]string  `json:"leafToPaths"`

	Types      map[string]*TypeInfo `json:"types"`
	Identities map[string]*Identity `json:"identities"`
	Typedefs   map[string]*TypeInfo `json:"typedefs"`

	ChoiceNames []string       `json:"choiceNames"`
	CaseNames   []string       `json:"caseNames"`
	NodeOrders  map[string]int `json:"nodeOrders"`
}

// saveCache writes the merged tables to path atomically: write to a temp
// file in the same directory, then rename, so concurrent readers never
// observe a half-written cache.
func saveCache(path string, tables *Tables) error {
	cf := toCacheFile(tables)
	data, err := json.Marshal(cf)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, ".sidcodec-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// loadCache reads and decodes a persisted cache file, returning its
// declared version alongside the reconstructed Tables so the caller can
// reject a version mismatch.
func loadCache(path string) (*Tables, int, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, 0, errCacheVersion("cache file %s is not valid JSON: %v", path, err).withPath(path)
	}
	return fromCacheFile(&cf), cf.Version, nil
}

func toCacheFile(t *Tables) *cacheFile {
	cf := &cacheFile{
		Version:        cacheFormatVersion,
		PathToSID:      t.Sid.PathToSID,
		SIDToPath:      t.Sid.SIDToPath,
		PrefixedToSID:  t.Sid.PrefixedToSID,
		SIDToPrefixed:  t.Sid.SIDToPrefixed,
		PathToPrefixed: t.Sid.PathToPrefixed,
		IdentityToSID:  t.Sid.IdentityToSID,
		SIDToIdentity:  t.Sid.SIDToIdentity,
		NodeInfo:       t.Sid.NodeInfo,
		LeafToPaths:    t.Sid.LeafToPaths,
		Types:          t.Types.Types,
		Identities:     t.Types.Identities,
		Typedefs:       t.Types.Typedefs,
		NodeOrders:     t.Types.NodeOrders,
	}
	for name := range t.Types.ChoiceNames {
		cf.ChoiceNames = append(cf.ChoiceNames, name)
	}
	for name := range t.Types.CaseNames {
		cf.CaseNames = append(cf.CaseNames, name)
	}
	return cf
}

func fromCacheFile(cf *cacheFile) *Tables {
	sid := newSidTree()
	sid.PathToSID = cf.PathToSID
	sid.SIDToPath = cf.SIDToPath
	sid.PrefixedToSID = cf.PrefixedToSID
	sid.SIDToPrefixed = cf.SIDToPrefixed
	sid.PathToPrefixed = cf.PathToPrefixed
	sid.IdentityToSID = cf.IdentityToSID
	sid.SIDToIdentity = cf.SIDToIdentity
	sid.NodeInfo = cf.NodeInfo
	sid.LeafToPaths = cf.LeafToPaths
	sid.aliasApplied = true // the cached tree already has aliases applied

	types := newTypeTable()
	types.Types = cf.Types
	types.Identities = cf.Identities
	types.Typedefs = cf.Typedefs
	types.NodeOrders = cf.NodeOrders
	for _, name := range cf.ChoiceNames {
		types.ChoiceNames[name] = true
	}
	for _, name := range cf.CaseNames {
		types.CaseNames[name] = true
	}

	return &Tables{Sid: sid, Types: types}
}

// sourcesNewerThanCache reports whether any .sid/.yang file under dir has
// a modification time after cacheModTime, so the caller can fail cleanly
// rather than serve a cache that is stale relative to its sources.
func sourcesNewerThanCache(dir string, cacheModTime time.Time) (bool, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sid") && !strings.HasSuffix(name, ".yang") {
			continue
		}
		if e.ModTime().After(cacheModTime) {
			return true, nil
		}
	}
	return false, nil
}
