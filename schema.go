package sidcodec

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/openconfig/goyang/pkg/yang"
)

// defaultVendorPrefixes is the default set of vendor typedef prefixes
// merged into their base typedefs. Configurable via BuildOptions.VendorPrefixes
// rather than hard-coded, since real deployments vary their vendor prefix.
var defaultVendorPrefixes = []string{"velocitysp-", "mchp-"}

// buildTables loads every .sid and .yang file under cacheDir, merges their
// outputs into one SidTree/TypeTable pair, and (unless opts.NoCache)
// persists the merge to a cache file for next time.
func buildTables(cacheDir string, opts BuildOptions) (*Tables, error) {
	vendorPrefixes := opts.VendorPrefixes
	if len(vendorPrefixes) == 0 {
		vendorPrefixes = defaultVendorPrefixes
	}

	cachePath := filepath.Join(cacheDir, cacheFileName)
	if !opts.NoCache {
		if tables, ok := tryLoadCache(cacheDir, cachePath); ok {
			return tables, nil
		}
	}

	sidFiles, yangFiles, err := listCacheDir(cacheDir)
	if err != nil {
		return nil, err
	}

	sidLocals, err := loadSidFilesParallel(sidFiles)
	if err != nil {
		return nil, err
	}
	sid := mergeSidFiles(sidLocals, opts.Verbose)

	modTypes, err := loadYangFilesParallel(yangFiles)
	if err != nil {
		return nil, err
	}
	types := mergeModuleTypes(modTypes)

	computeNodeInfo(sid)
	mergeVendorTypedefs(types, vendorPrefixes)
	rewriteMergedTypedefRefs(types)
	applyAliasAugmentation(sid, types)

	tables := &Tables{Sid: sid, Types: types}

	if !opts.NoCache {
		if err := saveCache(cachePath, tables); err != nil {
			// Cache-save failure is non-fatal: warn and keep going with
			// the freshly built tables.
			glog.Warningf("sidcodec: failed to persist schema cache %s: %v", cachePath, err)
		}
	}
	return tables, nil
}

// listCacheDir partitions the directory's files by extension.
func listCacheDir(dir string) (sidFiles, yangFiles []string, err error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, nil, errSchemaParse("cannot read cache dir %s: %v", dir, err).withPath(dir)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		full := filepath.Join(dir, name)
		switch {
		case strings.HasSuffix(name, ".sid"):
			sidFiles = append(sidFiles, full)
		case strings.HasSuffix(name, ".yang"):
			yangFiles = append(yangFiles, full)
		}
	}
	sort.Strings(sidFiles)
	sort.Strings(yangFiles)
	return sidFiles, yangFiles, nil
}

// loadSidFilesParallel parses every SID file concurrently; per-file
// outputs are disjoint local maps, so no lock is needed until the merge
// step.
func loadSidFilesParallel(files []string) ([]*localSidFile, error) {
	type result struct {
		idx   int
		local *localSidFile
		err   error
	}
	results := make([]result, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f string) {
			defer wg.Done()
			data, err := ioutil.ReadFile(f)
			if err != nil {
				results[i] = result{idx: i, err: errSchemaParse("cannot read SID file %s: %v", f, err).withPath(f)}
				return
			}
			local, err := loadSIDFile(f, data)
			results[i] = result{idx: i, local: local, err: err}
		}(i, f)
	}
	wg.Wait()

	out := make([]*localSidFile, len(files))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out[r.idx] = r.local
	}
	return out, nil
}

// mergeSidFiles merges the per-file outputs into one global SidTree.
// Later entries win on collision; collisions are logged only when
// verbose, since they should be rare.
func mergeSidFiles(locals []*localSidFile, verbose bool) *SidTree {
	sid := newSidTree()
	for _, local := range locals {
		for path, s := range local.pathToSID {
			if verbose {
				if old, ok := sid.PathToSID[path]; ok && old != s {
					glog.V(1).Infof("sidcodec: SID collision for path %q: %d -> %d", path, old, s)
				}
			}
			sid.PathToSID[path] = s
			sid.SIDToPath[s] = path
		}
		for path, s := range local.prefixedToSID {
			sid.PrefixedToSID[path] = s
		}
		for s, path := range local.sidToPrefixed {
			sid.SIDToPrefixed[s] = path
		}
		for path, prefixed := range local.pathToPrefixed {
			sid.PathToPrefixed[path] = prefixed
		}
		for name, s := range local.identityToSID {
			sid.IdentityToSID[name] = s
		}
		for s, name := range local.sidToIdentity {
			sid.SIDToIdentity[s] = name
		}
		for leaf, paths := range local.leafToPaths {
			sid.LeafToPaths[leaf] = append(sid.LeafToPaths[leaf], paths...)
		}
	}
	return sid
}

// computeNodeInfo recomputes NodeInfo for every non-synthetic (i.e. not
// "identity:"/"feature:"/"module:"-prefixed) data path by walking its
// ancestor paths and picking the longest proper prefix that also exists.
// Parent/DeltaSID are independent of visit order, so the first pass fills
// them in directly off Go's unordered map iteration; Depth is not, since a
// node's depth depends on its parent's, and a child can be visited before
// its own parent in the same pass. A second pass resolves Depth by walking
// each node's Parent chain, memoizing as it goes so no path is walked
// twice.
func computeNodeInfo(sid *SidTree) {
	sid.NodeInfo = map[string]*NodeInfo{}
	for path, s := range sid.PathToSID {
		if isSyntheticPath(path) {
			continue
		}
		info := &NodeInfo{SID: s, PrefixedPath: sid.PathToPrefixed[path]}
		parentPath, hasParent := longestExistingProperPrefix(path, sid.PathToSID)
		if hasParent {
			parentSID := sid.PathToSID[parentPath]
			info.Parent = parentSID
			info.HasParent = true
			info.DeltaSID = int64(s) - int64(parentSID)
		} else {
			info.DeltaSID = int64(s)
		}
		sid.NodeInfo[path] = info
	}

	depths := make(map[string]int, len(sid.NodeInfo))
	for path := range sid.NodeInfo {
		resolveDepth(sid, path, depths)
	}
}

// resolveDepth returns path's depth, computing and memoizing it (and every
// unresolved ancestor's) on first request. Safe against an unrecognized or
// already-resolved parent: depths[path] short-circuits a repeat walk.
func resolveDepth(sid *SidTree, path string, depths map[string]int) int {
	if d, ok := depths[path]; ok {
		return d
	}
	info := sid.NodeInfo[path]
	depth := 0
	if info.HasParent {
		if parentPath, ok := sid.SIDToPath[info.Parent]; ok {
			depth = resolveDepth(sid, parentPath, depths) + 1
		}
	}
	depths[path] = depth
	info.Depth = depth
	return depth
}

func isSyntheticPath(path string) bool {
	return strings.HasPrefix(path, "identity:") ||
		strings.HasPrefix(path, "feature:") ||
		strings.HasPrefix(path, "module:")
}

// longestExistingProperPrefix finds the longest proper-prefix path of path
// that also exists in known, by trimming one trailing segment at a time.
func longestExistingProperPrefix(path string, known map[string]SID) (string, bool) {
	segs := strings.Split(path, "/")
	for n := len(segs) - 1; n > 0; n-- {
		candidate := strings.Join(segs[:n], "/")
		if _, ok := known[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// loadYangFilesParallel reads and processes every YANG module into one
// goyang Modules set, then extracts each module's types concurrently.
func loadYangFilesParallel(files []string) ([]*moduleTypes, error) {
	if len(files) == 0 {
		return nil, nil
	}
	ms := yang.NewModules()
	for _, f := range files {
		if err := ms.Read(f); err != nil {
			return nil, errSchemaParse("cannot read YANG module %s: %v", f, err).withPath(f)
		}
	}
	if errs := ms.Process(); len(errs) > 0 {
		return nil, errSchemaParse("YANG processing failed: %v", errs)
	}

	modNames := make([]string, 0, len(ms.Modules))
	for name := range ms.Modules {
		modNames = append(modNames, name)
	}
	sort.Strings(modNames)

	type result struct {
		idx int
		mt  *moduleTypes
		err error
	}
	results := make([]result, len(modNames))
	var wg sync.WaitGroup
	for i, name := range modNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			mt, err := extractModuleTypes(ms, ms.Modules[name])
			results[i] = result{idx: i, mt: mt, err: err}
		}(i, name)
	}
	wg.Wait()

	out := make([]*moduleTypes, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, r.mt)
	}
	return out, nil
}

// mergeModuleTypes merges per-module outputs into the global TypeTable.
func mergeModuleTypes(mods []*moduleTypes) *TypeTable {
	tt := newTypeTable()
	for _, m := range mods {
		for path, ti := range m.types {
			tt.Types[path] = ti
		}
		for name, ti := range m.typedefs {
			tt.Typedefs[name] = ti
		}
		for name, id := range m.identities {
			tt.Identities[name] = id
		}
		for name := range m.choiceNames {
			tt.ChoiceNames[name] = true
		}
		for name := range m.caseNames {
			tt.CaseNames[name] = true
		}
		for name, order := range m.nodeOrders {
			tt.NodeOrders[name] = order
		}
	}
	return tt
}

// mergeVendorTypedefs: for each typedef whose name begins with a known
// vendor prefix, locate the base typedef with the prefix stripped; if both
// carry enum bijections, union them into the base and record the merge.
func mergeVendorTypedefs(tt *TypeTable, vendorPrefixes []string) {
	for name, vendorTI := range tt.Typedefs {
		var prefix string
		for _, p := range vendorPrefixes {
			if strings.HasPrefix(name, p) {
				prefix = p
				break
			}
		}
		if prefix == "" {
			continue
		}
		baseName := strings.TrimPrefix(name, prefix)
		baseTI, ok := tt.Typedefs[baseName]
		if !ok {
			continue
		}
		if vendorTI.NameToValue == nil || baseTI.NameToValue == nil {
			continue
		}
		for n, v := range vendorTI.NameToValue {
			baseTI.NameToValue[n] = v
			baseTI.ValueToName[v] = n
		}
		tt.mergedTypedefs[baseName] = true
	}
}

// rewriteMergedTypedefRefs replaces any leaf type whose Original field
// names a merged typedef with the merged typedef's (now-unioned) type info.
func rewriteMergedTypedefRefs(tt *TypeTable) {
	for path, ti := range tt.Types {
		if ti.Original == "" {
			continue
		}
		if !tt.mergedTypedefs[ti.Original] {
			continue
		}
		if merged, ok := tt.Typedefs[ti.Original]; ok {
			tt.Types[path] = merged
		}
	}
}

// applyAliasAugmentation: for every prefixed path, drop segments whose
// bare name is a choice/case name, then collapse consecutive duplicate
// segments; if the resulting alias is non-empty and unmapped, add it
// alongside the original. Idempotent via SidTree.aliasApplied.
func applyAliasAugmentation(sid *SidTree, tt *TypeTable) {
	if sid.aliasApplied {
		return
	}
	sid.aliasApplied = true

	type pending struct {
		prefixedAlias string
		strippedAlias string
		s             SID
	}
	var additions []pending

	for prefixedPath, s := range sid.PrefixedToSID {
		segs := strings.Split(strings.TrimPrefix(prefixedPath, "/"), "/")
		filtered := make([]string, 0, len(segs))
		for _, seg := range segs {
			bare := seg
			if idx := strings.IndexByte(seg, ':'); idx >= 0 {
				bare = seg[idx+1:]
			}
			if tt.ChoiceNames[bare] || tt.CaseNames[bare] {
				continue
			}
			filtered = append(filtered, seg)
		}
		filtered = collapseConsecutiveDuplicates(filtered)
		if len(filtered) == 0 {
			continue
		}
		aliasPrefixed := strings.Join(filtered, "/")
		aliasStripped := stripModulePrefixes(aliasPrefixed)
		if aliasPrefixed == prefixedPath {
			continue
		}
		if _, exists := sid.PrefixedToSID[aliasPrefixed]; exists {
			continue
		}
		additions = append(additions, pending{aliasPrefixed, aliasStripped, s})
	}

	for _, p := range additions {
		sid.PrefixedToSID[p.prefixedAlias] = p.s
		if _, exists := sid.PathToSID[p.strippedAlias]; !exists {
			sid.PathToSID[p.strippedAlias] = p.s
		}
	}
}

func collapseConsecutiveDuplicates(segs []string) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}

func tryLoadCache(cacheDir, cachePath string) (*Tables, bool) {
	info, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	tables, version, err := loadCache(cachePath)
	if err != nil {
		glog.V(1).Infof("sidcodec: cache unreadable, rebuilding: %v", err)
		return nil, false
	}
	if version != cacheFormatVersion {
		glog.V(1).Infof("sidcodec: cache version %d != %d, rebuilding", version, cacheFormatVersion)
		return nil, false
	}
	stale, err := sourcesNewerThanCache(cacheDir, info.ModTime())
	if err != nil || stale {
		return nil, false
	}
	return tables, true
}
