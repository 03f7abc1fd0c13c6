package sidcodec

import (
	"strings"

	"github.com/PaesslerAG/gval"
)

// ResolveContext carries the already-resolved ancestor segment names
// (stripped form) so the fuzzy-lookup cascade (step 3 below) can score
// candidates by how many leading segments they share with where the walk
// actually is. An empty context means "no ancestor known yet".
type ResolveContext struct {
	StrippedAncestors []string

	// When, if non-empty, is a gval boolean expression evaluated against
	// each scored fuzzy candidate's variables {"path": candidatePath,
	// "depth": len(candidate segments)}; candidates for which it does not
	// evaluate true are dropped before the best score is picked (ties by
	// candidate order). If it drops every candidate it is ignored. It is
	// only consulted when there are several candidates and a non-empty
	// StrippedAncestors.
	When string
}

// resolvePath resolves a sequence of parsed segments to a SID: exact
// prefixed-path lookup, then exact stripped-path lookup, then a fuzzy
// leaf-name lookup as a last resort.
func resolvePath(segments []Segment, ctx ResolveContext, tables *Tables) (SID, error) {
	prefixed := joinSegmentsPrefixed(segments)
	if s, ok := tables.Sid.PrefixedToSID[prefixed]; ok {
		return s, nil
	}

	stripped := joinSegmentsStripped(segments)
	if s, ok := tables.Sid.PathToSID[stripped]; ok {
		return s, nil
	}

	if s, ok, err := fuzzyResolve(segments, ctx, tables); ok || err != nil {
		return s, err
	}

	return 0, errPathUnresolved(stripped)
}

// fuzzyResolve finds every known path whose last segment matches, then
// disambiguates.
func fuzzyResolve(segments []Segment, ctx ResolveContext, tables *Tables) (SID, bool, error) {
	last := segments[len(segments)-1].Name
	candidates := tables.Sid.LeafToPaths[last]
	if len(candidates) == 0 {
		return 0, false, nil
	}
	if len(candidates) == 1 {
		return tables.Sid.PathToSID[candidates[0]], true, nil
	}

	if len(ctx.StrippedAncestors) == 0 {
		// "If no context, return the first candidate."
		return tables.Sid.PathToSID[candidates[0]], true, nil
	}

	best := scoreCandidates(candidates, ctx)
	if ctx.When != "" {
		best = filterByExpression(best, ctx.When)
		if len(best) == 0 {
			best = scoreCandidates(candidates, ctx)
		}
	}
	// Candidates preserve discovery order; the highest-scoring entry
	// encountered first wins ties.
	return tables.Sid.PathToSID[best[0].path], true, nil
}

type scoredCandidate struct {
	path  string
	score int
}

// scoreCandidates scores each candidate by the count of leading segments
// it shares with ctx.StrippedAncestors, preserving original order, and
// returns them sorted best-first with ties broken by original order
// (a stable sort keeps the tie-break implicit).
func scoreCandidates(candidates []string, ctx ResolveContext) []scoredCandidate {
	scored := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = scoredCandidate{path: c, score: matchingLeadingSegments(c, ctx.StrippedAncestors)}
	}
	// Stable selection sort: highest score first, ties keep original order.
	out := make([]scoredCandidate, 0, len(scored))
	used := make([]bool, len(scored))
	for len(out) < len(scored) {
		bestIdx := -1
		for i, sc := range scored {
			if used[i] {
				continue
			}
			if bestIdx == -1 || sc.score > scored[bestIdx].score {
				bestIdx = i
			}
		}
		used[bestIdx] = true
		out = append(out, scored[bestIdx])
	}
	return out
}

func matchingLeadingSegments(path string, ancestors []string) int {
	segs := strings.Split(path, "/")
	n := 0
	for i := 0; i < len(ancestors) && i < len(segs); i++ {
		if segs[i] != ancestors[i] {
			break
		}
		n++
	}
	return n
}

// filterByExpression evaluates the gval expression "when" against each
// candidate's {path, depth} variables, keeping only those for which it
// evaluates truthy. Evaluation errors are treated as non-matches rather
// than propagated, since "when" is an optional hint, not a required
// predicate.
func filterByExpression(candidates []scoredCandidate, when string) []scoredCandidate {
	var out []scoredCandidate
	for _, c := range candidates {
		vars := map[string]interface{}{
			"path":  c.path,
			"depth": len(strings.Split(c.path, "/")),
		}
		v, err := gval.Evaluate(when, vars)
		if err != nil {
			continue
		}
		if b, ok := v.(bool); ok && b {
			out = append(out, c)
		}
	}
	return out
}

// matchesPredicate evaluates a single list-key predicate comparison
// ("key == value") with gval, used by the encoder when it needs to
// confirm a candidate list entry's recorded key matches a parsed
// predicate's value before descending into it.
func matchesPredicate(keyValue, predicateValue string) bool {
	v, err := gval.Evaluate("a == b", map[string]interface{}{
		"a": keyValue,
		"b": predicateValue,
	})
	if err != nil {
		return keyValue == predicateValue
	}
	b, _ := v.(bool)
	return b
}
