// Package pathindex maintains the hierarchical path/branch index: three
// foreign-key maps (path, segment, depth) plus a segment tree used for
// wildcard (`*`, `**`) pattern matching.
package pathindex

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_\-*]+$`)

// Match is one hit returned by Match.
type Match struct {
	ChannelID  string
	Path       string
	Depth      int
	ExactMatch bool
}

type node struct {
	segment  string
	channels map[string]struct{}
	children map[string]*node
}

func newNode(segment string) *node {
	return &node{segment: segment, channels: make(map[string]struct{}), children: make(map[string]*node)}
}

// Index is the path/branch index. Zero value is not usable; use New.
type Index struct {
	mu sync.RWMutex

	byPath    map[string]map[string]struct{} // path -> set<channelId>
	bySegment map[string]map[string]struct{} // segment -> set<channelId>
	byDepth   map[int]map[string]struct{}    // depth -> set<channelId>

	channelPath map[string]string // channelId -> path (reverse map, invariant-holding)
	insertOrder map[string]int    // channelId -> monotonic insertion sequence, for ordering within a set

	root *node
	seq  int
}

// New returns an empty path index.
func New() *Index {
	return &Index{
		byPath:      make(map[string]map[string]struct{}),
		bySegment:   make(map[string]map[string]struct{}),
		byDepth:     make(map[int]map[string]struct{}),
		channelPath: make(map[string]string),
		insertOrder: make(map[string]int),
		root:        newNode(""),
	}
}

// IsValidPath rejects leading/trailing `/`, `//`, whitespace, and segments
// not matching [A-Za-z0-9_-*]+.
func IsValidPath(path string) bool {
	if path == "" {
		return true // no path is valid (unrouted channel)
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return false
	}
	if strings.Contains(path, "//") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.TrimSpace(seg) != seg {
			return false
		}
		if !segmentPattern.MatchString(seg) {
			return false
		}
	}
	return true
}

func segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Add indexes channelId under path. Rejects invalid paths without partially
// updating any map.
func (idx *Index) Add(channelID, path string) error {
	if !IsValidPath(path) {
		return fmt.Errorf("pathindex: invalid path %q", path)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if prev, ok := idx.channelPath[channelID]; ok {
		idx.removeLocked(channelID, prev)
	}

	segs := segments(path)
	depth := len(segs)

	idx.channelPath[channelID] = path
	if _, ok := idx.insertOrder[channelID]; !ok {
		idx.seq++
		idx.insertOrder[channelID] = idx.seq
	}

	addTo(idx.byPath, path, channelID)
	for _, s := range segs {
		addTo(idx.bySegment, s, channelID)
	}
	addToInt(idx.byDepth, depth, channelID)

	cur := idx.root
	for _, s := range segs {
		child, ok := cur.children[s]
		if !ok {
			child = newNode(s)
			cur.children[s] = child
		}
		cur = child
	}
	cur.channels[channelID] = struct{}{}

	return nil
}

// Remove reverses Add for channelID. O(depth).
func (idx *Index) Remove(channelID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	path, ok := idx.channelPath[channelID]
	if !ok {
		return
	}
	idx.removeLocked(channelID, path)
}

func (idx *Index) removeLocked(channelID, path string) {
	segs := segments(path)
	depth := len(segs)

	delete(idx.channelPath, channelID)
	removeFrom(idx.byPath, path, channelID)
	for _, s := range segs {
		removeFrom(idx.bySegment, s, channelID)
	}
	removeFromInt(idx.byDepth, depth, channelID)

	// Walk down recording the path of nodes, then prune bottom-up.
	nodes := make([]*node, 0, depth+1)
	cur := idx.root
	nodes = append(nodes, cur)
	for _, s := range segs {
		child, ok := cur.children[s]
		if !ok {
			return
		}
		nodes = append(nodes, child)
		cur = child
	}
	delete(cur.channels, channelID)

	for i := len(nodes) - 1; i > 0; i-- {
		n := nodes[i]
		if len(n.channels) == 0 && len(n.children) == 0 {
			delete(nodes[i-1].children, n.segment)
		} else {
			break
		}
	}
}

// GetPath returns the path a channel is indexed under.
func (idx *Index) GetPath(channelID string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.channelPath[channelID]
	return p, ok
}

// GetByDepth returns channel ids indexed at exactly depth segments, in
// insertion order.
func (idx *Index) GetByDepth(depth int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.orderedLocked(idx.byDepth[depth])
}

// GetBySegment returns channel ids that have segment anywhere in their path,
// in insertion order.
func (idx *Index) GetBySegment(segment string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.orderedLocked(idx.bySegment[segment])
}

func (idx *Index) orderedLocked(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return idx.insertOrder[out[i]] < idx.insertOrder[out[j]] })
	return out
}

// Match resolves a pattern (possibly containing `*`/`**`) to every indexed
// channel whose path matches it. Exact (no wildcard) patterns resolve in
// O(1) via the path map; wildcard patterns walk the tree. Results are
// deduplicated by (channelId, path) and returned in insertion order.
func (idx *Index) Match(pattern string) []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !strings.Contains(pattern, "*") {
		set, ok := idx.byPath[pattern]
		if !ok {
			return nil
		}
		ids := idx.orderedLocked(set)
		out := make([]Match, 0, len(ids))
		for _, id := range ids {
			out = append(out, Match{ChannelID: id, Path: pattern, Depth: len(segments(pattern)), ExactMatch: true})
		}
		return out
	}

	segs := segments(pattern)
	seen := make(map[string]struct{})
	var out []Match

	var walk func(n *node, segIdx int, matchedPath []string)
	walk = func(n *node, segIdx int, matchedPath []string) {
		if segIdx == len(segs) {
			for id := range n.channels {
				key := id + "\x00" + strings.Join(matchedPath, "/")
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, Match{
					ChannelID: id,
					Path:      strings.Join(matchedPath, "/"),
					Depth:     len(matchedPath),
					ExactMatch: false,
				})
			}
			return
		}

		seg := segs[segIdx]
		switch seg {
		case "**":
			// Zero-or-more: try consuming this wildcard without advancing
			// (match zero segments here) and also descend through every
			// child while remaining on the same wildcard.
			walk(n, segIdx+1, matchedPath)
			for childSeg, child := range n.children {
				walk(child, segIdx, append(append([]string{}, matchedPath...), childSeg))
			}
		case "*":
			for childSeg, child := range n.children {
				walk(child, segIdx+1, append(append([]string{}, matchedPath...), childSeg))
			}
		default:
			if child, ok := n.children[seg]; ok {
				walk(child, segIdx+1, append(append([]string{}, matchedPath...), seg))
			}
		}
	}

	walk(idx.root, 0, nil)

	sort.Slice(out, func(i, j int) bool {
		oi, oj := idx.insertOrder[out[i].ChannelID], idx.insertOrder[out[j].ChannelID]
		if oi != oj {
			return oi < oj
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Stats is a point-in-time summary for introspection.
type Stats struct {
	Channels int
	Paths    int
	Segments int
	Depths   int
}

// Stats returns index cardinality counts.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Channels: len(idx.channelPath),
		Paths:    len(idx.byPath),
		Segments: len(idx.bySegment),
		Depths:   len(idx.byDepth),
	}
}

func addTo(m map[string]map[string]struct{}, key, channelID string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[channelID] = struct{}{}
}

func removeFrom(m map[string]map[string]struct{}, key, channelID string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, channelID)
	if len(set) == 0 {
		delete(m, key)
	}
}

func addToInt(m map[int]map[string]struct{}, key int, channelID string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[channelID] = struct{}{}
}

func removeFromInt(m map[int]map[string]struct{}, key int, channelID string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, channelID)
	if len(set) == 0 {
		delete(m, key)
	}
}
