package service

import (
	"slices"

	"github.com/arasuji/arasuji-server/internal/domain"
)

// MaxThreadDepth is the deepest indentation level a reply is rendered at.
// Deeper replies are clamped to it.
const MaxThreadDepth = 3

// ThreadEntry is one comment in display order with its indentation depth.
type ThreadEntry struct {
	Comment *domain.Comment
	Depth   int
}

// FlattenThread orders comments for display: each root in creation order
// followed depth-first by its replies, also in creation order.
//
// Every non-nil input comment appears exactly once. Comments that cannot be
// reached from a root, because their parent is missing or their ancestry
// loops, are shown as additional roots with whatever replies hang beneath
// them: orphans first in creation order, then one comment per cycle. A reply
// always follows its parent unless both sit on the same cycle.
func FlattenThread(comments []*domain.Comment) []ThreadEntry {
	ordered := make([]*domain.Comment, 0, len(comments))
	for _, c := range comments {
		if c != nil {
			ordered = append(ordered, c)
		}
	}
	// Stable: equal timestamps keep input order. Missing timestamps sort first.
	slices.SortStableFunc(ordered, func(a, b *domain.Comment) int {
		return a.CreatedAtOrZero().Compare(b.CreatedAtOrZero())
	})

	children := make(map[string][]*domain.Comment)
	var roots []*domain.Comment
	for _, c := range ordered {
		if c.IsRoot() {
			roots = append(roots, c)
			continue
		}
		children[c.ParentID] = append(children[c.ParentID], c)
	}

	out := make([]ThreadEntry, 0, len(ordered))
	visited := make(map[*domain.Comment]bool, len(ordered))

	var walk func(c *domain.Comment, depth int)
	walk = func(c *domain.Comment, depth int) {
		if visited[c] {
			return
		}
		visited[c] = true
		out = append(out, ThreadEntry{Comment: c, Depth: depth})
		for _, child := range children[c.ID] {
			walk(child, min(depth+1, MaxThreadDepth))
		}
	}

	byID := make(map[string]*domain.Comment, len(ordered))
	for _, c := range ordered {
		byID[c.ID] = c
	}

	for _, root := range roots {
		walk(root, 0)
	}
	// Orphans: the parent is not in the thread.
	for _, c := range ordered {
		if !c.IsRoot() && byID[c.ParentID] == nil {
			walk(c, 0)
		}
	}
	// Whatever is left hangs off a cycle. Start from the first comment on the
	// cycle so that non-cycle replies still follow their parent.
	for _, c := range ordered {
		if !visited[c] {
			walk(cycleEntry(c, byID, visited), 0)
		}
	}
	return out
}

// cycleEntry climbs c's parent chain and returns the first comment seen twice,
// or the topmost unvisited ancestor if the chain ends first.
func cycleEntry(c *domain.Comment, byID map[string]*domain.Comment, visited map[*domain.Comment]bool) *domain.Comment {
	seen := make(map[*domain.Comment]bool)
	for {
		if seen[c] {
			return c
		}
		seen[c] = true
		parent := byID[c.ParentID]
		if c.IsRoot() || parent == nil || visited[parent] {
			return c
		}
		c = parent
	}
}
