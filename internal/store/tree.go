package store

import "sort"

// flattenTree orders collections depth-first, pre-order, setting Depth (root
// = 0). Roots and siblings are sorted by DateCreated descending. The tree is
// an arena: nodes are indexes into cols and children are index lists.
//
// A collection whose parent is missing from cols is a root. Collections
// caught in a parent loop are unreachable from any root; they are walked as
// extra roots afterwards so nothing is dropped.
func flattenTree(cols []*Collection) []*Collection {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.ID] = i
	}

	children := make([][]int, len(cols))
	roots := make([]int, 0, len(cols))
	for i, c := range cols {
		p, ok := index[c.ParentID]
		if c.ParentID == "" || !ok || p == i {
			roots = append(roots, i)
			continue
		}
		children[p] = append(children[p], i)
	}

	newestFirst := func(ids []int) {
		sort.SliceStable(ids, func(a, b int) bool {
			ca, cb := cols[ids[a]], cols[ids[b]]
			if ca.DateCreated != cb.DateCreated {
				return ca.DateCreated > cb.DateCreated
			}
			return ca.ID < cb.ID
		})
	}
	newestFirst(roots)
	for _, kids := range children {
		newestFirst(kids)
	}

	type frame struct {
		node  int
		depth int
	}

	out := make([]*Collection, 0, len(cols))
	visited := make([]bool, len(cols))
	walk := func(root int) {
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[f.node] {
				continue
			}
			visited[f.node] = true

			c := cols[f.node]
			c.Depth = f.depth
			out = append(out, c)

			kids := children[f.node]
			for k := len(kids) - 1; k >= 0; k-- {
				stack = append(stack, frame{node: kids[k], depth: f.depth + 1})
			}
		}
	}

	for _, r := range roots {
		walk(r)
	}

	if len(out) < len(cols) {
		rest := make([]int, 0, len(cols)-len(out))
		for i := range cols {
			if !visited[i] {
				rest = append(rest, i)
			}
		}
		newestFirst(rest)
		for _, r := range rest {
			walk(r)
		}
	}
	return out
}
