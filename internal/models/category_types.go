package models

import (
	"sort"
	"strings"
	"time"
)

// PathSeparator joins ancestor names in a category path.
const PathSeparator = " > "

// Category defines the struct for the 'categories' table
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description,omitempty" db:"description"`
	ParentID    *int64    `json:"parentId,omitempty" db:"parent_id"` // Use pointer for NULL
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// CategoryNode is a category with its children, used for tree rendering.
type CategoryNode struct {
	Category
	Path     string         `json:"path"`
	Children []CategoryNode `json:"children,omitempty"`
}

// CategoryTree is an arena of categories keyed by id with parent links.
// All walks are bounded by the node count, so a corrupted parent chain
// cannot loop forever.
type CategoryTree struct {
	nodes    map[int64]Category
	children map[int64][]int64
	order    []int64
}

// NewCategoryTree indexes a flat category list. Input order is kept for siblings.
func NewCategoryTree(categories []Category) *CategoryTree {
	t := &CategoryTree{
		nodes:    make(map[int64]Category, len(categories)),
		children: make(map[int64][]int64),
	}
	for _, c := range categories {
		t.nodes[c.ID] = c
		t.order = append(t.order, c.ID)
	}
	for _, id := range t.order {
		c := t.nodes[id]
		if c.ParentID != nil {
			t.children[*c.ParentID] = append(t.children[*c.ParentID], id)
		}
	}
	return t
}

// Len is the number of categories in the tree.
func (t *CategoryTree) Len() int { return len(t.nodes) }

// Get returns the category with the given id.
func (t *CategoryTree) Get(id int64) (Category, bool) {
	c, ok := t.nodes[id]
	return c, ok
}

// Children returns the direct children of id.
func (t *CategoryTree) Children(id int64) []Category {
	ids := t.children[id]
	out := make([]Category, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.nodes[cid])
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first. The walk stops at
// a root, at an unknown parent, or after Len steps.
func (t *CategoryTree) Ancestors(id int64) []Category {
	var out []Category
	c, ok := t.nodes[id]
	for steps := 0; ok && c.ParentID != nil && steps < len(t.nodes); steps++ {
		parent, found := t.nodes[*c.ParentID]
		if !found || parent.ID == id {
			break
		}
		out = append(out, parent)
		c = parent
	}
	return out
}

// IsAncestor reports whether ancestorID appears on the parent chain of id.
func (t *CategoryTree) IsAncestor(ancestorID, id int64) bool {
	c, ok := t.nodes[id]
	for steps := 0; ok && c.ParentID != nil && steps < len(t.nodes); steps++ {
		if *c.ParentID == ancestorID {
			return true
		}
		c, ok = t.nodes[*c.ParentID]
	}
	return false
}

// WouldCycle reports whether making parentID the parent of id would create a
// cycle, i.e. id is parentID itself or one of its ancestors.
func (t *CategoryTree) WouldCycle(id, parentID int64) bool {
	return id == parentID || t.IsAncestor(id, parentID)
}

// Path renders the names from root to id, e.g. "Electronics > Phones".
func (t *CategoryTree) Path(id int64) string {
	c, ok := t.nodes[id]
	if !ok {
		return ""
	}
	ancestors := t.Ancestors(id)
	names := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		names = append(names, ancestors[i].Name)
	}
	names = append(names, c.Name)
	return strings.Join(names, PathSeparator)
}

// Descendants returns id and every category below it.
func (t *CategoryTree) Descendants(id int64) []int64 {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	seen := map[int64]bool{id: true}
	out := []int64{id}
	for i := 0; i < len(out); i++ {
		for _, cid := range t.children[out[i]] {
			if !seen[cid] {
				seen[cid] = true
				out = append(out, cid)
			}
		}
	}
	return out
}

// Roots returns the nested tree of root categories sorted by name.
func (t *CategoryTree) Roots() []CategoryNode {
	var roots []CategoryNode
	visited := make(map[int64]bool, len(t.nodes))
	for _, id := range t.order {
		c := t.nodes[id]
		if c.ParentID == nil {
			roots = append(roots, t.build(id, visited))
			continue
		}
		// Orphans whose parent is missing are rendered as roots.
		if _, ok := t.nodes[*c.ParentID]; !ok {
			roots = append(roots, t.build(id, visited))
		}
	}
	sortNodes(roots)
	if roots == nil {
		roots = []CategoryNode{}
	}
	return roots
}

func (t *CategoryTree) build(id int64, visited map[int64]bool) CategoryNode {
	visited[id] = true
	node := CategoryNode{Category: t.nodes[id], Path: t.Path(id), Children: []CategoryNode{}}
	for _, cid := range t.children[id] {
		if visited[cid] {
			continue
		}
		node.Children = append(node.Children, t.build(cid, visited))
	}
	sortNodes(node.Children)
	return node
}

func sortNodes(nodes []CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}
