package core

import (
	"context"
	"fmt"
)

// tree.go rebuilds a parent/child hierarchy from a flat, leveled row list.
//
// Rows arrive in file order, each with a structure level. A stack of frames
// holds the current ancestry: before placing a node, frames at or below the
// node's level are popped and whatever remains on top is its parent. A node
// is pushed only once its row has actually been stored, so a skipped or failed
// row never becomes anyone's parent.

// Frame is one entry of the ancestry stack. RowNo is 0 for the tree root,
// which has no item row of its own.
type Frame struct {
	Level    int
	ItemCode string
	RowNo    int
}

// Placement is a node paired with its structurally derived parent. RowNo is
// the row number the node was stored under.
type Placement struct {
	Node        Node   `json:"node"`
	ParentCode  string `json:"parent_code"`
	ParentRowNo int    `json:"parent_row_no,omitempty"`
	RowNo       int    `json:"row_no"`
}

// ItemCheck reports whether the item a node references exists.
type ItemCheck func(ctx context.Context, code string) (bool, error)

// PlaceFunc stores a placement and returns its assigned row number.
type PlaceFunc func(ctx context.Context, p Placement) (int, error)

// SelectRoot picks the first node holding the minimum level. Nodes before it
// are discarded; rest holds the nodes after it in order.
func SelectRoot(nodes []Node) (root Node, rest []Node, err error) {
	if len(nodes) == 0 {
		return Node{}, nil, ErrNoValidRows
	}

	rootIdx := 0
	for i, n := range nodes {
		if n.Level < nodes[rootIdx].Level {
			rootIdx = i
		}
	}
	return nodes[rootIdx], nodes[rootIdx+1:], nil
}

// TreeBuilder holds the ancestry stack for one tree.
type TreeBuilder struct {
	frames []Frame
}

// NewTreeBuilder seeds the stack with the root.
func NewTreeBuilder(root Node) *TreeBuilder {
	return &TreeBuilder{
		frames: []Frame{{Level: root.Level, ItemCode: root.ItemCode}},
	}
}

// parentFor pops every frame whose level is >= level and returns the new top.
func (b *TreeBuilder) parentFor(level int) (Frame, bool) {
	for len(b.frames) > 0 && b.frames[len(b.frames)-1].Level >= level {
		b.frames = b.frames[:len(b.frames)-1]
	}
	if len(b.frames) == 0 {
		return Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

// Depth is the current stack height, root included.
func (b *TreeBuilder) Depth() int {
	return len(b.frames)
}

// Build places children in order. exists may be nil to accept every item.
// One RowResult is returned per child; placements holds the stored ones in
// emission order. The only error is context cancellation, in which case the
// results so far are returned with it.
func (b *TreeBuilder) Build(ctx context.Context, children []Node, exists ItemCheck, place PlaceFunc) ([]Placement, []RowResult, error) {
	placements := make([]Placement, 0, len(children))
	results := make([]RowResult, 0, len(children))

	for _, n := range children {
		if err := ctx.Err(); err != nil {
			return placements, results, err
		}

		parent, ok := b.parentFor(n.Level)
		if !ok {
			results = append(results, skipped(n.RowIndex, n.ItemCode, ReasonNoParent))
			continue
		}

		if exists != nil {
			found, err := exists(ctx, n.ItemCode)
			if err != nil {
				results = append(results, failed(n.RowIndex, n.ItemCode, ReasonSeeErrorLog,
					fmt.Errorf("look up item %s: %w", n.ItemCode, err)))
				continue
			}
			if !found {
				results = append(results, skipped(n.RowIndex, n.ItemCode, ReasonItemNotFound))
				continue
			}
		}

		p := Placement{Node: n, ParentCode: parent.ItemCode, ParentRowNo: parent.RowNo}
		rowNo, err := place(ctx, p)
		if err != nil {
			results = append(results, failed(n.RowIndex, n.ItemCode, ReasonSeeErrorLog, err))
			continue
		}

		p.RowNo = rowNo
		placements = append(placements, p)
		results = append(results, created(n.RowIndex, n.ItemCode))
		b.frames = append(b.frames, Frame{Level: n.Level, ItemCode: n.ItemCode, RowNo: rowNo})
	}

	return placements, results, nil
}

// TreePlan is the outcome of building a tree without storing it.
type TreePlan struct {
	Root       Node        `json:"root"`
	Placements []Placement `json:"placements"`
	Results    []RowResult `json:"results"`
}

// PlanTree runs the builder over nodes with sequential row numbers and no
// item checks.
func PlanTree(nodes []Node) (*TreePlan, error) {
	root, rest, err := SelectRoot(nodes)
	if err != nil {
		return nil, err
	}

	next := 0
	seq := func(context.Context, Placement) (int, error) {
		next++
		return next, nil
	}

	placements, results, err := NewTreeBuilder(root).Build(context.Background(), rest, nil, seq)
	if err != nil {
		return nil, err
	}
	return &TreePlan{Root: root, Placements: placements, Results: results}, nil
}

// RawMaterialCost sums the amounts of leaf rows, the rows no other row
// names as its parent. Sub-assembly rows are priced by their parts.
func RawMaterialCost(rows []TreeRow) float64 {
	parents := make(map[int]bool, len(rows))
	for _, r := range rows {
		if r.ParentRowNo > 0 {
			parents[r.ParentRowNo] = true
		}
	}

	var total float64
	for _, r := range rows {
		if !parents[r.RowNo] {
			total += r.Amount
		}
	}
	return total
}
