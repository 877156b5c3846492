package tree

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
)

// Service maintains the folder/request hierarchy of a project: ordering,
// cascade delete, subtree clone and subtree move. The tree is kept flat -
// nodes carry parent pointers and an integer sortOrder among siblings -
// and every multi-record mutation runs in one store transaction.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

func (s *Service) List(ctx context.Context, projectID string) ([]model.TreeNode, error) {
	return s.store.ListNodesByProject(ctx, projectID)
}

// CreateNode appends a node at the end of its sibling group. Request nodes
// atomically get a paired default definition; both writes commit together.
func (s *Service) CreateNode(
	ctx context.Context,
	projectID, parentID string,
	typ model.NodeType,
	name string,
) (model.TreeNode, error) {
	trimmed, ok := model.ValidateName(name)
	if !ok {
		return model.TreeNode{}, errdef.New(errdef.CodeValidation, "node name must be 1-120 characters")
	}
	if typ != model.NodeFolder && typ != model.NodeRequest {
		return model.TreeNode{}, errdef.New(errdef.CodeValidation, "unknown node type %q", typ)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return model.TreeNode{}, err
	}

	siblings, err := s.store.ListChildren(ctx, projectID, parentID)
	if err != nil {
		return model.TreeNode{}, err
	}

	now := model.Now()
	node := model.TreeNode{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ParentID:  parentID,
		Type:      typ,
		Name:      trimmed,
		SortOrder: NextSortOrder(siblings),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertNode(ctx, node); err != nil {
			return err
		}
		if node.Type == model.NodeRequest {
			def := model.DefaultRequestDefinition(projectID, node.ID, node.Name, now)
			def.ID = uuid.NewString()
			return tx.InsertRequest(ctx, def)
		}
		return nil
	})
	if err != nil {
		return model.TreeNode{}, err
	}
	return node, nil
}

// NextSortOrder picks max(sibling orders)+1, or 1 for an empty group.
func NextSortOrder(siblings []model.TreeNode) int {
	next := 1
	for _, sib := range siblings {
		if sib.SortOrder >= next {
			next = sib.SortOrder + 1
		}
	}
	return next
}

// Rename updates the node's name and keeps the paired request definition's
// name in sync, both stamped with the same update time.
func (s *Service) Rename(ctx context.Context, nodeID, name string) error {
	trimmed, ok := model.ValidateName(name)
	if !ok {
		return errdef.New(errdef.CodeValidation, "node name must be 1-120 characters")
	}

	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}

	now := model.Now()
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateNodeName(ctx, nodeID, trimmed, now); err != nil {
			return err
		}
		if node.Type == model.NodeRequest {
			return tx.UpdateRequestName(ctx, nodeID, trimmed, now)
		}
		return nil
	})
}

// DeleteSubtree removes a node, every transitive descendant and every request
// definition paired with one of them, in a single transaction.
func (s *Service) DeleteSubtree(ctx context.Context, nodeID string) error {
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}

	all, err := s.store.ListNodesByProject(ctx, node.ProjectID)
	if err != nil {
		return err
	}
	doomed := descendantClosure(all, nodeID)

	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteNodes(ctx, doomed); err != nil {
			return err
		}
		return tx.DeleteRequestsByNodes(ctx, doomed)
	})
}

// SwapOrder exchanges sortOrder between two same-parent nodes, the primitive
// behind moving a node one position up or down.
func (s *Service) SwapOrder(ctx context.Context, aID, bID string) error {
	a, err := s.store.GetNode(ctx, aID)
	if err != nil {
		return err
	}
	b, err := s.store.GetNode(ctx, bID)
	if err != nil {
		return err
	}
	if a.ProjectID != b.ProjectID || a.ParentID != b.ParentID {
		return errdef.New(errdef.CodeValidation, "nodes %s and %s are not siblings", aID, bID)
	}

	now := model.Now()
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateNodeOrder(ctx, a.ID, b.SortOrder, now); err != nil {
			return err
		}
		return tx.UpdateNodeOrder(ctx, b.ID, a.SortOrder, now)
	})
}

// Move shifts a node one position among its siblings. Moving past either end
// of the group is a no-op.
func (s *Service) Move(ctx context.Context, nodeID string, dir Direction) error {
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	siblings, err := s.store.ListChildren(ctx, node.ProjectID, node.ParentID)
	if err != nil {
		return err
	}

	idx := -1
	for i, sib := range siblings {
		if sib.ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errdef.New(errdef.CodeNotFound, "node %s not found among siblings", nodeID)
	}

	swapWith := idx - 1
	if dir == MoveDown {
		swapWith = idx + 1
	}
	if swapWith < 0 || swapWith >= len(siblings) {
		return nil
	}
	return s.SwapOrder(ctx, nodeID, siblings[swapWith].ID)
}

// MoveToParent reparents a node and resequences the target sibling group to
// a dense 1..N ordering. Moving a node into itself or its own subtree is
// rejected before anything is written.
func (s *Service) MoveToParent(ctx context.Context, nodeID, newParentID string, targetIndex int) error {
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}

	all, err := s.store.ListNodesByProject(ctx, node.ProjectID)
	if err != nil {
		return err
	}

	if newParentID != "" {
		byID := make(map[string]model.TreeNode, len(all))
		for _, n := range all {
			byID[n.ID] = n
		}
		if _, ok := byID[newParentID]; !ok {
			return errdef.New(errdef.CodeNotFound, "target parent %s not found", newParentID)
		}
		// Walk ancestor pointers from the target to the root; hitting the
		// moved node means the target lives inside the moved subtree.
		for checkID := newParentID; checkID != ""; {
			if checkID == nodeID {
				return errdef.New(errdef.CodeCyclicMove, "cannot move node into itself or its descendants")
			}
			checkID = byID[checkID].ParentID
		}
	}

	var siblings []model.TreeNode
	for _, n := range all {
		if n.ParentID == newParentID && n.ID != nodeID {
			siblings = append(siblings, n)
		}
	}
	sort.SliceStable(siblings, func(i, j int) bool {
		return siblings[i].SortOrder < siblings[j].SortOrder
	})

	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(siblings) {
		targetIndex = len(siblings)
	}
	ordered := make([]model.TreeNode, 0, len(siblings)+1)
	ordered = append(ordered, siblings[:targetIndex]...)
	ordered = append(ordered, node)
	ordered = append(ordered, siblings[targetIndex:]...)

	now := model.Now()
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		for i, n := range ordered {
			if n.ID == nodeID {
				if err := tx.UpdateNodePlacement(ctx, n.ID, newParentID, i+1, now); err != nil {
					return err
				}
				continue
			}
			if err := tx.UpdateNodeOrder(ctx, n.ID, i+1, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// CloneSubtree deep-copies a node and its descendants, possibly into another
// project. Every copied node and definition gets a fresh id; structure and
// relative sibling order are preserved. Only the cloned root is renamed with
// a "(copy)" suffix and placed at baseSortOrder.
func (s *Service) CloneSubtree(
	ctx context.Context,
	sourceNodeID, targetParentID, targetProjectID string,
	baseSortOrder int,
) (model.TreeNode, error) {
	source, err := s.store.GetNode(ctx, sourceNodeID)
	if errdef.Is(err, errdef.CodeNotFound) {
		return model.TreeNode{}, errdef.New(errdef.CodeNotFound, "source node %s not found", sourceNodeID)
	}
	if err != nil {
		return model.TreeNode{}, err
	}

	all, err := s.store.ListNodesByProject(ctx, source.ProjectID)
	if err != nil {
		return model.TreeNode{}, err
	}
	defs, err := s.store.ListRequestsByProject(ctx, source.ProjectID)
	if err != nil {
		return model.TreeNode{}, err
	}
	defByNode := make(map[string]model.RequestDefinition, len(defs))
	for _, def := range defs {
		defByNode[def.NodeID] = def
	}

	sourceNodes := collectSubtree(all, sourceNodeID)

	idMap := make(map[string]string, len(sourceNodes))
	for _, n := range sourceNodes {
		idMap[n.ID] = uuid.NewString()
	}

	now := model.Now()
	newNodes := make([]model.TreeNode, 0, len(sourceNodes))
	var newDefs []model.RequestDefinition

	for _, n := range sourceNodes {
		isRoot := n.ID == sourceNodeID
		clone := model.TreeNode{
			ID:        idMap[n.ID],
			ProjectID: targetProjectID,
			ParentID:  targetParentID,
			Type:      n.Type,
			Name:      n.Name,
			SortOrder: n.SortOrder,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if isRoot {
			clone.Name = n.Name + " (copy)"
			clone.SortOrder = baseSortOrder
		} else if mapped, ok := idMap[n.ParentID]; ok {
			clone.ParentID = mapped
		}
		newNodes = append(newNodes, clone)

		if n.Type == model.NodeRequest {
			def, ok := defByNode[n.ID]
			if !ok {
				continue
			}
			def.ID = uuid.NewString()
			def.ProjectID = targetProjectID
			def.NodeID = clone.ID
			def.Name = clone.Name
			def.UpdatedAt = now
			newDefs = append(newDefs, def)
		}
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, n := range newNodes {
			if err := tx.InsertNode(ctx, n); err != nil {
				return err
			}
		}
		for _, def := range newDefs {
			if err := tx.InsertRequest(ctx, def); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.TreeNode{}, err
	}
	return newNodes[0], nil
}

// descendantClosure returns the node plus every transitive child id.
func descendantClosure(all []model.TreeNode, rootID string) []string {
	byParent := groupByParent(all)
	ids := []string{rootID}
	for i := 0; i < len(ids); i++ {
		for _, child := range byParent[ids[i]] {
			ids = append(ids, child.ID)
		}
	}
	return ids
}

// collectSubtree returns the root followed by descendants in depth-first
// order, children sorted by sortOrder so clones keep relative order.
func collectSubtree(all []model.TreeNode, rootID string) []model.TreeNode {
	byID := make(map[string]model.TreeNode, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}
	byParent := groupByParent(all)

	var out []model.TreeNode
	var walk func(id string)
	walk = func(id string) {
		node, ok := byID[id]
		if !ok {
			return
		}
		out = append(out, node)
		for _, child := range byParent[id] {
			walk(child.ID)
		}
	}
	walk(rootID)
	return out
}

func groupByParent(all []model.TreeNode) map[string][]model.TreeNode {
	byParent := make(map[string][]model.TreeNode)
	for _, n := range all {
		byParent[n.ParentID] = append(byParent[n.ParentID], n)
	}
	for _, children := range byParent {
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].SortOrder < children[j].SortOrder
		})
	}
	return byParent
}
