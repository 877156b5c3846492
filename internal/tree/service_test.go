package tree

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
)

type fixture struct {
	store   *store.Store
	svc     *Service
	project model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "apiuse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	now := model.Now()
	p := model.Project{ID: uuid.NewString(), Name: "test", CreatedAt: now, UpdatedAt: now}
	if err := st.InsertProject(context.Background(), p); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	return &fixture{store: st, svc: NewService(st), project: p}
}

func (f *fixture) mustCreate(t *testing.T, parentID string, typ model.NodeType, name string) model.TreeNode {
	t.Helper()
	node, err := f.svc.CreateNode(context.Background(), f.project.ID, parentID, typ, name)
	if err != nil {
		t.Fatalf("create node %q: %v", name, err)
	}
	return node
}

func (f *fixture) nodeByID(t *testing.T, id string) model.TreeNode {
	t.Helper()
	node, err := f.store.GetNode(context.Background(), id)
	if err != nil {
		t.Fatalf("get node %s: %v", id, err)
	}
	return node
}

func TestCreateNodeAssignsSequentialOrder(t *testing.T) {
	f := newFixture(t)

	a := f.mustCreate(t, "", model.NodeFolder, "a")
	b := f.mustCreate(t, "", model.NodeFolder, "b")
	c := f.mustCreate(t, "", model.NodeRequest, "c")

	if a.SortOrder != 1 || b.SortOrder != 2 || c.SortOrder != 3 {
		t.Fatalf("unexpected sort orders %d %d %d", a.SortOrder, b.SortOrder, c.SortOrder)
	}

	// Ordering restarts per sibling group.
	child := f.mustCreate(t, a.ID, model.NodeRequest, "child")
	if child.SortOrder != 1 {
		t.Fatalf("child sort order = %d, want 1", child.SortOrder)
	}
}

func TestCreateRequestNodePairsDefinition(t *testing.T) {
	f := newFixture(t)
	node := f.mustCreate(t, "", model.NodeRequest, "ping")

	def, err := f.store.GetRequestByNode(context.Background(), node.ID)
	if err != nil {
		t.Fatalf("get paired definition: %v", err)
	}
	if def.Name != "ping" || def.Method != "GET" || def.Body.Type != model.BodyNone {
		t.Fatalf("unexpected default definition: %+v", def)
	}
}

func TestCreateNodeRejectsBlankName(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateNode(context.Background(), f.project.ID, "", model.NodeFolder, "   ")
	if !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenameSyncsDefinitionName(t *testing.T) {
	f := newFixture(t)
	node := f.mustCreate(t, "", model.NodeRequest, "old")

	if err := f.svc.Rename(context.Background(), node.ID, "  new  "); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if got := f.nodeByID(t, node.ID); got.Name != "new" {
		t.Fatalf("node name = %q, want %q", got.Name, "new")
	}
	def, err := f.store.GetRequestByNode(context.Background(), node.ID)
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if def.Name != "new" {
		t.Fatalf("definition name = %q, want %q", def.Name, "new")
	}
}

func TestDeleteSubtreeCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.mustCreate(t, "", model.NodeFolder, "root")
	mid := f.mustCreate(t, root.ID, model.NodeFolder, "mid")
	leaf := f.mustCreate(t, mid.ID, model.NodeRequest, "leaf")
	other := f.mustCreate(t, "", model.NodeRequest, "other")

	if err := f.svc.DeleteSubtree(ctx, root.ID); err != nil {
		t.Fatalf("delete subtree: %v", err)
	}

	for _, id := range []string{root.ID, mid.ID, leaf.ID} {
		if _, err := f.store.GetNode(ctx, id); !errdef.Is(err, errdef.CodeNotFound) {
			t.Fatalf("node %s should be deleted, got %v", id, err)
		}
	}
	if _, err := f.store.GetRequestByNode(ctx, leaf.ID); !errdef.Is(err, errdef.CodeNotFound) {
		t.Fatalf("leaf definition should be deleted, got %v", err)
	}

	// Unrelated sibling survives.
	if _, err := f.store.GetNode(ctx, other.ID); err != nil {
		t.Fatalf("sibling should survive: %v", err)
	}
	if _, err := f.store.GetRequestByNode(ctx, other.ID); err != nil {
		t.Fatalf("sibling definition should survive: %v", err)
	}
}

func TestMoveDownSwapsWithNextSibling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mustCreate(t, "", model.NodeFolder, "a")
	b := f.mustCreate(t, "", model.NodeFolder, "b")
	c := f.mustCreate(t, "", model.NodeFolder, "c")

	if err := f.svc.Move(ctx, a.ID, MoveDown); err != nil {
		t.Fatalf("move down: %v", err)
	}

	if got := f.nodeByID(t, a.ID); got.SortOrder != 2 {
		t.Fatalf("a sort order = %d, want 2", got.SortOrder)
	}
	if got := f.nodeByID(t, b.ID); got.SortOrder != 1 {
		t.Fatalf("b sort order = %d, want 1", got.SortOrder)
	}
	if got := f.nodeByID(t, c.ID); got.SortOrder != 3 {
		t.Fatalf("c sort order = %d, want 3", got.SortOrder)
	}
}

func TestMovePastEdgeIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mustCreate(t, "", model.NodeFolder, "a")
	b := f.mustCreate(t, "", model.NodeFolder, "b")

	if err := f.svc.Move(ctx, a.ID, MoveUp); err != nil {
		t.Fatalf("move up at top: %v", err)
	}
	if err := f.svc.Move(ctx, b.ID, MoveDown); err != nil {
		t.Fatalf("move down at bottom: %v", err)
	}
	if got := f.nodeByID(t, a.ID); got.SortOrder != 1 {
		t.Fatalf("a sort order changed to %d", got.SortOrder)
	}
	if got := f.nodeByID(t, b.ID); got.SortOrder != 2 {
		t.Fatalf("b sort order changed to %d", got.SortOrder)
	}
}

func TestSwapOrderRejectsNonSiblings(t *testing.T) {
	f := newFixture(t)
	folder := f.mustCreate(t, "", model.NodeFolder, "folder")
	inner := f.mustCreate(t, folder.ID, model.NodeRequest, "inner")
	outer := f.mustCreate(t, "", model.NodeRequest, "outer")

	err := f.svc.SwapOrder(context.Background(), inner.ID, outer.ID)
	if !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMoveToParentRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.mustCreate(t, "", model.NodeFolder, "root")
	child := f.mustCreate(t, root.ID, model.NodeFolder, "child")
	grand := f.mustCreate(t, child.ID, model.NodeFolder, "grand")

	err := f.svc.MoveToParent(ctx, root.ID, grand.ID, 0)
	if !errdef.Is(err, errdef.CodeCyclicMove) {
		t.Fatalf("expected cyclic-move error, got %v", err)
	}
	err = f.svc.MoveToParent(ctx, root.ID, root.ID, 0)
	if !errdef.Is(err, errdef.CodeCyclicMove) {
		t.Fatalf("expected cyclic-move error on self, got %v", err)
	}

	// Nothing moved.
	if got := f.nodeByID(t, root.ID); got.ParentID != "" {
		t.Fatalf("root reparented to %q", got.ParentID)
	}
	if got := f.nodeByID(t, child.ID); got.ParentID != root.ID {
		t.Fatalf("child reparented to %q", got.ParentID)
	}
}

func TestMoveToParentResequencesSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, "", model.NodeFolder, "folder")
	a := f.mustCreate(t, folder.ID, model.NodeRequest, "a")
	b := f.mustCreate(t, folder.ID, model.NodeRequest, "b")
	loose := f.mustCreate(t, "", model.NodeRequest, "loose")

	if err := f.svc.MoveToParent(ctx, loose.ID, folder.ID, 1); err != nil {
		t.Fatalf("move to parent: %v", err)
	}

	if got := f.nodeByID(t, loose.ID); got.ParentID != folder.ID || got.SortOrder != 2 {
		t.Fatalf("moved node placement = parent %q order %d", got.ParentID, got.SortOrder)
	}
	if got := f.nodeByID(t, a.ID); got.SortOrder != 1 {
		t.Fatalf("a sort order = %d, want 1", got.SortOrder)
	}
	if got := f.nodeByID(t, b.ID); got.SortOrder != 3 {
		t.Fatalf("b sort order = %d, want 3", got.SortOrder)
	}
}

func TestMoveToParentClampsTargetIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, "", model.NodeFolder, "folder")
	f.mustCreate(t, folder.ID, model.NodeRequest, "a")
	loose := f.mustCreate(t, "", model.NodeRequest, "loose")

	if err := f.svc.MoveToParent(ctx, loose.ID, folder.ID, 99); err != nil {
		t.Fatalf("move with oversized index: %v", err)
	}
	if got := f.nodeByID(t, loose.ID); got.SortOrder != 2 {
		t.Fatalf("moved node order = %d, want 2", got.SortOrder)
	}
}

func TestCloneSubtreePreservesStructureWithFreshIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.mustCreate(t, "", model.NodeFolder, "api")
	req := f.mustCreate(t, root.ID, model.NodeRequest, "list users")
	def, err := f.store.GetRequestByNode(ctx, req.ID)
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	def.URL = "https://example.com/users"
	if err := f.store.PutRequest(ctx, def); err != nil {
		t.Fatalf("put definition: %v", err)
	}

	cloneRoot, err := f.svc.CloneSubtree(ctx, root.ID, "", f.project.ID, 9)
	if err != nil {
		t.Fatalf("clone subtree: %v", err)
	}

	if cloneRoot.ID == root.ID {
		t.Fatalf("clone reused source id")
	}
	if cloneRoot.Name != "api (copy)" {
		t.Fatalf("clone name = %q, want %q", cloneRoot.Name, "api (copy)")
	}
	if cloneRoot.SortOrder != 9 {
		t.Fatalf("clone sort order = %d, want 9", cloneRoot.SortOrder)
	}

	children, err := f.store.ListChildren(ctx, f.project.ID, cloneRoot.ID)
	if err != nil {
		t.Fatalf("list clone children: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected 1 cloned child, got %d", len(children))
	}
	child := children[0]
	if child.ID == req.ID {
		t.Fatalf("cloned child reused source id")
	}
	// Descendants keep their names; only the root gets the suffix.
	if child.Name != "list users" {
		t.Fatalf("cloned child name = %q", child.Name)
	}

	clonedDef, err := f.store.GetRequestByNode(ctx, child.ID)
	if err != nil {
		t.Fatalf("get cloned definition: %v", err)
	}
	if clonedDef.ID == def.ID {
		t.Fatalf("cloned definition reused source id")
	}
	if clonedDef.URL != "https://example.com/users" {
		t.Fatalf("cloned definition url = %q", clonedDef.URL)
	}

	// Mutating the clone leaves the source untouched.
	if err := f.svc.Rename(ctx, child.ID, "changed"); err != nil {
		t.Fatalf("rename clone child: %v", err)
	}
	if got := f.nodeByID(t, req.ID); got.Name != "list users" {
		t.Fatalf("source name changed to %q", got.Name)
	}
}

func TestCloneSubtreeMissingSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CloneSubtree(context.Background(), "nope", "", f.project.ID, 1)
	if !errdef.Is(err, errdef.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
