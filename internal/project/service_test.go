package project

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
	"github.com/unkn0wn-root/apiuse/internal/tree"
)

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "apiuse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st), st
}

func TestCreateAndListProjects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "  billing  ", "invoices and payments")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "billing" {
		t.Fatalf("name = %q", p.Name)
	}

	if _, err := svc.Create(ctx, "   ", ""); !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	projects, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != p.ID {
		t.Fatalf("projects = %+v", projects)
	}
}

func TestUpdateProjectMeta(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "old", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Update(ctx, p.ID, "new", "desc"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "new" || got.Description != "desc" {
		t.Fatalf("meta = %+v", got)
	}

	if err := svc.Update(ctx, "missing", "x", ""); !errdef.Is(err, errdef.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDeleteMissingProject(t *testing.T) {
	svc, _ := newService(t)
	if err := svc.Delete(context.Background(), "missing"); !errdef.Is(err, errdef.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSaveRequestTouchesNodeAndProject(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "api", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	node, err := tree.NewService(st).CreateNode(ctx, p.ID, "", model.NodeRequest, "ping")
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	def, err := svc.RequestByNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("request by node: %v", err)
	}

	def.Method = "POST"
	def.URL = "https://example.com"
	saved, err := svc.SaveRequest(ctx, def)
	if err != nil {
		t.Fatalf("save request: %v", err)
	}
	if saved.UpdatedAt < def.UpdatedAt || saved.Method != "POST" {
		t.Fatalf("saved = %+v", saved)
	}

	got, err := svc.RequestByNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if got.Method != "POST" || got.URL != "https://example.com" {
		t.Fatalf("reloaded = %+v", got)
	}

	touchedNode, err := st.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if touchedNode.UpdatedAt < node.UpdatedAt {
		t.Fatalf("node not touched")
	}
	touchedProject, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if touchedProject.UpdatedAt < p.UpdatedAt {
		t.Fatalf("project not touched")
	}
}

func TestSaveRequestUnknownDefinition(t *testing.T) {
	svc, _ := newService(t)
	def := model.DefaultRequestDefinition("p", "n", "x", model.Now())
	def.ID = "missing"
	if _, err := svc.SaveRequest(context.Background(), def); !errdef.Is(err, errdef.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
