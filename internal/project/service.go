package project

import (
	"context"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
)

// Service owns the project lifecycle and request-definition saves. Deleting
// a project cascades to every record it owns.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) Create(ctx context.Context, name, description string) (model.Project, error) {
	trimmed, ok := model.ValidateName(name)
	if !ok {
		return model.Project{}, errdef.New(errdef.CodeValidation, "project name must be 1-120 characters")
	}

	now := model.Now()
	p := model.Project{
		ID:          uuid.NewString(),
		Name:        trimmed,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertProject(ctx, p); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *Service) Update(ctx context.Context, id, name, description string) error {
	trimmed, ok := model.ValidateName(name)
	if !ok {
		return errdef.New(errdef.CodeValidation, "project name must be 1-120 characters")
	}
	return s.store.UpdateProjectMeta(ctx, id, trimmed, description, model.Now())
}

// Delete removes the project and all of its nodes, request definitions,
// environments, settings and history in one transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetProject(ctx, id); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteProjectCascade(ctx, id)
	})
}

// SaveRequest replaces a stored definition and propagates the touch to the
// owning node and project so the project list surfaces recent activity.
func (s *Service) SaveRequest(ctx context.Context, def model.RequestDefinition) (model.RequestDefinition, error) {
	if _, err := s.store.GetRequest(ctx, def.ID); err != nil {
		return model.RequestDefinition{}, err
	}

	now := model.Now()
	def.UpdatedAt = now
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutRequest(ctx, def); err != nil {
			return err
		}
		if err := tx.TouchNode(ctx, def.NodeID, now); err != nil {
			return err
		}
		return tx.TouchProject(ctx, def.ProjectID, now)
	})
	if err != nil {
		return model.RequestDefinition{}, err
	}
	return def, nil
}

func (s *Service) RequestByNode(ctx context.Context, nodeID string) (model.RequestDefinition, error) {
	return s.store.GetRequestByNode(ctx, nodeID)
}
