package envsvc

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
	"github.com/unkn0wn-root/apiuse/internal/vars"
)

// Service manages a project's named environments, the single active
// environment selection and the project-wide global header list.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) List(ctx context.Context, projectID string) ([]model.Environment, error) {
	return s.store.ListEnvironmentsByProject(ctx, projectID)
}

// Add creates an empty environment. Names collide case-insensitively within
// a project.
func (s *Service) Add(ctx context.Context, projectID, name string) (model.Environment, error) {
	trimmed, ok := model.ValidateName(name)
	if !ok {
		return model.Environment{}, errdef.New(errdef.CodeValidation, "environment name must be 1-120 characters")
	}

	existing, err := s.store.ListEnvironmentsByProject(ctx, projectID)
	if err != nil {
		return model.Environment{}, err
	}
	for _, env := range existing {
		if strings.EqualFold(env.Name, trimmed) {
			return model.Environment{}, errdef.New(errdef.CodeDuplicateName, "environment %q already exists", trimmed)
		}
	}

	now := model.Now()
	env := model.Environment{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      trimmed,
		Variables: []model.KV{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertEnvironment(ctx, env); err != nil {
		return model.Environment{}, err
	}
	return env, nil
}

// Remove deletes an environment. Removing the active one clears the
// project's active selection in the same transaction.
func (s *Service) Remove(ctx context.Context, envID string) error {
	env, err := s.store.GetEnvironment(ctx, envID)
	if err != nil {
		return err
	}

	settings, err := s.Settings(ctx, env.ProjectID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteEnvironment(ctx, envID); err != nil {
			return err
		}
		if settings.ActiveEnvID == envID {
			settings.ActiveEnvID = ""
			settings.UpdatedAt = model.Now()
			return tx.PutSettings(ctx, settings)
		}
		return nil
	})
}

// Save fully replaces an environment's variable list.
func (s *Service) Save(ctx context.Context, env model.Environment) (model.Environment, error) {
	env.UpdatedAt = model.Now()
	if err := s.store.PutEnvironment(ctx, env); err != nil {
		return model.Environment{}, err
	}
	return env, nil
}

// Settings returns the project's settings, creating empty defaults the first
// time they are read.
func (s *Service) Settings(ctx context.Context, projectID string) (model.ProjectSettings, error) {
	settings, found, err := s.store.GetSettingsByProject(ctx, projectID)
	if err != nil {
		return model.ProjectSettings{}, err
	}
	if found {
		return settings, nil
	}

	settings = model.ProjectSettings{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		GlobalHeaders: []model.KV{},
		UpdatedAt:     model.Now(),
	}
	if err := s.store.PutSettings(ctx, settings); err != nil {
		return model.ProjectSettings{}, err
	}
	return settings, nil
}

// SetActiveEnvironment switches which environment Resolver consults. An
// empty envID clears the selection.
func (s *Service) SetActiveEnvironment(ctx context.Context, projectID, envID string) error {
	if envID != "" {
		env, err := s.store.GetEnvironment(ctx, envID)
		if err != nil {
			return err
		}
		if env.ProjectID != projectID {
			return errdef.New(errdef.CodeValidation, "environment %s belongs to another project", envID)
		}
	}

	settings, err := s.Settings(ctx, projectID)
	if err != nil {
		return err
	}
	settings.ActiveEnvID = envID
	settings.UpdatedAt = model.Now()
	return s.store.PutSettings(ctx, settings)
}

// SetGlobalHeaders replaces the project-wide header list merged into every
// executed request below request-level headers.
func (s *Service) SetGlobalHeaders(ctx context.Context, projectID string, headers []model.KV) error {
	settings, err := s.Settings(ctx, projectID)
	if err != nil {
		return err
	}
	settings.GlobalHeaders = model.CloneKVs(headers)
	settings.UpdatedAt = model.Now()
	return s.store.PutSettings(ctx, settings)
}

// Resolver builds a placeholder resolver over the project's active
// environment. With no active environment the resolver resolves nothing and
// leaves placeholders untouched.
func (s *Service) Resolver(ctx context.Context, projectID string) (*vars.Resolver, error) {
	settings, err := s.Settings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if settings.ActiveEnvID == "" {
		return vars.NewResolver(), nil
	}

	env, err := s.store.GetEnvironment(ctx, settings.ActiveEnvID)
	if errdef.Is(err, errdef.CodeNotFound) {
		return vars.NewResolver(), nil
	}
	if err != nil {
		return nil, err
	}
	return vars.NewResolver(vars.NewEnvironmentProvider(&env)), nil
}
