package transfer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
)

const DocumentVersion = 1

// Document is the portable project snapshot written by Export and accepted
// by Import.
type Document struct {
	Version         int                       `json:"version"`
	ExportedAt      int64                     `json:"exportedAt"`
	Project         model.Project             `json:"project"`
	Nodes           []model.TreeNode          `json:"nodes"`
	APIItems        []model.RequestDefinition `json:"apiItems"`
	Environments    []model.Environment       `json:"environments,omitempty"`
	ProjectSettings *model.ProjectSettings    `json:"projectSettings,omitempty"`
}

// Codec serializes a project with its tree and requests to a portable JSON
// document and back. Import always regenerates identifiers so an imported
// project never collides with existing data.
type Codec struct {
	store *store.Store
}

func NewCodec(st *store.Store) *Codec {
	return &Codec{store: st}
}

// Export emits the current snapshot of a project verbatim, ids included.
func (c *Codec) Export(ctx context.Context, projectID string) ([]byte, error) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	nodes, err := c.store.ListNodesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items, err := c.store.ListRequestsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	environments, err := c.store.ListEnvironmentsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	settings, found, err := c.store.GetSettingsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	doc := Document{
		Version:      DocumentVersion,
		ExportedAt:   model.Now(),
		Project:      project,
		Nodes:        emptyIfNil(nodes),
		APIItems:     emptyIfNil(items),
		Environments: environments,
	}
	if found {
		doc.ProjectSettings = &settings
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "encode export document")
	}
	return data, nil
}

var fileNameSpaces = regexp.MustCompile(`\s+`)

// ExportFileName renders the conventional download name for a project:
// spaces collapse to hyphens, suffixed with ".apiuse.json".
func ExportFileName(p model.Project) string {
	name := fileNameSpaces.ReplaceAllString(strings.TrimSpace(p.Name), "-")
	if name == "" {
		name = "project"
	}
	return name + ".apiuse.json"
}

// importPayload mirrors Document with pointer collections so a missing array
// can be told apart from an empty one during validation.
type importPayload struct {
	Version         *int                       `json:"version"`
	Project         *model.Project             `json:"project"`
	Nodes           *[]model.TreeNode          `json:"nodes"`
	APIItems        *[]model.RequestDefinition `json:"apiItems"`
	Environments    []model.Environment        `json:"environments"`
	ProjectSettings *model.ProjectSettings     `json:"projectSettings"`
}

// Import validates the document, regenerates every identifier (remapping
// parent and node references consistently) and persists the rebuilt project
// in one transaction. Nothing is written when validation fails.
func (c *Codec) Import(ctx context.Context, data []byte) (model.Project, error) {
	var payload importPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return model.Project{}, errdef.Wrap(errdef.CodeInvalidFormat, err, "parse import document")
	}
	if payload.Version == nil || *payload.Version != DocumentVersion {
		return model.Project{}, errdef.New(errdef.CodeInvalidFormat, "unsupported document version")
	}
	if payload.Project == nil || payload.Nodes == nil || payload.APIItems == nil {
		return model.Project{}, errdef.New(errdef.CodeInvalidFormat, "document is missing project, nodes or apiItems")
	}

	now := model.Now()
	oldProjectID := payload.Project.ID

	project := *payload.Project
	project.ID = uuid.NewString()
	project.Name = project.Name + " (imported)"
	project.CreatedAt = now
	project.UpdatedAt = now

	nodeIDMap := make(map[string]string)
	var sourceNodes []model.TreeNode
	for _, node := range *payload.Nodes {
		if node.ProjectID != oldProjectID {
			continue
		}
		sourceNodes = append(sourceNodes, node)
		nodeIDMap[node.ID] = uuid.NewString()
	}

	rebuiltNodes := make([]model.TreeNode, 0, len(sourceNodes))
	for _, node := range sourceNodes {
		node.ID = nodeIDMap[node.ID]
		node.ProjectID = project.ID
		if node.ParentID != "" {
			node.ParentID = nodeIDMap[node.ParentID]
		}
		node.CreatedAt = now
		node.UpdatedAt = now
		rebuiltNodes = append(rebuiltNodes, node)
	}

	var rebuiltItems []model.RequestDefinition
	for _, item := range *payload.APIItems {
		if item.ProjectID != oldProjectID {
			continue
		}
		item.ID = uuid.NewString()
		item.ProjectID = project.ID
		if mapped, ok := nodeIDMap[item.NodeID]; ok {
			item.NodeID = mapped
		}
		item.UpdatedAt = now
		rebuiltItems = append(rebuiltItems, item)
	}

	envIDMap := make(map[string]string)
	var rebuiltEnvs []model.Environment
	for _, env := range payload.Environments {
		if env.ProjectID != oldProjectID {
			continue
		}
		envIDMap[env.ID] = uuid.NewString()
		env.ID = envIDMap[env.ID]
		env.ProjectID = project.ID
		env.CreatedAt = now
		env.UpdatedAt = now
		rebuiltEnvs = append(rebuiltEnvs, env)
	}

	var rebuiltSettings *model.ProjectSettings
	if payload.ProjectSettings != nil {
		settings := *payload.ProjectSettings
		settings.ID = uuid.NewString()
		settings.ProjectID = project.ID
		settings.ActiveEnvID = envIDMap[settings.ActiveEnvID]
		settings.UpdatedAt = now
		rebuiltSettings = &settings
	}

	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertProject(ctx, project); err != nil {
			return err
		}
		for _, node := range rebuiltNodes {
			if err := tx.InsertNode(ctx, node); err != nil {
				return err
			}
		}
		for _, item := range rebuiltItems {
			if err := tx.InsertRequest(ctx, item); err != nil {
				return err
			}
		}
		for _, env := range rebuiltEnvs {
			if err := tx.InsertEnvironment(ctx, env); err != nil {
				return err
			}
		}
		if rebuiltSettings != nil {
			return tx.PutSettings(ctx, *rebuiltSettings)
		}
		return nil
	})
	if err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
