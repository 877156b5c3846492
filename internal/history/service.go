package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/store"
)

const (
	defaultLimit  = 200
	snippetMaxLen = 512
)

// Service records executed requests and serves the per-project run log,
// newest first, pruned to a configured limit.
type Service struct {
	store *store.Store
	limit int
}

func NewService(st *store.Store, limit int) *Service {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Service{store: st, limit: limit}
}

// Record persists one execution outcome. Body and error text are capped to
// a short snippet; full payloads live only in the in-memory result slot.
func (s *Service) Record(ctx context.Context, def model.RequestDefinition, result model.RunResult) error {
	entry := store.HistoryEntry{
		ID:          uuid.NewString(),
		ProjectID:   def.ProjectID,
		NodeID:      def.NodeID,
		RequestName: def.Name,
		Method:      def.Method,
		URL:         def.URL,
		Status:      result.Status,
		DurationMs:  result.DurationMs,
		Error:       snippet(result.Error),
		BodySnippet: snippet(result.Body),
		ExecutedAt:  model.Now(),
	}

	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertHistory(ctx, entry); err != nil {
			return err
		}
		return tx.PruneHistory(ctx, def.ProjectID, s.limit)
	})
}

func (s *Service) List(ctx context.Context, projectID string) ([]store.HistoryEntry, error) {
	return s.store.ListHistoryByProject(ctx, projectID, s.limit)
}

func snippet(text string) string {
	if len(text) <= snippetMaxLen {
		return text
	}
	return text[:snippetMaxLen]
}
