package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/client/repositories/metadata"
)

const metadataKey = "identity"

type metadataStore struct {
	repo metadata.Repository
}

// NewMetadataStore keeps the identity as JSON in the metadata table.
func NewMetadataStore(repo metadata.Repository) Store {
	return &metadataStore{repo: repo}
}

func (s *metadataStore) Load(ctx context.Context) (models.Identity, error) {
	raw, err := s.repo.Get(ctx, metadataKey)
	if err != nil {
		return models.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	if raw == nil {
		return models.Identity{}, ErrNoIdentity
	}

	var id models.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return models.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if err := id.Validate(); err != nil {
		return models.Identity{}, fmt.Errorf("stored identity: %w", err)
	}
	return id, nil
}

func (s *metadataStore) Save(ctx context.Context, id models.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, metadataKey, raw); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *metadataStore) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, metadataKey); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}
