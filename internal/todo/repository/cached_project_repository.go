package repository

import (
	"time"

	"todo-assist-backend/internal/todo/domain"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

const projectCacheSize = 1024

// cachedProjectRepository fronts FindAll with a per-user expirable LRU.
// Writes through this repository evict the user's entry.
type cachedProjectRepository struct {
	ProjectRepository
	cache *expirable.LRU[string, []*domain.Project]
}

// NewCachedProjectRepository wraps next with a cache whose entries live for ttl
func NewCachedProjectRepository(next ProjectRepository, ttl time.Duration) ProjectRepository {
	return &cachedProjectRepository{
		ProjectRepository: next,
		cache:             expirable.NewLRU[string, []*domain.Project](projectCacheSize, nil, ttl),
	}
}

func (r *cachedProjectRepository) FindAll(userID string) ([]*domain.Project, error) {
	if cached, ok := r.cache.Get(userID); ok {
		return cached, nil
	}
	projects, err := r.ProjectRepository.FindAll(userID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(userID, projects)
	return projects, nil
}

func (r *cachedProjectRepository) UpsertByName(userID, name string) (*domain.Project, error) {
	project, err := r.ProjectRepository.UpsertByName(userID, name)
	r.cache.Remove(userID)
	return project, err
}

// WithTx bypasses the cache; the caller invalidates after commit
func (r *cachedProjectRepository) WithTx(tx *gorm.DB) ProjectRepository {
	return r.ProjectRepository.WithTx(tx)
}

// Invalidate drops the cached project list of userID
func (r *cachedProjectRepository) Invalidate(userID string) {
	r.cache.Remove(userID)
}

// Invalidator is implemented by project repositories that cache
type Invalidator interface {
	Invalidate(userID string)
}
