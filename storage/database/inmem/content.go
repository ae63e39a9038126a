package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/content"
)

type contentRepository struct {
	db *contentTable
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) *contentRepository {
	return &contentRepository{db: db.content}
}

func (repo *contentRepository) CreateItem(ctx context.Context, itm content.Item) (content.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	itm.ID = uuid.New().String()
	repo.db.table[itm.ID] = &itm
	return itm, nil
}

func (repo *contentRepository) GetItem(ctx context.Context, id string) (content.Item, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if itm, ok := repo.db.table[id]; ok {
		return *itm, nil
	}
	return content.Item{}, content.ErrNotFound
}

func (repo *contentRepository) QueryItems(
	ctx context.Context,
	filter *content.QueryFilter,
	page core.Pagination,
) ([]content.Item, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	items := make([]content.Item, 0, len(repo.db.table))
	for _, itm := range repo.db.table {
		items = append(items, *itm)
	}

	if filter != nil {
		var filtered []content.Item
		for _, itm := range items {
			if filter.Search != "" && !containsFold(itm.Title, filter.Search) {
				continue
			}
			if filter.Kind != "" && itm.Kind != filter.Kind {
				continue
			}
			if filter.AgeBand != "" && itm.AgeBand != filter.AgeBand {
				continue
			}
			if filter.Published != nil && itm.Published != *filter.Published {
				continue
			}
			filtered = append(filtered, itm)
		}
		items = filtered
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	paged, total := paginate(items, page)
	return paged, total, nil
}

func (repo *contentRepository) UpdateItem(ctx context.Context, itm content.Item) (content.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[itm.ID]; !ok {
		return content.Item{}, content.ErrNotFound
	}
	repo.db.table[itm.ID] = &itm
	return itm, nil
}

func (repo *contentRepository) DeleteItem(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return content.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
