package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/lead"
)

type leadRepository struct {
	db *leadTable

	qualifyingScore int
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *DB, qualifyingScore int) *leadRepository {
	return &leadRepository{db: db.lead, qualifyingScore: qualifyingScore}
}

func (repo *leadRepository) query() []lead.Lead {
	leads := make([]lead.Lead, 0, len(repo.db.table))
	for _, led := range repo.db.table {
		leads = append(leads, *led)
	}
	return leads
}

func (repo *leadRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excludedLeads ...lead.Lead) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedLeads))
	for _, led := range excludedLeads {
		excluded[led.ID] = true
	}

	for _, led := range repo.query() {
		if led.Phone == phone && !excluded[led.ID] {
			return lead.ErrPhoneExists
		}
	}
	return nil
}

func (repo *leadRepository) CreateLead(ctx context.Context, led lead.Lead) (lead.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	led.ID = uuid.New().String()
	repo.db.table[led.ID] = &led
	return led, nil
}

func (repo *leadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if led, ok := repo.db.table[id]; ok {
		return *led, nil
	}
	return lead.Lead{}, lead.ErrNotFound
}

func (repo *leadRepository) QueryLeads(
	ctx context.Context,
	filter *lead.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]lead.Lead, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	leads := repo.query()

	if filter != nil {
		var filtered []lead.Lead
		for _, led := range leads {
			if filter.Search != "" &&
				!containsFold(led.ParentName, filter.Search) && !containsFold(led.ChildName, filter.Search) &&
				!containsFold(led.Email, filter.Search) && !containsFold(led.Phone, filter.Search) {
				continue
			}
			if filter.Status != "" && led.Status != filter.Status {
				continue
			}
			switch filter.ScoreFilter {
			case "qualified":
				if !led.Qualified(repo.qualifyingScore) {
					continue
				}
			case "not_qualified":
				if led.Score == nil || *led.Score >= repo.qualifyingScore {
					continue
				}
			}
			if filter.Source != "" && led.Source != filter.Source {
				continue
			}
			if !filter.CreatedFrom.IsZero() && led.CreatedAt.Before(filter.CreatedFrom) {
				continue
			}
			if !filter.CreatedTo.IsZero() && led.CreatedAt.After(filter.CreatedTo) {
				continue
			}
			filtered = append(filtered, led)
		}
		leads = filtered
	}

	// newest first
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })

	paged, total := paginate(leads, page)
	return paged, total, nil
}

func (repo *leadRepository) UpdateLead(ctx context.Context, led lead.Lead) (lead.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[led.ID]; !ok {
		return lead.Lead{}, lead.ErrNotFound
	}
	repo.db.table[led.ID] = &led
	return led, nil
}
