package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/coach"
)

type coachRepository struct {
	coaches *coachTable
	groups  *groupTable
}

var _ coach.Repository = (*coachRepository)(nil) // interface compliance check

func NewCoachRepository(db *DB) *coachRepository {
	return &coachRepository{coaches: db.coach, groups: db.group}
}

func (repo *coachRepository) query() []coach.Coach {
	coaches := make([]coach.Coach, 0, len(repo.coaches.table))
	for _, cch := range repo.coaches.table {
		coaches = append(coaches, *cch)
	}
	return coaches
}

func (repo *coachRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedCoaches ...coach.Coach) error {
	repo.coaches.RLock()
	defer repo.coaches.RUnlock()

	excluded := make(map[string]bool, len(excludedCoaches))
	for _, cch := range excludedCoaches {
		excluded[cch.ID] = true
	}

	for _, cch := range repo.query() {
		if cch.Email == email && !excluded[cch.ID] {
			return coach.ErrEmailExists
		}
	}
	return nil
}

func (repo *coachRepository) CreateCoach(ctx context.Context, cch coach.Coach) (coach.Coach, error) {
	repo.coaches.Lock()
	defer repo.coaches.Unlock()

	cch.ID = uuid.New().String()
	repo.coaches.table[cch.ID] = &cch
	return cch, nil
}

func (repo *coachRepository) GetCoach(ctx context.Context, id string) (coach.Coach, error) {
	repo.coaches.RLock()
	defer repo.coaches.RUnlock()

	if cch, ok := repo.coaches.table[id]; ok {
		return *cch, nil
	}
	return coach.Coach{}, coach.ErrNotFound
}

func (repo *coachRepository) QueryCoaches(ctx context.Context, filter *coach.QueryFilter, ordering []core.DBOrdering) ([]coach.Coach, error) {
	repo.coaches.RLock()
	defer repo.coaches.RUnlock()

	coaches := repo.query()

	if filter != nil {
		var filtered []coach.Coach
		for _, cch := range coaches {
			if filter.Search != "" && !containsFold(cch.Name, filter.Search) && !containsFold(cch.Email, filter.Search) {
				continue
			}
			if filter.GroupID != "" && cch.GroupID != filter.GroupID {
				continue
			}
			if filter.IsAvailable != nil && cch.IsAvailable != *filter.IsAvailable {
				continue
			}
			if filter.IsInternal != nil && cch.IsInternal != *filter.IsInternal {
				continue
			}
			filtered = append(filtered, cch)
		}
		coaches = filtered
	}

	sort.Slice(coaches, func(i, j int) bool { return coaches[i].Name < coaches[j].Name })
	return coaches, nil
}

func (repo *coachRepository) UpdateCoach(ctx context.Context, cch coach.Coach) (coach.Coach, error) {
	repo.coaches.Lock()
	defer repo.coaches.Unlock()

	if _, ok := repo.coaches.table[cch.ID]; !ok {
		return coach.Coach{}, coach.ErrNotFound
	}
	repo.coaches.table[cch.ID] = &cch
	return cch, nil
}

func (repo *coachRepository) CreateGroup(ctx context.Context, grp coach.Group) (coach.Group, error) {
	repo.groups.Lock()
	defer repo.groups.Unlock()

	grp.ID = uuid.New().String()
	repo.groups.table[grp.ID] = &grp
	return grp, nil
}

func (repo *coachRepository) GetGroup(ctx context.Context, id string) (coach.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	if grp, ok := repo.groups.table[id]; ok {
		return *grp, nil
	}
	return coach.Group{}, coach.ErrGroupNotFound
}

func (repo *coachRepository) QueryAllGroups(ctx context.Context) ([]coach.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	groups := make([]coach.Group, 0, len(repo.groups.table))
	for _, grp := range repo.groups.table {
		groups = append(groups, *grp)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (repo *coachRepository) UpdateGroup(ctx context.Context, grp coach.Group) (coach.Group, error) {
	repo.groups.Lock()
	defer repo.groups.Unlock()

	if _, ok := repo.groups.table[grp.ID]; !ok {
		return coach.Group{}, coach.ErrGroupNotFound
	}
	repo.groups.table[grp.ID] = &grp
	return grp, nil
}

func (repo *coachRepository) DeleteGroup(ctx context.Context, id string) error {
	repo.groups.Lock()
	defer repo.groups.Unlock()

	if _, ok := repo.groups.table[id]; !ok {
		return coach.ErrGroupNotFound
	}
	delete(repo.groups.table, id)
	return nil
}
