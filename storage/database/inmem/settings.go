package inmemdb

import (
	"context"
	"sort"

	"github.com/kitabu/kitabu/core/settings"
)

type settingsRepository struct {
	db *settingTable
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db.setting}
}

func (repo *settingsRepository) GetSetting(ctx context.Context, key string) (settings.Setting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stg, ok := repo.db.table[key]; ok {
		return *stg, nil
	}
	return settings.Setting{}, settings.ErrNotFound
}

func (repo *settingsRepository) QueryAllSettings(ctx context.Context) ([]settings.Setting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stgs := make([]settings.Setting, 0, len(repo.db.table))
	for _, stg := range repo.db.table {
		stgs = append(stgs, *stg)
	}
	sort.Slice(stgs, func(i, j int) bool { return stgs[i].Key < stgs[j].Key })
	return stgs, nil
}

func (repo *settingsRepository) UpsertSetting(ctx context.Context, stg settings.Setting) (settings.Setting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[stg.Key] = &stg
	return stg, nil
}

func (repo *settingsRepository) DeleteSetting(ctx context.Context, key string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[key]; !ok {
		return settings.ErrNotFound
	}
	delete(repo.db.table, key)
	return nil
}
