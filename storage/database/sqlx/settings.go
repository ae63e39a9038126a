package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kitabu/kitabu/core/settings"
)

type settingRow struct {
	Key       string      `db:"key"`
	Value     string      `db:"value"`
	UpdatedBy null.String `db:"updated_by"`
	UpdatedAt null.Time   `db:"updated_at"`
}

type settingsRepository struct {
	db *sqlx.DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo settingsRepository) unpack(row settingRow) settings.Setting {
	return settings.Setting{
		Key:       row.Key,
		Value:     row.Value,
		UpdatedBy: row.UpdatedBy.String,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (repo settingsRepository) GetSetting(ctx context.Context, key string) (settings.Setting, error) {
	var row settingRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM site_setting WHERE key = $1`, key); err != nil {
		if err == sql.ErrNoRows {
			return settings.Setting{}, settings.ErrNotFound
		}
		return settings.Setting{}, errors.Wrap(err, "finding setting")
	}
	return repo.unpack(row), nil
}

func (repo settingsRepository) QueryAllSettings(ctx context.Context) ([]settings.Setting, error) {
	var rows []settingRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM site_setting ORDER BY key ASC"); err != nil {
		return nil, errors.Wrap(err, "querying settings")
	}
	stgs := make([]settings.Setting, 0, len(rows))
	for _, row := range rows {
		stgs = append(stgs, repo.unpack(row))
	}
	return stgs, nil
}

func (repo settingsRepository) UpsertSetting(ctx context.Context, stg settings.Setting) (settings.Setting, error) {
	row := settingRow{
		Key:       stg.Key,
		Value:     stg.Value,
		UpdatedBy: null.NewString(stg.UpdatedBy, stg.UpdatedBy != ""),
		UpdatedAt: null.NewTime(stg.UpdatedAt.UTC(), !stg.UpdatedAt.IsZero()),
	}
	q := `INSERT INTO site_setting (key, value, updated_by, updated_at)
		VALUES (:key, :value, :updated_by, :updated_at)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return settings.Setting{}, errors.Wrap(err, "upserting setting")
	}
	return stg, nil
}

func (repo settingsRepository) DeleteSetting(ctx context.Context, key string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM site_setting WHERE key = $1", key)
	if err != nil {
		return errors.Wrap(err, "deleting setting")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return settings.ErrNotFound
	}
	return nil
}
