package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/content"
)

type contentRow struct {
	ID        string      `db:"id"`
	Title     string      `db:"title"`
	Kind      string      `db:"kind"`
	URL       string      `db:"url"`
	AgeBand   null.String `db:"age_band"`
	Published bool        `db:"published"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sqlx.DB) *contentRepository {
	return &contentRepository{db: db}
}

func (repo contentRepository) pack(itm content.Item) contentRow {
	return contentRow{
		ID:        itm.ID,
		Title:     itm.Title,
		Kind:      itm.Kind,
		URL:       itm.URL,
		AgeBand:   null.NewString(itm.AgeBand, itm.AgeBand != ""),
		Published: itm.Published,
		CreatedAt: null.NewTime(itm.CreatedAt.UTC(), !itm.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(itm.UpdatedAt.UTC(), !itm.UpdatedAt.IsZero()),
	}
}

func (repo contentRepository) unpack(row contentRow) content.Item {
	return content.Item{
		ID:        row.ID,
		Title:     row.Title,
		Kind:      row.Kind,
		URL:       row.URL,
		AgeBand:   row.AgeBand.String,
		Published: row.Published,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (repo contentRepository) CreateItem(ctx context.Context, itm content.Item) (content.Item, error) {
	itm.ID = uuid.New().String()
	row := repo.pack(itm)
	q := `INSERT INTO content_item (id, title, kind, url, age_band, published, created_at, updated_at)
		VALUES (:id, :title, :kind, :url, :age_band, :published, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return content.Item{}, errors.Wrap(err, "inserting content item")
	}
	return itm, nil
}

func (repo contentRepository) GetItem(ctx context.Context, id string) (content.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return content.Item{}, content.ErrNotFound
	}
	var row contentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM content_item WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return content.Item{}, content.ErrNotFound
		}
		return content.Item{}, errors.Wrap(err, "finding content item by ID")
	}
	return repo.unpack(row), nil
}

func (repo contentRepository) QueryItems(
	ctx context.Context,
	filter *content.QueryFilter,
	page core.Pagination,
) ([]content.Item, int, error) {
	qb := new(queryBuilder)

	if filter != nil {
		if filter.Search != "" {
			qb.where("title ILIKE ?", "%"+filter.Search+"%")
		}
		if filter.Kind != "" {
			qb.where("kind = ?", filter.Kind)
		}
		if filter.AgeBand != "" {
			qb.where("age_band = ?", filter.AgeBand)
		}
		if filter.Published != nil {
			qb.where("published = ?", *filter.Published)
		}
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM content_item"+qb.clause(), qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting content items")
	}

	q := "SELECT * FROM content_item" + qb.clause() + " ORDER BY created_at DESC" + qb.paginate(page)
	var rows []contentRow
	if err := repo.db.SelectContext(ctx, &rows, q, qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying content items")
	}

	items := make([]content.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, repo.unpack(row))
	}
	return items, total, nil
}

func (repo contentRepository) UpdateItem(ctx context.Context, itm content.Item) (content.Item, error) {
	row := repo.pack(itm)
	q := `UPDATE content_item SET
			title = :title, kind = :kind, url = :url, age_band = :age_band,
			published = :published, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return content.Item{}, errors.Wrap(err, "updating content item")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return content.Item{}, content.ErrNotFound
	}
	return itm, nil
}

func (repo contentRepository) DeleteItem(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return content.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM content_item WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting content item")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return content.ErrNotFound
	}
	return nil
}
