package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/coach"
)

type coachRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Email       string      `db:"email"`
	Phone       null.String `db:"phone"`
	GroupID     string      `db:"group_id"`
	IsInternal  bool        `db:"is_internal"`
	IsAvailable bool        `db:"is_available"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type windowRow struct {
	CoachID     string `db:"coach_id"`
	Weekday     int    `db:"weekday"`
	StartMinute int    `db:"start_minute"`
	EndMinute   int    `db:"end_minute"`
}

type groupRow struct {
	ID                 string    `db:"id"`
	Name               string    `db:"name"`
	LeadCostPercent    int       `db:"lead_cost_percent"`
	CoachCostPercent   int       `db:"coach_cost_percent"`
	PlatformFeePercent int       `db:"platform_fee_percent"`
	CreatedAt          null.Time `db:"created_at"`
	UpdatedAt          null.Time `db:"updated_at"`
}

type coachRepository struct {
	db *sqlx.DB
}

var _ coach.Repository = (*coachRepository)(nil) // interface compliance check

func NewCoachRepository(db *sqlx.DB) *coachRepository {
	return &coachRepository{db: db}
}

func (repo coachRepository) pack(cch coach.Coach) coachRow {
	return coachRow{
		ID:          cch.ID,
		Name:        cch.Name,
		Email:       cch.Email,
		Phone:       null.NewString(cch.Phone, cch.Phone != ""),
		GroupID:     cch.GroupID,
		IsInternal:  cch.IsInternal,
		IsAvailable: cch.IsAvailable,
		CreatedAt:   null.NewTime(cch.CreatedAt.UTC(), !cch.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(cch.UpdatedAt.UTC(), !cch.UpdatedAt.IsZero()),
	}
}

func (repo coachRepository) unpack(row coachRow, windows []coach.AvailabilityWindow) coach.Coach {
	return coach.Coach{
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone.String,
		GroupID:     row.GroupID,
		IsInternal:  row.IsInternal,
		IsAvailable: row.IsAvailable,
		Windows:     windows,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo coachRepository) packGroup(grp coach.Group) groupRow {
	return groupRow{
		ID:                 grp.ID,
		Name:               grp.Name,
		LeadCostPercent:    grp.LeadCostPercent,
		CoachCostPercent:   grp.CoachCostPercent,
		PlatformFeePercent: grp.PlatformFeePercent,
		CreatedAt:          null.NewTime(grp.CreatedAt.UTC(), !grp.CreatedAt.IsZero()),
		UpdatedAt:          null.NewTime(grp.UpdatedAt.UTC(), !grp.UpdatedAt.IsZero()),
	}
}

func (repo coachRepository) unpackGroup(row groupRow) coach.Group {
	return coach.Group{
		ID:                 row.ID,
		Name:               row.Name,
		LeadCostPercent:    row.LeadCostPercent,
		CoachCostPercent:   row.CoachCostPercent,
		PlatformFeePercent: row.PlatformFeePercent,
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to the given not-found error
func (repo coachRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo coachRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedCoaches ...coach.Coach) error {
	qb := new(queryBuilder)
	qb.where("email = ?", email)
	if len(excludedCoaches) > 0 {
		ids := make([]string, 0, len(excludedCoaches))
		for _, cch := range excludedCoaches {
			ids = append(ids, cch.ID)
		}
		qb.where("NOT (id = ANY(?))", pq.Array(ids))
	}

	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM coach" + qb.clause() + ")"
	if err := repo.db.GetContext(ctx, &exists, q, qb.args...); err != nil {
		return errors.Wrap(err, "checking coach uniqueness")
	}
	if exists {
		return coach.ErrEmailExists
	}
	return nil
}

func (repo coachRepository) CreateCoach(ctx context.Context, cch coach.Coach) (coach.Coach, error) {
	cch.ID = uuid.New().String()
	row := repo.pack(cch)

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return coach.Coach{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO coach (id, name, email, phone, group_id, is_internal, is_available, created_at, updated_at)
		VALUES (:id, :name, :email, :phone, :group_id, :is_internal, :is_available, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
		return coach.Coach{}, errors.Wrap(err, "inserting coach")
	}
	if err = repo.insertWindows(ctx, tx, cch.ID, cch.Windows); err != nil {
		return coach.Coach{}, err
	}

	if err = tx.Commit(); err != nil {
		return coach.Coach{}, errors.Wrap(err, "committing tx")
	}
	return cch, nil
}

func (repo coachRepository) insertWindows(ctx context.Context, tx *sqlx.Tx, coachID string, windows []coach.AvailabilityWindow) error {
	if len(windows) == 0 {
		return nil
	}
	rows := make([]windowRow, 0, len(windows))
	for _, w := range windows {
		rows = append(rows, windowRow{
			CoachID:     coachID,
			Weekday:     int(w.Weekday),
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
		})
	}
	q := `INSERT INTO coach_window (coach_id, weekday, start_minute, end_minute)
		VALUES (:coach_id, :weekday, :start_minute, :end_minute)`
	if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
		return errors.Wrap(err, "inserting coach windows")
	}
	return nil
}

func (repo coachRepository) queryWindows(ctx context.Context, coachIDs []string) (map[string][]coach.AvailabilityWindow, error) {
	var rows []windowRow
	q := "SELECT coach_id, weekday, start_minute, end_minute FROM coach_window WHERE coach_id = ANY($1) ORDER BY weekday, start_minute"
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(coachIDs)); err != nil {
		return nil, errors.Wrap(err, "querying coach windows")
	}

	windows := make(map[string][]coach.AvailabilityWindow, len(coachIDs))
	for _, row := range rows {
		windows[row.CoachID] = append(windows[row.CoachID], coach.AvailabilityWindow{
			Weekday:     time.Weekday(row.Weekday),
			StartMinute: row.StartMinute,
			EndMinute:   row.EndMinute,
		})
	}
	return windows, nil
}

func (repo coachRepository) GetCoach(ctx context.Context, id string) (coach.Coach, error) {
	if _, err := uuid.Parse(id); err != nil {
		return coach.Coach{}, coach.ErrNotFound
	}
	var row coachRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM coach WHERE id = $1", id); err != nil {
		return coach.Coach{}, repo.trapNoRowsErr(err, coach.ErrNotFound, "finding coach by ID")
	}
	windows, err := repo.queryWindows(ctx, []string{id})
	if err != nil {
		return coach.Coach{}, err
	}
	return repo.unpack(row, windows[id]), nil
}

func (repo coachRepository) QueryCoaches(ctx context.Context, filter *coach.QueryFilter, ordering []core.DBOrdering) ([]coach.Coach, error) {
	qb := new(queryBuilder)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb.where("(name ILIKE ? OR email ILIKE ?)", val, val)
		}
		if filter.GroupID != "" {
			qb.where("group_id = ?", filter.GroupID)
		}
		if filter.IsAvailable != nil {
			qb.where("is_available = ?", *filter.IsAvailable)
		}
		if filter.IsInternal != nil {
			qb.where("is_internal = ?", *filter.IsInternal)
		}
	}

	q := "SELECT * FROM coach" + qb.clause() + orderClause(ordering, "name ASC")
	var rows []coachRow
	if err := repo.db.SelectContext(ctx, &rows, q, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying coaches")
	}
	if len(rows) == 0 {
		return []coach.Coach{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	windows, err := repo.queryWindows(ctx, ids)
	if err != nil {
		return nil, err
	}

	coaches := make([]coach.Coach, 0, len(rows))
	for _, row := range rows {
		coaches = append(coaches, repo.unpack(row, windows[row.ID]))
	}
	return coaches, nil
}

func (repo coachRepository) UpdateCoach(ctx context.Context, cch coach.Coach) (coach.Coach, error) {
	row := repo.pack(cch)

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return coach.Coach{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	q := `UPDATE coach SET
			name = :name, email = :email, phone = :phone, group_id = :group_id,
			is_internal = :is_internal, is_available = :is_available, updated_at = :updated_at
		WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, q, row)
	if err != nil {
		return coach.Coach{}, errors.Wrap(err, "updating coach")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return coach.Coach{}, coach.ErrNotFound
	}

	// windows are replaced wholesale
	if _, err = tx.ExecContext(ctx, "DELETE FROM coach_window WHERE coach_id = $1", cch.ID); err != nil {
		return coach.Coach{}, errors.Wrap(err, "clearing coach windows")
	}
	if err = repo.insertWindows(ctx, tx, cch.ID, cch.Windows); err != nil {
		return coach.Coach{}, err
	}

	if err = tx.Commit(); err != nil {
		return coach.Coach{}, errors.Wrap(err, "committing tx")
	}
	return cch, nil
}

func (repo coachRepository) CreateGroup(ctx context.Context, grp coach.Group) (coach.Group, error) {
	grp.ID = uuid.New().String()
	row := repo.packGroup(grp)
	q := `INSERT INTO coach_group (id, name, lead_cost_percent, coach_cost_percent, platform_fee_percent, created_at, updated_at)
		VALUES (:id, :name, :lead_cost_percent, :coach_cost_percent, :platform_fee_percent, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return coach.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo coachRepository) GetGroup(ctx context.Context, id string) (coach.Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return coach.Group{}, coach.ErrGroupNotFound
	}
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM coach_group WHERE id = $1", id); err != nil {
		return coach.Group{}, repo.trapNoRowsErr(err, coach.ErrGroupNotFound, "finding group by ID")
	}
	return repo.unpackGroup(row), nil
}

func (repo coachRepository) QueryAllGroups(ctx context.Context) ([]coach.Group, error) {
	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM coach_group ORDER BY name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]coach.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, repo.unpackGroup(row))
	}
	return groups, nil
}

func (repo coachRepository) UpdateGroup(ctx context.Context, grp coach.Group) (coach.Group, error) {
	row := repo.packGroup(grp)
	q := `UPDATE coach_group SET
			name = :name, lead_cost_percent = :lead_cost_percent, coach_cost_percent = :coach_cost_percent,
			platform_fee_percent = :platform_fee_percent, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return coach.Group{}, errors.Wrap(err, "updating group")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return coach.Group{}, coach.ErrGroupNotFound
	}
	return grp, nil
}

func (repo coachRepository) DeleteGroup(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return coach.ErrGroupNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM coach_group WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return coach.ErrGroupNotFound
	}
	return nil
}
