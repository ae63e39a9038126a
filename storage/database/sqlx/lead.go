package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/lead"
)

type leadRow struct {
	ID          string      `db:"id"`
	ParentName  string      `db:"parent_name"`
	Email       null.String `db:"email"`
	Phone       string      `db:"phone"`
	ChildName   string      `db:"child_name"`
	ChildAge    null.Int    `db:"child_age"`
	Source      null.String `db:"source"`
	Status      string      `db:"status"`
	Score       null.Int    `db:"ai_total_score"`
	Notes       null.String `db:"notes"`
	AppliedAt   null.Time   `db:"applied_at"`
	AssessedAt  null.Time   `db:"assessed_at"`
	InterviewAt null.Time   `db:"interview_at"`
	ClosedAt    null.Time   `db:"closed_at"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type leadRepository struct {
	db *sqlx.DB

	// score at and above which a lead counts as qualified
	qualifyingScore int
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *sqlx.DB, qualifyingScore int) *leadRepository {
	return &leadRepository{db: db, qualifyingScore: qualifyingScore}
}

func (repo leadRepository) pack(led lead.Lead) leadRow {
	return leadRow{
		ID:          led.ID,
		ParentName:  led.ParentName,
		Email:       null.NewString(led.Email, led.Email != ""),
		Phone:       led.Phone,
		ChildName:   led.ChildName,
		ChildAge:    null.NewInt(led.ChildAge, led.ChildAge != 0),
		Source:      null.NewString(led.Source, led.Source != ""),
		Status:      led.Status,
		Score:       null.IntFromPtr(led.Score),
		Notes:       null.NewString(led.Notes, led.Notes != ""),
		AppliedAt:   null.TimeFromPtr(led.AppliedAt),
		AssessedAt:  null.TimeFromPtr(led.AssessedAt),
		InterviewAt: null.TimeFromPtr(led.InterviewAt),
		ClosedAt:    null.TimeFromPtr(led.ClosedAt),
		CreatedAt:   null.NewTime(led.CreatedAt.UTC(), !led.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(led.UpdatedAt.UTC(), !led.UpdatedAt.IsZero()),
	}
}

func (repo leadRepository) unpack(row leadRow) lead.Lead {
	return lead.Lead{
		ID:          row.ID,
		ParentName:  row.ParentName,
		Email:       row.Email.String,
		Phone:       row.Phone,
		ChildName:   row.ChildName,
		ChildAge:    row.ChildAge.Int,
		Source:      row.Source.String,
		Status:      row.Status,
		Score:       row.Score.Ptr(),
		Notes:       row.Notes.String,
		AppliedAt:   row.AppliedAt.Ptr(),
		AssessedAt:  row.AssessedAt.Ptr(),
		InterviewAt: row.InterviewAt.Ptr(),
		ClosedAt:    row.ClosedAt.Ptr(),
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo leadRepository) unpackSlice(rows []leadRow) []lead.Lead {
	leads := make([]lead.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, repo.unpack(row))
	}
	return leads
}

// trapNoRowsErr maps psql "no rows" err to lead.ErrNotFound
func (repo leadRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return lead.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo leadRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excludedLeads ...lead.Lead) error {
	qb := new(queryBuilder)
	qb.where("phone = ?", phone)
	if len(excludedLeads) > 0 {
		ids := make([]string, 0, len(excludedLeads))
		for _, led := range excludedLeads {
			ids = append(ids, led.ID)
		}
		qb.where("NOT (id = ANY(?))", pq.Array(ids))
	}

	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM lead" + qb.clause() + ")"
	if err := repo.db.GetContext(ctx, &exists, q, qb.args...); err != nil {
		return errors.Wrap(err, "checking lead uniqueness")
	}
	if exists {
		return lead.ErrPhoneExists
	}
	return nil
}

func (repo leadRepository) CreateLead(ctx context.Context, led lead.Lead) (lead.Lead, error) {
	led.ID = uuid.New().String()
	row := repo.pack(led)
	q := `INSERT INTO lead (
			id, parent_name, email, phone, child_name, child_age, source, status,
			ai_total_score, notes, applied_at, assessed_at, interview_at, closed_at, created_at, updated_at)
		VALUES (
			:id, :parent_name, :email, :phone, :child_name, :child_age, :source, :status,
			:ai_total_score, :notes, :applied_at, :assessed_at, :interview_at, :closed_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return lead.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return repo.unpack(row), nil
}

func (repo leadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return lead.Lead{}, lead.ErrNotFound
	}
	var row leadRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM lead WHERE id = $1", id); err != nil {
		return lead.Lead{}, repo.trapNoRowsErr(err, "finding lead by ID")
	}
	return repo.unpack(row), nil
}

func (repo leadRepository) QueryLeads(
	ctx context.Context,
	filter *lead.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]lead.Lead, int, error) {
	qb := new(queryBuilder)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb.where("(parent_name ILIKE ? OR child_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", val, val, val, val)
		}
		if filter.Status != "" {
			qb.where("status = ?", filter.Status)
		}
		switch filter.ScoreFilter {
		case "qualified":
			qb.where("ai_total_score >= ?", repo.qualifyingScore)
		case "not_qualified":
			qb.where("ai_total_score < ?", repo.qualifyingScore)
		}
		if filter.Source != "" {
			qb.where("source = ?", filter.Source)
		}
		if !filter.CreatedFrom.IsZero() {
			qb.where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			qb.where("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM lead"+qb.clause(), qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting leads")
	}

	q := "SELECT * FROM lead" + qb.clause() + orderClause(ordering, "created_at DESC") + qb.paginate(page)
	var rows []leadRow
	if err := repo.db.SelectContext(ctx, &rows, q, qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying leads")
	}
	return repo.unpackSlice(rows), total, nil
}

func (repo leadRepository) UpdateLead(ctx context.Context, led lead.Lead) (lead.Lead, error) {
	row := repo.pack(led)
	q := `UPDATE lead SET
			parent_name = :parent_name, email = :email, phone = :phone, child_name = :child_name,
			child_age = :child_age, source = :source, status = :status, ai_total_score = :ai_total_score,
			notes = :notes, applied_at = :applied_at, assessed_at = :assessed_at, interview_at = :interview_at,
			closed_at = :closed_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return lead.Lead{}, errors.Wrap(err, "updating lead")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lead.Lead{}, lead.ErrNotFound
	}
	return repo.unpack(row), nil
}
