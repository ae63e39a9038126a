package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
)

type slotRow struct {
	ID        string    `db:"id"`
	CoachID   string    `db:"coach_id"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	Status    string    `db:"status"`
	CreatedAt null.Time `db:"created_at"`
}

type callRow struct {
	ID             string      `db:"id"`
	ParentName     string      `db:"parent_name"`
	Email          null.String `db:"email"`
	Phone          string      `db:"phone"`
	ChildName      string      `db:"child_name"`
	ChildAge       null.Int    `db:"child_age"`
	Goals          null.String `db:"goals"`
	Status         string      `db:"status"`
	AssignmentType string      `db:"assignment_type"`
	CoachID        null.String `db:"coach_id"`
	CoachName      null.String `db:"coach_name"`
	SlotID         null.String `db:"slot_id"`
	ScheduledAt    null.Time   `db:"scheduled_at"`
	MeetingLink    null.String `db:"meeting_link"`
	LeadID         null.String `db:"lead_id"`
	Notes          null.String `db:"notes"`
	CreatedAt      null.Time   `db:"created_at"`
	UpdatedAt      null.Time   `db:"updated_at"`
}

type bookingRepository struct {
	db *sqlx.DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo bookingRepository) packSlot(slt booking.Slot) slotRow {
	return slotRow{
		ID:        slt.ID,
		CoachID:   slt.CoachID,
		StartsAt:  slt.StartsAt.UTC(),
		EndsAt:    slt.EndsAt.UTC(),
		Status:    slt.Status,
		CreatedAt: null.NewTime(slt.CreatedAt.UTC(), !slt.CreatedAt.IsZero()),
	}
}

func (repo bookingRepository) unpackSlot(row slotRow) booking.Slot {
	return booking.Slot{
		ID:        row.ID,
		CoachID:   row.CoachID,
		StartsAt:  row.StartsAt.UTC(),
		EndsAt:    row.EndsAt.UTC(),
		Status:    row.Status,
		CreatedAt: row.CreatedAt.Time,
	}
}

func (repo bookingRepository) packCall(cll booking.Call) callRow {
	return callRow{
		ID:             cll.ID,
		ParentName:     cll.ParentName,
		Email:          null.NewString(cll.Email, cll.Email != ""),
		Phone:          cll.Phone,
		ChildName:      cll.ChildName,
		ChildAge:       null.NewInt(cll.ChildAge, cll.ChildAge != 0),
		Goals:          null.NewString(cll.Goals, cll.Goals != ""),
		Status:         cll.Status,
		AssignmentType: cll.AssignmentType,
		CoachID:        null.NewString(cll.CoachID, cll.CoachID != ""),
		CoachName:      null.NewString(cll.CoachName, cll.CoachName != ""),
		SlotID:         null.NewString(cll.SlotID, cll.SlotID != ""),
		ScheduledAt:    null.TimeFromPtr(cll.ScheduledAt),
		MeetingLink:    null.NewString(cll.MeetingLink, cll.MeetingLink != ""),
		LeadID:         null.NewString(cll.LeadID, cll.LeadID != ""),
		Notes:          null.NewString(cll.Notes, cll.Notes != ""),
		CreatedAt:      null.NewTime(cll.CreatedAt.UTC(), !cll.CreatedAt.IsZero()),
		UpdatedAt:      null.NewTime(cll.UpdatedAt.UTC(), !cll.UpdatedAt.IsZero()),
	}
}

func (repo bookingRepository) unpackCall(row callRow) booking.Call {
	return booking.Call{
		ID:             row.ID,
		ParentName:     row.ParentName,
		Email:          row.Email.String,
		Phone:          row.Phone,
		ChildName:      row.ChildName,
		ChildAge:       row.ChildAge.Int,
		Goals:          row.Goals.String,
		Status:         row.Status,
		AssignmentType: row.AssignmentType,
		CoachID:        row.CoachID.String,
		CoachName:      row.CoachName.String,
		SlotID:         row.SlotID.String,
		ScheduledAt:    row.ScheduledAt.Ptr(),
		MeetingLink:    row.MeetingLink.String,
		LeadID:         row.LeadID.String,
		Notes:          row.Notes.String,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func (repo bookingRepository) EnsureSlots(ctx context.Context, slots []booking.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]slotRow, 0, len(slots))
	for _, slt := range slots {
		slt.ID = uuid.New().String()
		if slt.CreatedAt.IsZero() {
			slt.CreatedAt = now
		}
		rows = append(rows, repo.packSlot(slt))
	}
	q := `INSERT INTO slot (id, coach_id, starts_at, ends_at, status, created_at)
		VALUES (:id, :coach_id, :starts_at, :ends_at, :status, :created_at)
		ON CONFLICT (coach_id, starts_at) DO NOTHING`
	if _, err := repo.db.NamedExecContext(ctx, q, rows); err != nil {
		return errors.Wrap(err, "inserting slots")
	}
	return nil
}

func (repo bookingRepository) QuerySlots(ctx context.Context, from, to time.Time) ([]booking.Slot, error) {
	var rows []slotRow
	q := "SELECT * FROM slot WHERE starts_at >= $1 AND starts_at < $2 AND status != $3 ORDER BY starts_at ASC"
	if err := repo.db.SelectContext(ctx, &rows, q, from.UTC(), to.UTC(), booking.SlotCancelled); err != nil {
		return nil, errors.Wrap(err, "querying slots")
	}
	slots := make([]booking.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, repo.unpackSlot(row))
	}
	return slots, nil
}

func (repo bookingRepository) GetSlot(ctx context.Context, id string) (booking.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Slot{}, booking.ErrSlotNotFound
	}
	var row slotRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM slot WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return booking.Slot{}, booking.ErrSlotNotFound
		}
		return booking.Slot{}, errors.Wrap(err, "finding slot by ID")
	}
	return repo.unpackSlot(row), nil
}

// BookSlot claims the slot and creates the call atomically. The conditional
// UPDATE is the race arbiter: whoever flips free -> booked first wins, the
// other transaction affects zero rows and gets ErrSlotTaken.
func (repo bookingRepository) BookSlot(ctx context.Context, slotID string, cll booking.Call) (booking.Call, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return booking.Call{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE slot SET status = $1 WHERE id = $2 AND status = $3",
		booking.SlotBooked, slotID, booking.SlotFree)
	if err != nil {
		return booking.Call{}, errors.Wrap(err, "claiming slot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return booking.Call{}, errors.Wrap(err, "claiming slot")
	}
	if n == 0 {
		return booking.Call{}, booking.ErrSlotTaken
	}

	cll.ID = uuid.New().String()
	row := repo.packCall(cll)
	q := `INSERT INTO discovery_call (
			id, parent_name, email, phone, child_name, child_age, goals, status, assignment_type,
			coach_id, coach_name, slot_id, scheduled_at, meeting_link, lead_id, notes, created_at, updated_at)
		VALUES (
			:id, :parent_name, :email, :phone, :child_name, :child_age, :goals, :status, :assignment_type,
			:coach_id, :coach_name, :slot_id, :scheduled_at, :meeting_link, :lead_id, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
		return booking.Call{}, errors.Wrap(err, "inserting call")
	}

	if err = tx.Commit(); err != nil {
		return booking.Call{}, errors.Wrap(err, "committing tx")
	}
	return cll, nil
}

func (repo bookingRepository) ReleaseSlot(ctx context.Context, slotID string) error {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE slot SET status = $1 WHERE id = $2 AND status = $3",
		booking.SlotFree, slotID, booking.SlotBooked)
	if err != nil {
		return errors.Wrap(err, "releasing slot")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return booking.ErrSlotNotFound
	}
	return nil
}

func (repo bookingRepository) GetCall(ctx context.Context, id string) (booking.Call, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Call{}, booking.ErrNotFound
	}
	var row callRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM discovery_call WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return booking.Call{}, booking.ErrNotFound
		}
		return booking.Call{}, errors.Wrap(err, "finding call by ID")
	}
	return repo.unpackCall(row), nil
}

func (repo bookingRepository) QueryCalls(
	ctx context.Context,
	filter *booking.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]booking.Call, int, error) {
	qb := new(queryBuilder)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb.where("(parent_name ILIKE ? OR child_name ILIKE ? OR phone ILIKE ?)", val, val, val)
		}
		if filter.Status != "" {
			qb.where("status = ?", filter.Status)
		}
		if filter.AssignmentType != "" {
			qb.where("assignment_type = ?", filter.AssignmentType)
		}
		if filter.CoachID != "" {
			qb.where("coach_id = ?", filter.CoachID)
		}
		if !filter.ScheduledFrom.IsZero() {
			qb.where("scheduled_at >= ?", filter.ScheduledFrom.UTC())
		}
		if !filter.ScheduledTo.IsZero() {
			qb.where("scheduled_at <= ?", filter.ScheduledTo.UTC())
		}
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM discovery_call"+qb.clause(), qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting calls")
	}

	q := "SELECT * FROM discovery_call" + qb.clause() + orderClause(ordering, "scheduled_at DESC") + qb.paginate(page)
	var rows []callRow
	if err := repo.db.SelectContext(ctx, &rows, q, qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying calls")
	}

	calls := make([]booking.Call, 0, len(rows))
	for _, row := range rows {
		calls = append(calls, repo.unpackCall(row))
	}
	return calls, total, nil
}

func (repo bookingRepository) UpdateCall(ctx context.Context, cll booking.Call) (booking.Call, error) {
	row := repo.packCall(cll)
	q := `UPDATE discovery_call SET
			parent_name = :parent_name, email = :email, phone = :phone, child_name = :child_name,
			child_age = :child_age, goals = :goals, status = :status, assignment_type = :assignment_type,
			coach_id = :coach_id, coach_name = :coach_name, slot_id = :slot_id, scheduled_at = :scheduled_at,
			meeting_link = :meeting_link, lead_id = :lead_id, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return booking.Call{}, errors.Wrap(err, "updating call")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return booking.Call{}, booking.ErrNotFound
	}
	return cll, nil
}
