package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
)

type bookingRepository struct {
	slots *slotTable
	calls *callTable
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) *bookingRepository {
	return &bookingRepository{slots: db.slot, calls: db.call}
}

func (repo *bookingRepository) EnsureSlots(ctx context.Context, slots []booking.Slot) error {
	repo.slots.Lock()
	defer repo.slots.Unlock()

	taken := make(map[string]bool, len(repo.slots.table))
	for _, slt := range repo.slots.table {
		taken[slt.CoachID+"|"+slt.StartsAt.UTC().Format(time.RFC3339)] = true
	}

	for _, slt := range slots {
		key := slt.CoachID + "|" + slt.StartsAt.UTC().Format(time.RFC3339)
		if taken[key] {
			continue
		}
		taken[key] = true
		slt.ID = uuid.New().String()
		if slt.CreatedAt.IsZero() {
			slt.CreatedAt = time.Now().UTC()
		}
		s := slt
		repo.slots.table[s.ID] = &s
	}
	return nil
}

func (repo *bookingRepository) QuerySlots(ctx context.Context, from, to time.Time) ([]booking.Slot, error) {
	repo.slots.RLock()
	defer repo.slots.RUnlock()

	slots := make([]booking.Slot, 0, len(repo.slots.table))
	for _, slt := range repo.slots.table {
		if slt.Status == booking.SlotCancelled {
			continue
		}
		if slt.StartsAt.Before(from) || !slt.StartsAt.Before(to) {
			continue
		}
		slots = append(slots, *slt)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartsAt.Before(slots[j].StartsAt) })
	return slots, nil
}

func (repo *bookingRepository) GetSlot(ctx context.Context, id string) (booking.Slot, error) {
	repo.slots.RLock()
	defer repo.slots.RUnlock()

	if slt, ok := repo.slots.table[id]; ok {
		return *slt, nil
	}
	return booking.Slot{}, booking.ErrSlotNotFound
}

func (repo *bookingRepository) BookSlot(ctx context.Context, slotID string, cll booking.Call) (booking.Call, error) {
	repo.slots.Lock()
	defer repo.slots.Unlock()

	slt, ok := repo.slots.table[slotID]
	if !ok {
		return booking.Call{}, booking.ErrSlotNotFound
	}
	if slt.Status != booking.SlotFree {
		return booking.Call{}, booking.ErrSlotTaken
	}
	slt.Status = booking.SlotBooked

	repo.calls.Lock()
	defer repo.calls.Unlock()

	cll.ID = uuid.New().String()
	repo.calls.table[cll.ID] = &cll
	return cll, nil
}

func (repo *bookingRepository) ReleaseSlot(ctx context.Context, slotID string) error {
	repo.slots.Lock()
	defer repo.slots.Unlock()

	slt, ok := repo.slots.table[slotID]
	if !ok {
		return booking.ErrSlotNotFound
	}
	if slt.Status == booking.SlotBooked {
		slt.Status = booking.SlotFree
	}
	return nil
}

func (repo *bookingRepository) GetCall(ctx context.Context, id string) (booking.Call, error) {
	repo.calls.RLock()
	defer repo.calls.RUnlock()

	if cll, ok := repo.calls.table[id]; ok {
		return *cll, nil
	}
	return booking.Call{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryCalls(
	ctx context.Context,
	filter *booking.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]booking.Call, int, error) {
	repo.calls.RLock()
	defer repo.calls.RUnlock()

	calls := make([]booking.Call, 0, len(repo.calls.table))
	for _, cll := range repo.calls.table {
		calls = append(calls, *cll)
	}

	if filter != nil {
		var filtered []booking.Call
		for _, cll := range calls {
			if filter.Search != "" &&
				!containsFold(cll.ParentName, filter.Search) && !containsFold(cll.ChildName, filter.Search) &&
				!containsFold(cll.Phone, filter.Search) {
				continue
			}
			if filter.Status != "" && cll.Status != filter.Status {
				continue
			}
			if filter.AssignmentType != "" && cll.AssignmentType != filter.AssignmentType {
				continue
			}
			if filter.CoachID != "" && cll.CoachID != filter.CoachID {
				continue
			}
			if !filter.ScheduledFrom.IsZero() && (cll.ScheduledAt == nil || cll.ScheduledAt.Before(filter.ScheduledFrom)) {
				continue
			}
			if !filter.ScheduledTo.IsZero() && (cll.ScheduledAt == nil || cll.ScheduledAt.After(filter.ScheduledTo)) {
				continue
			}
			filtered = append(filtered, cll)
		}
		calls = filtered
	}

	// most recently scheduled first
	sort.Slice(calls, func(i, j int) bool {
		si, sj := calls[i].ScheduledAt, calls[j].ScheduledAt
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return si.After(*sj)
		}
	})

	paged, total := paginate(calls, page)
	return paged, total, nil
}

func (repo *bookingRepository) UpdateCall(ctx context.Context, cll booking.Call) (booking.Call, error) {
	repo.calls.Lock()
	defer repo.calls.Unlock()

	if _, ok := repo.calls.table[cll.ID]; !ok {
		return booking.Call{}, booking.ErrNotFound
	}
	repo.calls.table[cll.ID] = &cll
	return cll, nil
}
