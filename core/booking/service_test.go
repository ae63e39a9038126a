package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/coach"
	emailsvc "github.com/kitabu/kitabu/services/email"
	meetingsvc "github.com/kitabu/kitabu/services/meeting"
	smssvc "github.com/kitabu/kitabu/services/sms"
	rediscache "github.com/kitabu/kitabu/storage/cache"
	inmemdb "github.com/kitabu/kitabu/storage/database/inmem"
)

type fixture struct {
	svc      *booking.Service
	coachSvc *coach.Service
	repo     booking.Repository
	conf     *core.Config
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conf := core.NewConfig()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	smsSvc := smssvc.NewConsoleServiceMock()
	emailsvc.ClearSentMessages()
	smssvc.ClearSentMessages()
	core.ParseEmailTemplates(conf, core.NopLogger{})

	coachSvc := coach.NewService(inmemdb.NewCoachRepository(db), mailSvc, conf, core.NopLogger{})
	repo := inmemdb.NewBookingRepository(db)
	svc := booking.NewService(
		repo,
		coachSvc,
		rediscache.NewMemory(),
		mailSvc,
		smsSvc,
		meetingsvc.NewJitsiService(conf),
		conf,
		core.NopLogger{},
	)
	return &fixture{svc: svc, coachSvc: coachSvc, repo: repo, conf: conf}
}

// allDayWindows covers every weekday so slot generation is independent of the
// day the tests run on.
func allDayWindows() []coach.AvailabilityWindow {
	windows := make([]coach.AvailabilityWindow, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		windows = append(windows, coach.AvailabilityWindow{
			Weekday:     wd,
			StartMinute: 0,
			EndMinute:   1440,
		})
	}
	return windows
}

func createCoach(t *testing.T, f *fixture, name, email string) coach.Coach {
	t.Helper()
	ctx := context.Background()

	grp, err := f.coachSvc.CreateGroup(ctx, coach.NewGroup{
		Name:               "Standard",
		LeadCostPercent:    20,
		CoachCostPercent:   50,
		PlatformFeePercent: 30,
	})
	require.NoError(t, err)

	cch, err := f.coachSvc.Create(ctx, coach.NewCoach{
		Name:    name,
		Email:   email,
		Phone:   "9876543210",
		GroupID: grp.ID,
		Windows: allDayWindows(),
	})
	require.NoError(t, err)
	return cch
}

func firstFreeSlot(t *testing.T, f *fixture) booking.Slot {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	slots, err := f.repo.QuerySlots(ctx, now, now.AddDate(0, 0, 2))
	require.NoError(t, err)
	for _, s := range slots {
		if s.Status == booking.SlotFree {
			return s
		}
	}
	t.Fatal("no free slot generated")
	return booking.Slot{}
}

func bookingRequest(slotID string) booking.BookingRequest {
	return booking.BookingRequest{
		ParentName: "Asha Rao",
		Email:      "asha@test.in",
		Phone:      "9876543210",
		ChildName:  "Kiran",
		ChildAge:   7,
		Goals:      "wants to enjoy reading",
		SlotID:     slotID,
	}
}

func TestGenerateSlots(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	createCoach(t, f, "Coach A", "a@test.in")
	require.NoError(t, f.svc.GenerateSlots(ctx, 2))

	now := time.Now().UTC()
	slots, err := f.repo.QuerySlots(ctx, now, now.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, s := range slots {
		assert.Equal(t, booking.SlotFree, s.Status)
		assert.Equal(t, time.Duration(f.conf.SlotDurationMinutes)*time.Minute, s.EndsAt.Sub(s.StartsAt))
		assert.False(t, s.StartsAt.Before(now.Add(-time.Duration(f.conf.SlotDurationMinutes)*time.Minute)))
	}

	// idempotent: a second run must not duplicate slots
	require.NoError(t, f.svc.GenerateSlots(ctx, 2))
	again, err := f.repo.QuerySlots(ctx, now, now.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, again, len(slots))
}

func TestAvailabilityGroupsByDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	createCoach(t, f, "Coach A", "a@test.in")

	schedule, err := f.svc.Availability(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, schedule)

	for _, day := range schedule {
		require.NotEmpty(t, day.Slots)
		for _, sv := range day.Slots {
			assert.Equal(t, day.Date, sv.Date)
			assert.True(t, sv.Available)
			// wizard dates/times are rendered in the business timezone
			dt, err := time.Parse(time.RFC3339, sv.Datetime)
			require.NoError(t, err)
			assert.Equal(t, sv.Date, dt.Format("2006-01-02"))
			assert.Equal(t, sv.Time, dt.Format("15:04"))
		}
	}
}

func TestBook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cch := createCoach(t, f, "Coach A", "a@test.in")
	require.NoError(t, f.svc.GenerateSlots(ctx, 2))
	slot := firstFreeSlot(t, f)

	cll, err := f.svc.Book(ctx, bookingRequest(slot.ID))
	require.NoError(t, err)

	assert.Equal(t, booking.StatusScheduled, cll.Status)
	assert.Equal(t, booking.AssignmentAuto, cll.AssignmentType)
	assert.Equal(t, cch.ID, cll.CoachID)
	assert.Equal(t, cch.Name, cll.CoachName)
	assert.NotEmpty(t, cll.MeetingLink)
	require.NotNil(t, cll.ScheduledAt)
	assert.True(t, cll.ScheduledAt.Equal(slot.StartsAt))

	booked, err := f.repo.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotBooked, booked.Status)

	// confirmation on both channels
	assert.NotEmpty(t, emailsvc.SentMessages)
	assert.NotEmpty(t, smssvc.SentMessages)
}

func TestBookSlotTaken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	createCoach(t, f, "Coach A", "a@test.in")
	require.NoError(t, f.svc.GenerateSlots(ctx, 2))
	slot := firstFreeSlot(t, f)

	_, err := f.svc.Book(ctx, bookingRequest(slot.ID))
	require.NoError(t, err)

	// the loser of the race gets ErrSlotTaken, not a new call
	_, err = f.svc.Book(ctx, bookingRequest(slot.ID))
	assert.Equal(t, booking.ErrSlotTaken, err)
}

func TestBookUnknownSlot(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Book(context.Background(), bookingRequest("f47ac10b-58cc-4372-a567-0e02b2c3d479"))
	require.Error(t, err)
	_, ok := err.(*core.ValidationError)
	assert.True(t, ok, "want *core.ValidationError, got %T", err)
}

func TestChangeStatusCancelReleasesSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	createCoach(t, f, "Coach A", "a@test.in")
	require.NoError(t, f.svc.GenerateSlots(ctx, 2))
	slot := firstFreeSlot(t, f)

	cll, err := f.svc.Book(ctx, bookingRequest(slot.ID))
	require.NoError(t, err)

	cll, err = f.svc.ChangeStatus(ctx, cll, booking.StatusChange{Status: booking.StatusCancelled, Notes: "parent asked to cancel"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cll.Status)

	freed, err := f.repo.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotFree, freed.Status)
}

func TestReassignCoach(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	createCoach(t, f, "Coach A", "a@test.in")
	require.NoError(t, f.svc.GenerateSlots(ctx, 2))
	slot := firstFreeSlot(t, f)

	cll, err := f.svc.Book(ctx, bookingRequest(slot.ID))
	require.NoError(t, err)

	grps, err := f.coachSvc.QueryAllGroups(ctx)
	require.NoError(t, err)
	other, err := f.coachSvc.Create(ctx, coach.NewCoach{
		Name:    "Coach B",
		Email:   "b@test.in",
		Phone:   "9123456789",
		GroupID: grps[0].ID,
	})
	require.NoError(t, err)

	cll, err = f.svc.ReassignCoach(ctx, cll, booking.Reassign{CoachID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, other.ID, cll.CoachID)
	assert.Equal(t, other.Name, cll.CoachName)
	assert.Equal(t, booking.AssignmentManual, cll.AssignmentType)

	// terminal calls cannot be reassigned
	cll, err = f.svc.MarkConverted(ctx, cll)
	require.NoError(t, err)
	_, err = f.svc.ReassignCoach(ctx, cll, booking.Reassign{CoachID: other.ID})
	require.Error(t, err)
}
