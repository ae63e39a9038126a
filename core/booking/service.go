package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/coach"
)

var (
	// errors
	ErrNotFound      = errors.New("discovery call not found")
	ErrSlotNotFound  = errors.New("slot not found")
	ErrSlotTaken     = errors.New("this slot has just been booked by someone else")
	ErrInvalidStatus = errors.New("unknown status")
	ErrCallTerminal  = errors.New("call is already cancelled or converted")
)

// IST is the business timezone all wizard-facing dates/times are rendered in.
var IST = time.FixedZone("IST", 5*3600+1800)

type (
	Repository interface {
		// EnsureSlots inserts the given slots, skipping any (coach, starts_at)
		// pair that already exists.
		EnsureSlots(ctx context.Context, slots []Slot) error
		QuerySlots(ctx context.Context, from, to time.Time) ([]Slot, error)
		GetSlot(ctx context.Context, id string) (Slot, error)
		// BookSlot claims the slot and creates the call in one transaction.
		// The claim is a conditional update on status; a slot no longer free
		// fails the whole transaction with ErrSlotTaken.
		BookSlot(ctx context.Context, slotID string, cll Call) (Call, error)
		ReleaseSlot(ctx context.Context, slotID string) error

		GetCall(ctx context.Context, id string) (Call, error)
		// QueryCalls applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Call.ParentName, Call.ChildName or Call.Phone.
		QueryCalls(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Call, int, error)
		UpdateCall(ctx context.Context, cll Call) (Call, error)
	}

	ServiceInterface interface {
		Availability(ctx context.Context, days int) ([]DaySlots, error)
		GenerateSlots(ctx context.Context, days int) error
		Book(ctx context.Context, br BookingRequest) (Call, error)
		GetByID(ctx context.Context, id string) (Call, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Call, int, error)
		ChangeStatus(ctx context.Context, orig Call, sc StatusChange) (Call, error)
		ReassignCoach(ctx context.Context, orig Call, r Reassign) (Call, error)
		MarkConverted(ctx context.Context, orig Call) (Call, error)
	}

	Service struct {
		repo     Repository
		coachSvc coach.ServiceInterface
		cache    core.Cache
		mailSvc  core.EmailService
		smsSvc   core.SMSService
		meetSvc  core.MeetingService
		conf     *core.Config
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	repo Repository,
	coachSvc coach.ServiceInterface,
	cache core.Cache,
	mailSvc core.EmailService,
	smsSvc core.SMSService,
	meetSvc core.MeetingService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		coachSvc: coachSvc,
		cache:    cache,
		mailSvc:  mailSvc,
		smsSvc:   smsSvc,
		meetSvc:  meetSvc,
		conf:     conf,
		logger:   logger,
	}
}

func availabilityCacheKey(days int) string { return fmt.Sprintf("funnel:slots:%dd", days) }

// Availability returns the next `days` days of slots grouped by date for the
// wizard's schedule step. The listing is cached briefly; booked slots are
// included with Available=false so the wizard can grey them out.
func (svc *Service) Availability(ctx context.Context, days int) ([]DaySlots, error) {
	if days < 1 || days > svc.conf.SlotLookaheadDays {
		days = svc.conf.SlotLookaheadDays
	}

	key := availabilityCacheKey(days)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var cached []DaySlots
		if err = json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	if err := svc.GenerateSlots(ctx, days); err != nil {
		return nil, errors.Wrap(err, "generating slots")
	}

	now := time.Now().UTC()
	slots, err := svc.repo.QuerySlots(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, errors.Wrap(err, "querying slots")
	}

	grouped := groupByDate(slots)

	if raw, err := json.Marshal(grouped); err == nil {
		if err = svc.cache.Set(ctx, key, raw, svc.conf.SlotCacheTTL); err != nil {
			svc.logger.Warn(fmt.Sprintf("caching availability: %v", err))
		}
	}
	return grouped, nil
}

// GenerateSlots materializes concrete slots from every available coach's
// weekly windows for the next `days` days. Idempotent: existing
// (coach, starts_at) pairs are skipped.
func (svc *Service) GenerateSlots(ctx context.Context, days int) error {
	available := true
	coaches, err := svc.coachSvc.Query(ctx, &coach.QueryFilter{IsAvailable: &available}, nil)
	if err != nil {
		return errors.Wrap(err, "querying available coaches")
	}

	dur := time.Duration(svc.conf.SlotDurationMinutes) * time.Minute
	now := time.Now().In(IST)
	var slots []Slot

	for day := 0; day < days; day++ {
		date := now.AddDate(0, 0, day)
		midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, IST)
		for _, cch := range coaches {
			for _, w := range cch.Windows {
				if w.Weekday != date.Weekday() {
					continue
				}
				for m := w.StartMinute; m+svc.conf.SlotDurationMinutes <= w.EndMinute; m += svc.conf.SlotDurationMinutes {
					start := midnight.Add(time.Duration(m) * time.Minute)
					if start.Before(now) {
						continue
					}
					slots = append(slots, Slot{
						CoachID:  cch.ID,
						StartsAt: start.UTC(),
						EndsAt:   start.Add(dur).UTC(),
						Status:   SlotFree,
					})
				}
			}
		}
	}

	if len(slots) == 0 {
		return nil
	}
	return svc.repo.EnsureSlots(ctx, slots)
}

// Book turns a wizard submission into a scheduled discovery call.
//
// The slot claim happens inside one repository transaction; two users racing
// for the same displayed slot is resolved at the data layer, and the loser
// gets ErrSlotTaken (surfaced to the wizard as ALREADY_BOOKED). Confirmation
// email/WhatsApp are best-effort after commit.
func (svc *Service) Book(ctx context.Context, br BookingRequest) (Call, error) {
	slot, err := svc.repo.GetSlot(ctx, br.SlotID)
	if err != nil {
		if errors.Cause(err) == ErrSlotNotFound {
			return Call{}, core.NewValidationError(err, core.FieldError{Field: "slot_id", Error: err.Error()})
		}
		return Call{}, errors.Wrap(err, "finding slot")
	}

	cch, err := svc.coachSvc.GetByID(ctx, slot.CoachID)
	if err != nil {
		return Call{}, errors.Wrap(err, "finding slot coach")
	}

	now := time.Now().UTC()
	scheduledAt := slot.StartsAt
	cll := Call{
		ParentName:     br.ParentName,
		Email:          br.Email,
		Phone:          br.Phone,
		ChildName:      br.ChildName,
		ChildAge:       br.ChildAge,
		Goals:          br.Goals,
		Status:         StatusScheduled,
		AssignmentType: AssignmentAuto, // the slot owner takes the call
		CoachID:        cch.ID,
		CoachName:      cch.Name,
		SlotID:         slot.ID,
		ScheduledAt:    &scheduledAt,
		MeetingLink:    svc.meetSvc.NewMeetingLink(),
		LeadID:         br.LeadID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	cll, err = svc.repo.BookSlot(ctx, slot.ID, cll)
	if err != nil {
		if errors.Cause(err) == ErrSlotTaken {
			return Call{}, ErrSlotTaken
		}
		return Call{}, errors.Wrap(err, "booking slot")
	}

	svc.invalidateAvailability(ctx)
	svc.notifyBooked(cll)
	return cll, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Call, error) {
	return svc.repo.GetCall(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Call, int, error) {
	return svc.repo.QueryCalls(ctx, filter, ordering, page)
}

// ChangeStatus applies an admin-triggered call-lifecycle move. Cancelling
// frees the slot again for the funnel.
func (svc *Service) ChangeStatus(ctx context.Context, orig Call, sc StatusChange) (Call, error) {
	wasCancelled := orig.Status == StatusCancelled

	orig.Status = sc.Status
	if sc.Notes != "" {
		orig.Notes = sc.Notes
	}
	orig.UpdatedAt = time.Now().UTC()

	cll, err := svc.repo.UpdateCall(ctx, orig)
	if err != nil {
		return Call{}, errors.Wrap(err, "updating call status")
	}

	if cll.Status == StatusCancelled && !wasCancelled && cll.SlotID != "" {
		if err = svc.repo.ReleaseSlot(ctx, cll.SlotID); err != nil {
			svc.logger.Error(fmt.Sprintf("releasing slot %s: %v", cll.SlotID, err), err)
		}
		svc.invalidateAvailability(ctx)
	}
	return cll, nil
}

// ReassignCoach moves the call to another coach and notifies both sides
// best-effort.
func (svc *Service) ReassignCoach(ctx context.Context, orig Call, r Reassign) (Call, error) {
	if orig.IsTerminal() {
		return Call{}, core.NewValidationError(ErrCallTerminal)
	}

	cch, err := svc.coachSvc.GetByID(ctx, r.CoachID)
	if err != nil {
		if errors.Cause(err) == coach.ErrNotFound {
			return Call{}, core.NewValidationError(err, core.FieldError{Field: "coach_id", Error: err.Error()})
		}
		return Call{}, errors.Wrap(err, "finding coach")
	}

	orig.CoachID = cch.ID
	orig.CoachName = cch.Name
	orig.AssignmentType = AssignmentManual
	orig.UpdatedAt = time.Now().UTC()

	cll, err := svc.repo.UpdateCall(ctx, orig)
	if err != nil {
		return Call{}, errors.Wrap(err, "reassigning call")
	}

	svc.notifyReassigned(cll, cch)
	return cll, nil
}

// MarkConverted is called by enrollment creation; "converted" is terminal and
// never reachable through the status PATCH endpoint.
func (svc *Service) MarkConverted(ctx context.Context, orig Call) (Call, error) {
	orig.Status = StatusConverted
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCall(ctx, orig)
}

func (svc *Service) invalidateAvailability(ctx context.Context) {
	// other day-ranges age out via TTL
	if err := svc.cache.Delete(ctx, availabilityCacheKey(svc.conf.SlotLookaheadDays)); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating availability cache: %v", err))
	}
}

func (svc *Service) notifyBooked(cll Call) {
	when := cll.ScheduledAt.In(IST).Format("Mon, 2 Jan 2006 at 3:04 PM")
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: cll.ParentName, Address: cll.Email}},
		Subject:      "Your discovery call is booked",
		TemplateName: "call-booked",
		TemplateData: struct {
			ParentName  string
			ChildName   string
			CoachName   string
			When        string
			MeetingLink string
		}{cll.ParentName, cll.ChildName, cll.CoachName, when, cll.MeetingLink},
	})
	svc.smsSvc.SendMessages(&core.TextMessage{
		Phone: cll.Phone,
		Body: fmt.Sprintf("Hi %s, %s's discovery call with coach %s is booked for %s. Join: %s",
			cll.ParentName, cll.ChildName, cll.CoachName, when, cll.MeetingLink),
	})
}

func (svc *Service) notifyReassigned(cll Call, cch coach.Coach) {
	msgs := []*core.EmailMessage{{
		To:      []mail.Address{{Name: cch.Name, Address: cch.Email}},
		Subject: "A discovery call was assigned to you",
		BodyStr: fmt.Sprintf("Hi %s,\n\nThe discovery call for %s (parent: %s) is now assigned to you.\nMeeting link: %s\n",
			cch.Name, cll.ChildName, cll.ParentName, cll.MeetingLink),
	}}
	if cll.Email != "" {
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Name: cll.ParentName, Address: cll.Email}},
			Subject: "Your discovery call has a new coach",
			BodyStr: fmt.Sprintf("Hi %s,\n\n%s's discovery call will now be taken by coach %s. Your meeting link is unchanged.\n",
				cll.ParentName, cll.ChildName, cch.Name),
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}

func groupByDate(slots []Slot) []DaySlots {
	byDate := make(map[string][]SlotView)
	for _, s := range slots {
		local := s.StartsAt.In(IST)
		date := local.Format("2006-01-02")
		byDate[date] = append(byDate[date], SlotView{
			SlotID:    s.ID,
			Date:      date,
			Time:      local.Format("15:04"),
			Datetime:  local.Format(time.RFC3339),
			Available: s.Status == SlotFree,
		})
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	grouped := make([]DaySlots, 0, len(dates))
	for _, date := range dates {
		views := byDate[date]
		sort.Slice(views, func(i, j int) bool { return views[i].Datetime < views[j].Datetime })
		grouped = append(grouped, DaySlots{Date: date, Slots: views})
	}
	return grouped
}
