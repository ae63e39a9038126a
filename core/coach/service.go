package coach

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
)

var (
	// errors
	ErrNotFound      = errors.New("coach not found")
	ErrGroupNotFound = errors.New("coach group not found")
	ErrEmailExists   = errors.New("a coach with this email already exists")
	ErrPercentSum    = errors.New("lead, coach and platform percentages must sum to 100")
	ErrGroupInUse    = errors.New("coaches are still assigned to this group")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedCoaches ...Coach) error
		CreateCoach(ctx context.Context, cch Coach) (Coach, error)
		GetCoach(ctx context.Context, id string) (Coach, error)
		// QueryCoaches applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Coach.Name or Coach.Email.
		QueryCoaches(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Coach, error)
		UpdateCoach(ctx context.Context, cch Coach) (Coach, error)

		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryAllGroups(ctx context.Context) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroup(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		CheckEmailUniqueness(email string, excludedCoaches ...Coach) error
		Create(ctx context.Context, nc NewCoach) (Coach, error)
		GetByID(ctx context.Context, id string) (Coach, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Coach, error)
		Update(ctx context.Context, orig Coach, uc UpdateCoach) (Coach, error)

		CreateGroup(ctx context.Context, ng NewGroup) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryAllGroups(ctx context.Context) ([]Group, error)
		UpdateGroup(ctx context.Context, orig Group, ug UpdateGroup) (Group, error)
		DeleteGroup(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *Service) CheckEmailUniqueness(email string, excludedCoaches ...Coach) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedCoaches...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCoach) (Coach, error) {
	if err := svc.CheckEmailUniqueness(nc.Email); err != nil {
		return Coach{}, err
	}
	if _, err := svc.repo.GetGroup(ctx, nc.GroupID); err != nil {
		if errors.Cause(err) == ErrGroupNotFound {
			return Coach{}, core.NewValidationError(err, core.FieldError{Field: "group_id", Error: err.Error()})
		}
		return Coach{}, errors.Wrap(err, "finding group")
	}

	now := time.Now().UTC()
	available := true
	if nc.IsAvailable != nil {
		available = *nc.IsAvailable
	}
	cch := Coach{
		Name:        nc.Name,
		Email:       nc.Email,
		Phone:       nc.Phone,
		GroupID:     nc.GroupID,
		IsInternal:  nc.IsInternal,
		IsAvailable: available,
		Windows:     nc.Windows,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCoach(ctx, cch)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Coach, error) {
	return svc.repo.GetCoach(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Coach, error) {
	return svc.repo.QueryCoaches(ctx, filter, ordering)
}

// Update modifies a coach profile. Moving the coach to another group fires a
// best-effort notification; a failed send is logged, never rolled back.
func (svc *Service) Update(ctx context.Context, orig Coach, uc UpdateCoach) (Coach, error) {
	if uc.Email != orig.Email {
		if err := svc.CheckEmailUniqueness(uc.Email, orig); err != nil {
			return Coach{}, err
		}
	}

	regrouped := uc.GroupID != orig.GroupID
	var newGroup Group
	if regrouped {
		grp, err := svc.repo.GetGroup(ctx, uc.GroupID)
		if err != nil {
			if errors.Cause(err) == ErrGroupNotFound {
				return Coach{}, core.NewValidationError(err, core.FieldError{Field: "group_id", Error: err.Error()})
			}
			return Coach{}, errors.Wrap(err, "finding group")
		}
		newGroup = grp
	}

	orig.Name = uc.Name
	orig.Email = uc.Email
	orig.Phone = uc.Phone
	orig.GroupID = uc.GroupID
	if uc.IsInternal != nil {
		orig.IsInternal = *uc.IsInternal
	}
	if uc.IsAvailable != nil {
		orig.IsAvailable = *uc.IsAvailable
	}
	if uc.Windows != nil {
		orig.Windows = uc.Windows
	}
	orig.UpdatedAt = time.Now().UTC()

	cch, err := svc.repo.UpdateCoach(ctx, orig)
	if err != nil {
		return Coach{}, errors.Wrap(err, "updating coach")
	}

	if regrouped {
		svc.notifyRegroup(cch, newGroup)
	}
	return cch, nil
}

func (svc *Service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		Name:               ng.Name,
		LeadCostPercent:    ng.LeadCostPercent,
		CoachCostPercent:   ng.CoachCostPercent,
		PlatformFeePercent: ng.PlatformFeePercent,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return svc.repo.CreateGroup(ctx, grp)
}

func (svc *Service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) QueryAllGroups(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryAllGroups(ctx)
}

func (svc *Service) UpdateGroup(ctx context.Context, orig Group, ug UpdateGroup) (Group, error) {
	orig.Name = ug.Name
	orig.LeadCostPercent = *ug.LeadCostPercent
	orig.CoachCostPercent = *ug.CoachCostPercent
	orig.PlatformFeePercent = *ug.PlatformFeePercent
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateGroup(ctx, orig)
}

func (svc *Service) DeleteGroup(ctx context.Context, id string) error {
	filter := &QueryFilter{GroupID: id}
	coaches, err := svc.repo.QueryCoaches(ctx, filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying group coaches")
	}
	if len(coaches) > 0 {
		return core.NewValidationError(ErrGroupInUse)
	}
	return svc.repo.DeleteGroup(ctx, id)
}

func (svc *Service) notifyRegroup(cch Coach, grp Group) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: cch.Name, Address: cch.Email}},
		Subject: "Your coach tier has changed",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYou have been moved to the %q tier. Your revenue share is now %d%% per enrollment.\n",
			cch.Name, grp.Name, grp.CoachCostPercent),
	})
}
