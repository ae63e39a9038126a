package content

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
)

var ErrNotFound = errors.New("content item not found")

// Item kinds.
const (
	KindStory     = "story"
	KindWorksheet = "worksheet"
	KindVideo     = "video"
)

// Item is a reading-library entry served to enrolled families.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	AgeBand   string    `json:"age_band"` // e.g. "3-5", "6-8", "9-12"
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewItem struct {
	Title     string `json:"title" validate:"required"`
	Kind      string `json:"kind" validate:"required,oneof=story worksheet video"`
	URL       string `json:"url" validate:"required,url"`
	AgeBand   string `json:"age_band" validate:"required"`
	Published *bool  `json:"published"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Title = core.CleanString(ni.Title)
	ni.Kind = core.CleanString(ni.Kind, true /* lower */)
	ni.AgeBand = core.CleanString(ni.AgeBand)
	return validate.Struct(ni)
}

type UpdateItem struct {
	Title     string `json:"title"`
	Kind      string `json:"kind" validate:"omitempty,oneof=story worksheet video"`
	URL       string `json:"url" validate:"omitempty,url"`
	AgeBand   string `json:"age_band"`
	Published *bool  `json:"published"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate, orig Item) error {
	if title := core.CleanString(ui.Title); title != "" {
		ui.Title = title
	} else {
		ui.Title = orig.Title
	}
	if kind := core.CleanString(ui.Kind, true /* lower */); kind != "" {
		ui.Kind = kind
	} else {
		ui.Kind = orig.Kind
	}
	if ui.URL == "" {
		ui.URL = orig.URL
	}
	if band := core.CleanString(ui.AgeBand); band != "" {
		ui.AgeBand = band
	} else {
		ui.AgeBand = orig.AgeBand
	}
	return validate.Struct(ui)
}

type QueryFilter struct {
	Search    string `query:"search"`
	Kind      string `query:"kind"`
	AgeBand   string `query:"age_band"`
	Published *bool  `query:"published"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
	qf.AgeBand = core.CleanString(qf.AgeBand)
}

type (
	Repository interface {
		CreateItem(ctx context.Context, itm Item) (Item, error)
		GetItem(ctx context.Context, id string) (Item, error)
		QueryItems(ctx context.Context, filter *QueryFilter, page core.Pagination) ([]Item, int, error)
		UpdateItem(ctx context.Context, itm Item) (Item, error)
		DeleteItem(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, ni NewItem) (Item, error)
		GetByID(ctx context.Context, id string) (Item, error)
		Query(ctx context.Context, filter *QueryFilter, page core.Pagination) ([]Item, int, error)
		Update(ctx context.Context, orig Item, ui UpdateItem) (Item, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ni NewItem) (Item, error) {
	now := time.Now().UTC()
	published := false
	if ni.Published != nil {
		published = *ni.Published
	}
	itm := Item{
		Title:     ni.Title,
		Kind:      ni.Kind,
		URL:       ni.URL,
		AgeBand:   ni.AgeBand,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateItem(ctx, itm)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Item, error) {
	return svc.repo.GetItem(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, page core.Pagination) ([]Item, int, error) {
	return svc.repo.QueryItems(ctx, filter, page)
}

func (svc *Service) Update(ctx context.Context, orig Item, ui UpdateItem) (Item, error) {
	orig.Title = ui.Title
	orig.Kind = ui.Kind
	orig.URL = ui.URL
	orig.AgeBand = ui.AgeBand
	if ui.Published != nil {
		orig.Published = *ui.Published
	}
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateItem(ctx, orig)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteItem(ctx, id)
}
