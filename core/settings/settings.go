package settings

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
)

var ErrNotFound = errors.New("setting not found")

// Setting is one entry of the site-wide key/value store (banner text, pricing
// copy, feature toggles for the marketing pages).
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type PutSetting struct {
	Value string `json:"value" validate:"required"`
}

func (ps *PutSetting) Validate(validate *validator.Validate) error {
	return validate.Struct(ps)
}

type (
	Repository interface {
		GetSetting(ctx context.Context, key string) (Setting, error)
		QueryAllSettings(ctx context.Context) ([]Setting, error)
		UpsertSetting(ctx context.Context, stg Setting) (Setting, error)
		DeleteSetting(ctx context.Context, key string) error
	}

	ServiceInterface interface {
		Get(ctx context.Context, key string) (Setting, error)
		QueryAll(ctx context.Context) ([]Setting, error)
		Put(ctx context.Context, key, value, updatedBy string) (Setting, error)
		Delete(ctx context.Context, key string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context, key string) (Setting, error) {
	return svc.repo.GetSetting(ctx, core.CleanString(key, true /* lower */))
}

func (svc *Service) QueryAll(ctx context.Context) ([]Setting, error) {
	return svc.repo.QueryAllSettings(ctx)
}

func (svc *Service) Put(ctx context.Context, key, value, updatedBy string) (Setting, error) {
	stg := Setting{
		Key:       core.CleanString(key, true /* lower */),
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpsertSetting(ctx, stg)
}

func (svc *Service) Delete(ctx context.Context, key string) error {
	return svc.repo.DeleteSetting(ctx, core.CleanString(key, true /* lower */))
}
