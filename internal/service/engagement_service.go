package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealboard/internal/model"
)

// EngagementStore is the persistence surface for engagement records.
type EngagementStore interface {
	FindByID(ctx context.Context, id string) (model.Engagement, error)
	Create(ctx context.Context, e model.Engagement) error
	Update(ctx context.Context, e model.Engagement) error
	Delete(ctx context.Context, id string) error
	ListVisible(ctx context.Context, principalID string, scope model.AccessScope) ([]model.Engagement, error)
}

// EngagementService runs engagement CRUD behind the authorization engine.
// Every read and mutation is scoped to what the principal's permission
// matrix allows.
type EngagementService struct {
	engagements EngagementStore
	authz       *AuthzService
}

func NewEngagementService(engagements EngagementStore, authz *AuthzService) *EngagementService {
	return &EngagementService{engagements: engagements, authz: authz}
}

// List returns the engagements the principal's view scope covers.
func (s *EngagementService) List(ctx context.Context, principal model.Principal) ([]model.Engagement, error) {
	scope := s.authz.VisibleScope(principal)
	if scope == model.ScopeNone {
		return []model.Engagement{}, nil
	}
	return s.engagements.ListVisible(ctx, principal.UserID, scope)
}

// Get returns an engagement after an ownership-scoped view check.
func (s *EngagementService) Get(ctx context.Context, principal model.Principal, id string) (model.Engagement, error) {
	return s.authz.CanAccessEngagement(ctx, principal, id, ActionView)
}

// Create inserts a new engagement owned by the principal.
func (s *EngagementService) Create(ctx context.Context, principal model.Principal, req model.CreateEngagementRequest) (model.Engagement, error) {
	if !s.authz.HasCapability(principal, CapCreateEngagements) {
		return model.Engagement{}, model.ErrForbidden
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || !model.ValidStage(req.Stage) || req.ValueCents < 0 {
		return model.Engagement{}, model.ErrInvalidInput
	}

	now := time.Now().UTC()
	e := model.Engagement{
		ID:          uuid.NewString(),
		Title:       title,
		AccountName: strings.TrimSpace(req.AccountName),
		Stage:       req.Stage,
		ValueCents:  req.ValueCents,
		OwnerID:     principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.engagements.Create(ctx, e); err != nil {
		return model.Engagement{}, err
	}
	return e, nil
}

// Update applies field changes after an ownership-scoped edit check.
func (s *EngagementService) Update(ctx context.Context, principal model.Principal, id string, req model.UpdateEngagementRequest) (model.Engagement, error) {
	e, err := s.authz.CanAccessEngagement(ctx, principal, id, ActionEdit)
	if err != nil {
		return model.Engagement{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return model.Engagement{}, model.ErrInvalidInput
		}
		e.Title = title
	}
	if req.AccountName != nil {
		e.AccountName = strings.TrimSpace(*req.AccountName)
	}
	if req.Stage != nil {
		if !model.ValidStage(*req.Stage) {
			return model.Engagement{}, model.ErrInvalidInput
		}
		e.Stage = *req.Stage
	}
	if req.ValueCents != nil {
		if *req.ValueCents < 0 {
			return model.Engagement{}, model.ErrInvalidInput
		}
		e.ValueCents = *req.ValueCents
	}

	e.UpdatedAt = time.Now().UTC()
	if err := s.engagements.Update(ctx, e); err != nil {
		return model.Engagement{}, err
	}
	return e, nil
}

// Delete removes an engagement after an ownership-scoped delete check.
func (s *EngagementService) Delete(ctx context.Context, principal model.Principal, id string) error {
	if _, err := s.authz.CanAccessEngagement(ctx, principal, id, ActionDelete); err != nil {
		return err
	}
	return s.engagements.Delete(ctx, id)
}
