package service

import (
	"context"
	"errors"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
)

// AttributeService manages tags or ingredients directly, outside of a
// recipe write. One instance serves one kind.
type AttributeService struct {
	uow  UnitOfWork
	kind model.AttributeKind
}

// NewAttributeService returns the service for kind.
func NewAttributeService(uow UnitOfWork, kind model.AttributeKind) *AttributeService {
	return &AttributeService{uow: uow, kind: kind}
}

// List returns the owner's attributes ordered by name descending. With
// assignedOnly it keeps only those used by at least one of the owner's
// recipes.
func (s *AttributeService) List(ctx context.Context, ownerID uint64, assignedOnly bool) ([]*model.Attribute, error) {
	var out []*model.Attribute
	err := s.uow.Do(ctx, func(r Repos) error {
		var err error
		out, err = r.Attributes(s.kind).ListByOwner(ctx, ownerID, assignedOnly)
		return err
	})
	if err != nil {
		return nil, wrap("list "+s.kind.Plural(), err)
	}
	return out, nil
}

// Create resolves name for the owner. created reports whether a new
// attribute was stored or an existing one returned.
func (s *AttributeService) Create(ctx context.Context, ownerID uint64, name string) (*model.Attribute, bool, error) {
	name, err := NormalizeAttributeName("name", name)
	if err != nil {
		return nil, false, err
	}
	var (
		a       *model.Attribute
		created bool
	)
	err = s.uow.Do(ctx, func(r Repos) error {
		var err error
		a, created, err = resolveOne(ctx, r.Attributes(s.kind), s.kind, ownerID, name)
		return err
	})
	if err != nil {
		return nil, false, wrap("create "+s.kind.String(), err)
	}
	return a, created, nil
}

// Get returns one owned attribute.
func (s *AttributeService) Get(ctx context.Context, ownerID, id uint64) (*model.Attribute, error) {
	var a *model.Attribute
	err := s.uow.Do(ctx, func(r Repos) error {
		var err error
		a, err = r.Attributes(s.kind).GetByIDAndOwner(ctx, id, ownerID)
		return notFound(err)
	})
	if err != nil {
		return nil, wrap("get "+s.kind.String(), err)
	}
	return a, nil
}

// Rename changes an owned attribute's name. Taking a name the owner
// already uses is a validation error on "name".
func (s *AttributeService) Rename(ctx context.Context, ownerID, id uint64, name string) (*model.Attribute, error) {
	name, err := NormalizeAttributeName("name", name)
	if err != nil {
		return nil, err
	}
	var a *model.Attribute
	err = s.uow.Do(ctx, func(r Repos) error {
		repo := r.Attributes(s.kind)
		if err := repo.Rename(ctx, id, ownerID, name); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return FieldError("name", "A "+s.kind.String()+" with this name already exists.")
			}
			return notFound(err)
		}
		var err error
		a, err = repo.GetByIDAndOwner(ctx, id, ownerID)
		return notFound(err)
	})
	if err != nil {
		return nil, wrap("rename "+s.kind.String(), err)
	}
	return a, nil
}

// Delete removes an owned attribute and detaches it from every recipe.
func (s *AttributeService) Delete(ctx context.Context, ownerID, id uint64) error {
	err := s.uow.Do(ctx, func(r Repos) error {
		return notFound(r.Attributes(s.kind).DeleteByIDAndOwner(ctx, id, ownerID))
	})
	return wrap("delete "+s.kind.String(), err)
}
