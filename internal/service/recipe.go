package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/recipe-api/internal/media"
	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/queue"
	"github.com/iliyamo/recipe-api/internal/repository"
)

// RecipeInput is a create or update request. A nil field was not
// supplied. For Tags and Ingredients, nil leaves the associations alone
// while a pointer to an empty slice clears them.
type RecipeInput struct {
	Title       *string
	TimeMinutes *int
	Price       *model.Price
	Description *string
	Link        *string
	Tags        *[]string
	Ingredients *[]string
}

func (in RecipeInput) names(kind model.AttributeKind) *[]string {
	if kind == model.KindTag {
		return in.Tags
	}
	return in.Ingredients
}

// normalized validates in and returns a copy with trimmed, de-duplicated
// attribute names. requireAll is set for create and full update.
func (in RecipeInput) normalized(requireAll bool) (RecipeInput, error) {
	verr := &ValidationError{}
	if requireAll {
		if in.Title == nil {
			verr.add("title", "This field is required.")
		}
		if in.TimeMinutes == nil {
			verr.add("time_minutes", "This field is required.")
		}
		if in.Price == nil {
			verr.add("price", "This field is required.")
		}
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		switch {
		case t == "":
			verr.add("title", "This field may not be blank.")
		case utf8.RuneCountInString(t) > model.MaxTitleLen:
			verr.add("title", "Ensure this field has no more than 255 characters.")
		}
		in.Title = &t
	}
	if in.TimeMinutes != nil {
		switch {
		case *in.TimeMinutes < 0:
			verr.add("time_minutes", "Ensure this value is greater than or equal to 0.")
		case int64(*in.TimeMinutes) > model.MaxTimeMinutes:
			verr.add("time_minutes", "Ensure this value is less than or equal to 4294967295.")
		}
	}
	if in.Price != nil {
		if *in.Price < 0 {
			verr.add("price", "Ensure this value is greater than or equal to 0.")
		} else if *in.Price > model.MaxPrice {
			verr.add("price", "Ensure that there are no more than 5 digits in total.")
		}
	}
	if in.Link != nil && utf8.RuneCountInString(*in.Link) > model.MaxLinkLen {
		verr.add("link", "Ensure this field has no more than 255 characters.")
	}
	for _, kind := range attributeKinds {
		names := in.names(kind)
		if names == nil {
			continue
		}
		norm, err := normalizeNames(kind.Plural(), *names)
		if err != nil {
			for f, m := range err.(*ValidationError).Fields {
				verr.add(f, m)
			}
			continue
		}
		if kind == model.KindTag {
			in.Tags = &norm
		} else {
			in.Ingredients = &norm
		}
	}
	if err := verr.orNil(); err != nil {
		return in, err
	}
	return in, nil
}

// apply copies the supplied scalar fields onto rc. The owner is never
// part of the input and so can never change.
func (in RecipeInput) apply(rc *model.Recipe) {
	if in.Title != nil {
		rc.Title = *in.Title
	}
	if in.TimeMinutes != nil {
		rc.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		rc.Price = *in.Price
	}
	if in.Description != nil {
		rc.Description = *in.Description
	}
	if in.Link != nil {
		rc.Link = *in.Link
	}
}

// RecipeFilter holds the parsed query of a recipe listing.
type RecipeFilter = repository.RecipeFilter

// RecipeService implements recipe CRUD, attribute resolution and image
// association on top of a unit of work.
type RecipeService struct {
	uow    UnitOfWork
	store  media.Store
	events queue.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRecipeService wires the service. A nil publisher drops events.
func NewRecipeService(uow UnitOfWork, store media.Store, events queue.Publisher, logger *slog.Logger) *RecipeService {
	if events == nil {
		events = queue.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipeService{uow: uow, store: store, events: events, logger: logger, now: time.Now}
}

// writeAttributes resolves the supplied names of every kind and makes them
// the recipe's complete set. Kinds not supplied keep their associations.
func writeAttributes(ctx context.Context, r Repos, rc *model.Recipe, in RecipeInput) error {
	for _, kind := range attributeKinds {
		names := in.names(kind)
		if names == nil {
			continue
		}
		repo := r.Attributes(kind)
		attrs, err := resolveAttributes(ctx, repo, kind, rc.OwnerID, *names)
		if err != nil {
			return err
		}
		if err := repo.ReplaceForRecipe(ctx, rc.ID, attributeIDs(attrs)); err != nil {
			return err
		}
	}
	return nil
}

// Create stores a new recipe owned by ownerID and resolves its tag and
// ingredient names in the same transaction.
func (s *RecipeService) Create(ctx context.Context, ownerID uint64, in RecipeInput) (*model.Recipe, error) {
	in, err := in.normalized(true)
	if err != nil {
		return nil, err
	}
	var rc *model.Recipe
	err = s.uow.Do(ctx, func(r Repos) error {
		rc = &model.Recipe{OwnerID: ownerID}
		in.apply(rc)
		if err := r.Recipes.Create(ctx, rc); err != nil {
			return err
		}
		if err := writeAttributes(ctx, r, rc, in); err != nil {
			return err
		}
		return loadAttributes(ctx, r, rc)
	})
	if err != nil {
		return nil, wrap("create recipe", err)
	}
	s.publish(ctx, queue.RecipeCreated, rc)
	return rc, nil
}

// Update modifies an owned recipe. With partial set only supplied fields
// are validated and written; otherwise title, time_minutes and price are
// required.
func (s *RecipeService) Update(ctx context.Context, ownerID, id uint64, in RecipeInput, partial bool) (*model.Recipe, error) {
	in, err := in.normalized(!partial)
	if err != nil {
		return nil, err
	}
	var rc *model.Recipe
	err = s.uow.Do(ctx, func(r Repos) error {
		var err error
		rc, err = r.Recipes.GetByIDAndOwner(ctx, id, ownerID)
		if err != nil {
			return notFound(err)
		}
		in.apply(rc)
		if err := r.Recipes.Update(ctx, rc); err != nil {
			return notFound(err)
		}
		if err := writeAttributes(ctx, r, rc, in); err != nil {
			return err
		}
		return loadAttributes(ctx, r, rc)
	})
	if err != nil {
		return nil, wrap("update recipe", err)
	}
	s.publish(ctx, queue.RecipeUpdated, rc)
	return rc, nil
}

// Get returns an owned recipe with its attributes.
func (s *RecipeService) Get(ctx context.Context, ownerID, id uint64) (*model.Recipe, error) {
	var rc *model.Recipe
	err := s.uow.Do(ctx, func(r Repos) error {
		var err error
		rc, err = r.Recipes.GetByIDAndOwner(ctx, id, ownerID)
		if err != nil {
			return notFound(err)
		}
		return loadAttributes(ctx, r, rc)
	})
	if err != nil {
		return nil, wrap("get recipe", err)
	}
	return rc, nil
}

// List returns the owner's recipes newest first. A recipe matches a tag
// filter when it carries at least one of the listed tags, likewise for
// ingredients; both filters must match when both are given. Each recipe
// appears at most once.
func (s *RecipeService) List(ctx context.Context, ownerID uint64, f RecipeFilter) ([]*model.Recipe, error) {
	var out []*model.Recipe
	err := s.uow.Do(ctx, func(r Repos) error {
		var err error
		out, err = r.Recipes.List(ctx, ownerID, f)
		if err != nil {
			return err
		}
		return loadAttributes(ctx, r, out...)
	})
	if err != nil {
		return nil, wrap("list recipes", err)
	}
	return out, nil
}

// Delete removes an owned recipe and, after commit, its image blob. Tags
// and ingredients are kept.
func (s *RecipeService) Delete(ctx context.Context, ownerID, id uint64) error {
	var rc *model.Recipe
	err := s.uow.Do(ctx, func(r Repos) error {
		var err error
		rc, err = r.Recipes.GetByIDAndOwner(ctx, id, ownerID)
		if err != nil {
			return notFound(err)
		}
		return notFound(r.Recipes.DeleteByIDAndOwner(ctx, id, ownerID))
	})
	if err != nil {
		return wrap("delete recipe", err)
	}
	s.releaseBlob(ctx, rc.Image)
	s.publish(ctx, queue.RecipeDeleted, rc)
	return nil
}

// UploadImage validates data as an image, stores it under a fresh key and
// points the recipe at it. The previous blob is removed only after the
// new reference is committed; if the commit fails the new blob is removed
// instead.
func (s *RecipeService) UploadImage(ctx context.Context, ownerID, id uint64, filename string, data []byte) (*model.Recipe, error) {
	decoded, err := media.Inspect(data)
	if err != nil {
		imageUploads.WithLabelValues("invalid").Inc()
		return nil, FieldError("image", media.ErrNotImage.Error())
	}
	key := media.RecipeImagePath(filename, decoded.Format)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), decoded.ContentType); err != nil {
		imageUploads.WithLabelValues("error").Inc()
		return nil, wrap("store image", err)
	}

	var rc *model.Recipe
	var previous string
	err = s.uow.Do(ctx, func(r Repos) error {
		var err error
		rc, err = r.Recipes.GetByIDAndOwner(ctx, id, ownerID)
		if err != nil {
			return notFound(err)
		}
		previous = rc.Image
		if err := r.Recipes.SetImage(ctx, id, ownerID, key, decoded.BlurHash); err != nil {
			return notFound(err)
		}
		rc.Image, rc.ImageBlurHash = key, decoded.BlurHash
		return loadAttributes(ctx, r, rc)
	})
	if err != nil {
		imageUploads.WithLabelValues("error").Inc()
		s.releaseBlob(ctx, key)
		return nil, wrap("set recipe image", err)
	}
	if previous != key {
		s.releaseBlob(ctx, previous)
	}
	imageUploads.WithLabelValues("ok").Inc()
	s.publish(ctx, queue.RecipeImageUploaded, rc)
	return rc, nil
}

// DeleteImage clears the recipe's image and removes the blob.
func (s *RecipeService) DeleteImage(ctx context.Context, ownerID, id uint64) (*model.Recipe, error) {
	var rc *model.Recipe
	var previous string
	err := s.uow.Do(ctx, func(r Repos) error {
		var err error
		rc, err = r.Recipes.GetByIDAndOwner(ctx, id, ownerID)
		if err != nil {
			return notFound(err)
		}
		previous = rc.Image
		if err := r.Recipes.SetImage(ctx, id, ownerID, "", ""); err != nil {
			return notFound(err)
		}
		rc.Image, rc.ImageBlurHash = "", ""
		return loadAttributes(ctx, r, rc)
	})
	if err != nil {
		return nil, wrap("delete recipe image", err)
	}
	s.releaseBlob(ctx, previous)
	s.publish(ctx, queue.RecipeUpdated, rc)
	return rc, nil
}

// ImageURL resolves a stored image key to a client-facing URL. An empty
// key yields an empty URL.
func (s *RecipeService) ImageURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.store.URL(ctx, key)
}

// releaseBlob deletes key from the blob store. Failures only leave an
// orphaned file, so they are logged and not returned.
func (s *RecipeService) releaseBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to remove image blob", "key", key, "error", err)
	}
}

func (s *RecipeService) publish(ctx context.Context, typ string, rc *model.Recipe) {
	ev := queue.RecipeEvent{
		Type:        typ,
		RecipeID:    rc.ID,
		OwnerID:     rc.OwnerID,
		Title:       rc.Title,
		Image:       rc.Image,
		Tags:        attributeNames(rc.Tags),
		Ingredients: attributeNames(rc.Ingredients),
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.PublishRecipeEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("failed to publish recipe event", "type", typ, "recipe_id", rc.ID, "error", err)
	}
}
