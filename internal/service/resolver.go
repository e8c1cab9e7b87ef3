package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/recipe-api/internal/model"
)

// NormalizeAttributeName trims name and checks it against the column
// limits. field names the input in the returned validation error.
func NormalizeAttributeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", FieldError(field, "This field may not be blank.")
	}
	if utf8.RuneCountInString(name) > model.MaxAttributeNameLen {
		return "", FieldError(field, "Ensure this field has no more than 255 characters.")
	}
	return name, nil
}

// normalizeNames prepares the names embedded in a recipe write: each is
// trimmed and validated, and repeats collapse to their first occurrence
// so one request never asks for the same name twice.
func normalizeNames(field string, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name, err := NormalizeAttributeName(field, raw)
		if err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// resolveAttributes maps each name to the owner's existing attribute of
// the repository's kind, creating the missing ones. names must already be
// normalised.
func resolveAttributes(ctx context.Context, repo AttributeRepository, kind model.AttributeKind, ownerID uint64, names []string) ([]*model.Attribute, error) {
	out := make([]*model.Attribute, 0, len(names))
	for _, name := range names {
		a, _, err := resolveOne(ctx, repo, kind, ownerID, name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func resolveOne(ctx context.Context, repo AttributeRepository, kind model.AttributeKind, ownerID uint64, name string) (*model.Attribute, bool, error) {
	a, created, err := repo.GetOrCreate(ctx, ownerID, name)
	if err != nil {
		return nil, false, err
	}
	outcome := "reused"
	if created {
		outcome = "created"
	}
	attributeResolutions.WithLabelValues(kind.String(), outcome).Inc()
	return a, created, nil
}

func attributeIDs(attrs []*model.Attribute) []uint64 {
	ids := make([]uint64, len(attrs))
	for i, a := range attrs {
		ids[i] = a.ID
	}
	return ids
}

func attributeNames(attrs []*model.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names
}

// loadAttributes fills Tags and Ingredients of every recipe in rcs.
func loadAttributes(ctx context.Context, r Repos, rcs ...*model.Recipe) error {
	if len(rcs) == 0 {
		return nil
	}
	ids := make([]uint64, len(rcs))
	for i, rc := range rcs {
		ids[i] = rc.ID
	}
	for _, kind := range attributeKinds {
		byRecipe, err := r.Attributes(kind).ListForRecipes(ctx, ids)
		if err != nil {
			return err
		}
		for _, rc := range rcs {
			attrs := byRecipe[rc.ID]
			if attrs == nil {
				attrs = []*model.Attribute{}
			}
			rc.SetAttributes(kind, attrs)
		}
	}
	return nil
}
