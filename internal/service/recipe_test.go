package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/queue"
	"github.com/iliyamo/recipe-api/internal/service"
)

const (
	alice uint64 = 1
	bob   uint64 = 2
)

func TestCreateResolvesNamedTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := service.RecipeInput{
		Title:       ptr("curry"),
		TimeMinutes: ptr(20),
		Price:       ptr(model.Price(250)),
		Tags:        &[]string{"Thai", "Dinner"},
	}
	rc := f.mustCreate(t, alice, in)

	got, err := f.recipes.Get(ctx, alice, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, "curry", got.Title)
	assert.Equal(t, 20, got.TimeMinutes)
	assert.Equal(t, "2.50", got.Price.String())
	assert.ElementsMatch(t, []string{"Thai", "Dinner"}, names(got.Tags))
	for _, tag := range got.Tags {
		assert.Equal(t, alice, tag.OwnerID)
	}
	assert.Empty(t, got.Ingredients)
}

func TestCreateCollapsesRepeatedNames(t *testing.T) {
	f := newFixture(t)
	in := sampleInput("r")
	in.Tags = &[]string{"A", "A", " B ", "B"}
	rc := f.mustCreate(t, alice, in)

	assert.ElementsMatch(t, []string{"A", "B"}, names(rc.Tags))
	all, err := f.tags.List(context.Background(), alice, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateReusesExistingAttributes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing, created, err := f.ings.Create(ctx, alice, "Salt")
	require.NoError(t, err)
	require.True(t, created)

	in := sampleInput("soup")
	in.Ingredients = &[]string{"Salt", "Water"}
	rc := f.mustCreate(t, alice, in)

	require.Len(t, rc.Ingredients, 2)
	assert.Contains(t, []uint64{rc.Ingredients[0].ID, rc.Ingredients[1].ID}, existing.ID)

	// another user with the same name gets a separate ingredient
	other := sampleInput("soup")
	other.Ingredients = &[]string{"Salt"}
	orc := f.mustCreate(t, bob, other)
	require.Len(t, orc.Ingredients, 1)
	assert.NotEqual(t, existing.ID, orc.Ingredients[0].ID)
	assert.Equal(t, bob, orc.Ingredients[0].OwnerID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recipes.Create(ctx, alice, service.RecipeInput{})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "time_minutes")
	assert.Contains(t, verr.Fields, "price")

	in := sampleInput("ok")
	in.Tags = &[]string{"good", "   "}
	_, err = f.recipes.Create(ctx, alice, in)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "tags")

	in = sampleInput("ok")
	in.TimeMinutes = ptr(-1)
	in.Price = ptr(model.Price(-5))
	_, err = f.recipes.Create(ctx, alice, in)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "time_minutes")
	assert.Contains(t, verr.Fields, "price")

	in = sampleInput("ok")
	in.TimeMinutes = ptr(model.MaxTimeMinutes + 1)
	in.Price = ptr(model.MaxPrice + 1)
	_, err = f.recipes.Create(ctx, alice, in)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "time_minutes")
	assert.Equal(t, "Ensure that there are no more than 5 digits in total.", verr.Fields["price"])

	in = sampleInput(strings.Repeat("x", 256))
	_, err = f.recipes.Create(ctx, alice, in)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")

	// nothing was written, not even the valid tag
	tags, err := f.tags.List(ctx, alice, false)
	require.NoError(t, err)
	assert.Empty(t, tags)
	list, err := f.recipes.List(ctx, alice, service.RecipeFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput("private")
	in.Tags = &[]string{"Secret"}
	rc := f.mustCreate(t, alice, in)

	list, err := f.recipes.List(ctx, bob, service.RecipeFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.recipes.Get(ctx, bob, rc.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.recipes.Update(ctx, bob, rc.ID, service.RecipeInput{Title: ptr("hacked")}, true)
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.ErrorIs(t, f.recipes.Delete(ctx, bob, rc.ID), service.ErrNotFound)

	tags, err := f.tags.List(ctx, bob, false)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.ErrorIs(t, f.tags.Delete(ctx, bob, rc.Tags[0].ID), service.ErrNotFound)

	got, err := f.recipes.Get(ctx, alice, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Title)
	assert.Len(t, got.Tags, 1)
}

func TestDeleteTwiceReportsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := f.mustCreate(t, alice, sampleInput("gone"))
	require.NoError(t, f.recipes.Delete(ctx, alice, rc.ID))
	assert.ErrorIs(t, f.recipes.Delete(ctx, alice, rc.ID), service.ErrNotFound)
	assert.ErrorIs(t, f.recipes.Delete(ctx, alice, 9999), service.ErrNotFound)
}

func TestPartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput("before")
	in.Tags = &[]string{"Keep"}
	in.Description = ptr("desc")
	rc := f.mustCreate(t, alice, in)

	got, err := f.recipes.Update(ctx, alice, rc.ID, service.RecipeInput{Title: ptr("after")}, true)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, "desc", got.Description)
	assert.Equal(t, 10, got.TimeMinutes)
	assert.Equal(t, alice, got.OwnerID)
	assert.Equal(t, []string{"Keep"}, names(got.Tags))
}

func TestFullUpdateRequiresFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := f.mustCreate(t, alice, sampleInput("r"))

	_, err := f.recipes.Update(ctx, alice, rc.ID, service.RecipeInput{Title: ptr("only title")}, false)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price")

	full := sampleInput("new")
	full.Link = ptr("https://example.com/r.pdf")
	got, err := f.recipes.Update(ctx, alice, rc.ID, full, false)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "https://example.com/r.pdf", got.Link)
}

func TestUpdateReplacesAndClearsTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput("r")
	in.Tags = &[]string{"Breakfast"}
	rc := f.mustCreate(t, alice, in)

	got, err := f.recipes.Update(ctx, alice, rc.ID, service.RecipeInput{Tags: &[]string{"Lunch"}}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch"}, names(got.Tags))

	got, err = f.recipes.Update(ctx, alice, rc.ID, service.RecipeInput{Tags: &[]string{}}, true)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	// the tags themselves survive
	tags, err := f.tags.List(ctx, alice, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch", "Breakfast"}, names(tags))
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1in := sampleInput("Thai vegetable curry")
	r1in.Tags = &[]string{"Vegan"}
	r1in.Ingredients = &[]string{"Feta"}
	r1 := f.mustCreate(t, alice, r1in)

	r2in := sampleInput("Aubergine with tahini")
	r2in.Tags = &[]string{"Vegetarian", "Vegan"}
	r2in.Ingredients = &[]string{"Chicken"}
	r2 := f.mustCreate(t, alice, r2in)

	r3 := f.mustCreate(t, alice, sampleInput("Fish and chips"))

	vegan := r1.Tags[0].ID
	var vegetarian uint64
	for _, tg := range r2.Tags {
		if tg.Name == "Vegetarian" {
			vegetarian = tg.ID
		}
	}

	all, err := f.recipes.List(ctx, alice, service.RecipeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{r3.ID, r2.ID, r1.ID}, recipeIDs(all))

	// r2 matches both tags and still appears once
	got, err := f.recipes.List(ctx, alice, service.RecipeFilter{TagIDs: []uint64{vegan, vegetarian}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{r2.ID, r1.ID}, recipeIDs(got))

	got, err = f.recipes.List(ctx, alice, service.RecipeFilter{IngredientIDs: []uint64{r1.Ingredients[0].ID}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{r1.ID}, recipeIDs(got))

	got, err = f.recipes.List(ctx, alice, service.RecipeFilter{
		TagIDs:        []uint64{vegetarian},
		IngredientIDs: []uint64{r1.Ingredients[0].ID},
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	// another user's ids never match
	got, err = f.recipes.List(ctx, bob, service.RecipeFilter{TagIDs: []uint64{vegan}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUploadImageReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := f.mustCreate(t, alice, sampleInput("pic"))

	first, err := f.recipes.UploadImage(ctx, alice, rc.ID, "one.PNG", pngBytes(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Image, "uploads/recipe/"))
	assert.True(t, strings.HasSuffix(first.Image, ".png"))
	assert.NotEmpty(t, first.ImageBlurHash)
	assert.Equal(t, []string{first.Image}, f.blobs.keys())

	second, err := f.recipes.UploadImage(ctx, alice, rc.ID, "two.png", pngBytes(t))
	require.NoError(t, err)
	assert.NotEqual(t, first.Image, second.Image)
	assert.Equal(t, []string{second.Image}, f.blobs.keys())

	got, err := f.recipes.Get(ctx, alice, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Image, got.Image)

	url, err := f.recipes.ImageURL(ctx, got.Image)
	require.NoError(t, err)
	assert.Equal(t, "/media/"+second.Image, url)
}

func TestUploadImageRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := f.mustCreate(t, alice, sampleInput("pic"))

	_, err := f.recipes.UploadImage(ctx, alice, rc.ID, "x.jpg", []byte("notanimage"))
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "image")
	assert.Empty(t, f.blobs.keys())
}

func TestUploadImageForeignRecipeLeavesNoBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := f.mustCreate(t, alice, sampleInput("pic"))

	_, err := f.recipes.UploadImage(ctx, bob, rc.ID, "x.png", pngBytes(t))
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Empty(t, f.blobs.keys())
}

func TestDeleteRecipeAndImageReleaseBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := f.mustCreate(t, alice, sampleInput("pic"))
	_, err := f.recipes.UploadImage(ctx, alice, rc.ID, "x.png", pngBytes(t))
	require.NoError(t, err)

	cleared, err := f.recipes.DeleteImage(ctx, alice, rc.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Image)
	assert.Empty(t, f.blobs.keys())

	_, err = f.recipes.UploadImage(ctx, alice, rc.ID, "y.png", pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, f.recipes.Delete(ctx, alice, rc.ID))
	assert.Empty(t, f.blobs.keys())
}

func TestEventsPublishedAfterWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput("evented")
	in.Tags = &[]string{"T"}
	rc := f.mustCreate(t, alice, in)
	_, err := f.recipes.Update(ctx, alice, rc.ID, service.RecipeInput{Title: ptr("renamed")}, true)
	require.NoError(t, err)
	_, err = f.recipes.UploadImage(ctx, alice, rc.ID, "x.png", pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, f.recipes.Delete(ctx, alice, rc.ID))

	// failed writes publish nothing
	_, _ = f.recipes.Create(ctx, alice, service.RecipeInput{})

	assert.Equal(t, []string{
		queue.RecipeCreated, queue.RecipeUpdated, queue.RecipeImageUploaded, queue.RecipeDeleted,
	}, f.events.types())
	assert.Equal(t, []string{"T"}, f.events.events[0].Tags)
	assert.Equal(t, alice, f.events.events[0].OwnerID)
}
