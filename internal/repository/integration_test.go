//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/recipe-api/internal/database"
	"github.com/iliyamo/recipe-api/internal/media"
	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
	"github.com/iliyamo/recipe-api/internal/service"
)

// setupTestDB starts a MySQL container, applies the schema and returns a
// connected pool.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx,
		"mysql:8.0.36",
		tcmysql.WithDatabase("recipe"),
		tcmysql.WithUsername("app"),
		tcmysql.WithPassword("app"),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("Failed to start MySQL container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4")
	require.NoError(t, err)
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.WaitForDB(ctx, db, time.Second, time.Minute, nil))
	require.NoError(t, database.Migrate(ctx, db))
	// applying twice must be harmless
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func createUser(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: "n", PasswordHash: "x", IsActive: true}
	require.NoError(t, repository.NewUserRepo(db).Create(context.Background(), u))
	return u
}

func createRecipe(t *testing.T, db *sql.DB, ownerID uint64, title string) *model.Recipe {
	t.Helper()
	rc := &model.Recipe{OwnerID: ownerID, Title: title, TimeMinutes: 10, Price: 250}
	require.NoError(t, repository.NewRecipeRepo(db).Create(context.Background(), rc))
	return rc
}

func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("UserEmailUnique", func(t *testing.T) {
		createUser(t, db, "dup@example.com")
		err := repository.NewUserRepo(db).Create(ctx, &model.User{Email: "dup@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, repository.ErrEmailExists)
	})

	t.Run("RefreshTokens", func(t *testing.T) {
		u := createUser(t, db, "tok@example.com")
		tokens := repository.NewTokenRepo(db)
		require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "h1", time.Now().Add(time.Hour)))
		id, err := tokens.ValidateRefresh(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, id)

		require.NoError(t, tokens.RevokeByHash(ctx, u.ID, "h1"))
		_, err = tokens.ValidateRefresh(ctx, "h1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("GetOrCreateIsPerOwnerAndExact", func(t *testing.T) {
		u1 := createUser(t, db, "a1@example.com")
		u2 := createUser(t, db, "a2@example.com")
		tags := repository.NewAttributeRepo(db, model.KindTag)

		a, created, err := tags.GetOrCreate(ctx, u1.ID, "Thai")
		require.NoError(t, err)
		assert.True(t, created)

		b, created, err := tags.GetOrCreate(ctx, u1.ID, "Thai")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, a.ID, b.ID)

		c, created, err := tags.GetOrCreate(ctx, u1.ID, "thai")
		require.NoError(t, err)
		assert.True(t, created, "binary collation keeps case-distinct names apart")
		assert.NotEqual(t, a.ID, c.ID)

		d, _, err := tags.GetOrCreate(ctx, u2.ID, "Thai")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, d.ID)
		assert.Equal(t, u2.ID, d.OwnerID)
	})

	t.Run("GetOrCreateConcurrent", func(t *testing.T) {
		u := createUser(t, db, "race@example.com")
		tags := repository.NewAttributeRepo(db, model.KindTag)

		const n = 8
		ids := make([]uint64, n)
		createdCount := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var (
					a       *model.Attribute
					created bool
					err     error
				)
				for attempt := 0; attempt < 3; attempt++ {
					a, created, err = tags.GetOrCreate(ctx, u.ID, "Dinner")
					if !repository.IsRetryable(err) {
						break
					}
				}
				assert.NoError(t, err)
				if a != nil {
					ids[i] = a.ID
				}
				if created {
					mu.Lock()
					createdCount++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, createdCount)
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		list, err := tags.ListByOwner(ctx, u.ID, false)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("ConcurrentRecipeCreateSharesTag", func(t *testing.T) {
		u := createUser(t, db, "uow-race@example.com")
		blobs, err := media.NewLocalStore(t.TempDir(), "/media/")
		require.NoError(t, err)
		recipes := service.NewRecipeService(service.NewSQLUnitOfWork(db, nil), blobs, nil, nil)

		// each transaction reads before resolving, so its snapshot predates
		// the tag committed by whichever request wins
		const n = 8
		start := make(chan struct{})
		tagIDs := make([]uint64, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				title := fmt.Sprintf("curry %d", i)
				mins, price := 20, model.Price(250)
				tags := []string{"Thai", "Dinner"}
				rc, err := recipes.Create(ctx, u.ID, service.RecipeInput{
					Title: &title, TimeMinutes: &mins, Price: &price, Tags: &tags,
				})
				errs[i] = err
				if err == nil {
					for _, tag := range rc.Tags {
						if tag.Name == "Thai" {
							tagIDs[i] = tag.ID
						}
					}
				}
			}(i)
		}
		close(start)
		wg.Wait()

		for i := 0; i < n; i++ {
			require.NoError(t, errs[i], "create %d", i)
			assert.NotZero(t, tagIDs[i])
			assert.Equal(t, tagIDs[0], tagIDs[i])
		}
		list, err := repository.NewAttributeRepo(db, model.KindTag).ListByOwner(ctx, u.ID, false)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		all, err := recipes.List(ctx, u.ID, service.RecipeFilter{TagIDs: []uint64{tagIDs[0]}})
		require.NoError(t, err)
		assert.Len(t, all, n)
	})

	t.Run("FilterAndAssignedOnly", func(t *testing.T) {
		u := createUser(t, db, "filter@example.com")
		other := createUser(t, db, "other@example.com")
		tags := repository.NewAttributeRepo(db, model.KindTag)
		ings := repository.NewAttributeRepo(db, model.KindIngredient)
		recipes := repository.NewRecipeRepo(db)

		t1, _, _ := tags.GetOrCreate(ctx, u.ID, "Vegan")
		t2, _, _ := tags.GetOrCreate(ctx, u.ID, "Dessert")
		unused, _, _ := tags.GetOrCreate(ctx, u.ID, "Unused")
		salt, _, _ := ings.GetOrCreate(ctx, u.ID, "Salt")

		r1 := createRecipe(t, db, u.ID, "one")
		r2 := createRecipe(t, db, u.ID, "two")
		r3 := createRecipe(t, db, u.ID, "three")
		createRecipe(t, db, other.ID, "foreign")

		require.NoError(t, tags.ReplaceForRecipe(ctx, r1.ID, []uint64{t1.ID, t2.ID}))
		require.NoError(t, tags.ReplaceForRecipe(ctx, r2.ID, []uint64{t2.ID, t2.ID}))
		require.NoError(t, ings.ReplaceForRecipe(ctx, r2.ID, []uint64{salt.ID}))

		got, err := recipes.List(ctx, u.ID, repository.RecipeFilter{TagIDs: []uint64{t1.ID, t2.ID}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, r2.ID, got[0].ID)
		assert.Equal(t, r1.ID, got[1].ID)

		got, err = recipes.List(ctx, u.ID, repository.RecipeFilter{TagIDs: []uint64{t2.ID}, IngredientIDs: []uint64{salt.ID}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, r2.ID, got[0].ID)

		all, err := recipes.List(ctx, u.ID, repository.RecipeFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, r3.ID, all[0].ID)

		assigned, err := tags.ListByOwner(ctx, u.ID, true)
		require.NoError(t, err)
		names := []string{}
		for _, a := range assigned {
			names = append(names, a.Name)
		}
		assert.Equal(t, []string{"Vegan", "Dessert"}, names)
		assert.NotContains(t, names, unused.Name)

		byRecipe, err := tags.ListForRecipes(ctx, []uint64{r1.ID, r2.ID, r3.ID})
		require.NoError(t, err)
		assert.Len(t, byRecipe[r1.ID], 2)
		assert.Len(t, byRecipe[r2.ID], 1)
		assert.Empty(t, byRecipe[r3.ID])

		// clearing keeps the tags themselves
		require.NoError(t, tags.ReplaceForRecipe(ctx, r1.ID, nil))
		list, err := tags.ListByOwner(ctx, u.ID, false)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("OwnershipScoping", func(t *testing.T) {
		u := createUser(t, db, "own@example.com")
		intruder := createUser(t, db, "intruder@example.com")
		recipes := repository.NewRecipeRepo(db)
		tags := repository.NewAttributeRepo(db, model.KindTag)
		rc := createRecipe(t, db, u.ID, "mine")
		tag, _, _ := tags.GetOrCreate(ctx, u.ID, "Mine")

		_, err := recipes.GetByIDAndOwner(ctx, rc.ID, intruder.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, recipes.DeleteByIDAndOwner(ctx, rc.ID, intruder.ID), repository.ErrNotFound)
		assert.ErrorIs(t, tags.DeleteByIDAndOwner(ctx, tag.ID, intruder.ID), repository.ErrNotFound)
		assert.ErrorIs(t, tags.Rename(ctx, tag.ID, intruder.ID, "x"), repository.ErrNotFound)

		rc.OwnerID = intruder.ID
		rc.Title = "stolen"
		assert.ErrorIs(t, recipes.Update(ctx, rc), repository.ErrNotFound)
	})

	t.Run("RenameConflict", func(t *testing.T) {
		u := createUser(t, db, "rename@example.com")
		ings := repository.NewAttributeRepo(db, model.KindIngredient)
		a, _, _ := ings.GetOrCreate(ctx, u.ID, "Kale")
		_, _, _ = ings.GetOrCreate(ctx, u.ID, "Spinach")
		assert.ErrorIs(t, ings.Rename(ctx, a.ID, u.ID, "Spinach"), repository.ErrConflict)
		assert.NoError(t, ings.Rename(ctx, a.ID, u.ID, "Kale"))
	})

	t.Run("PriceAndImageRoundTrip", func(t *testing.T) {
		u := createUser(t, db, "price@example.com")
		recipes := repository.NewRecipeRepo(db)
		rc := createRecipe(t, db, u.ID, "priced")
		require.NoError(t, recipes.SetImage(ctx, rc.ID, u.ID, "uploads/recipe/x.png", "LEHV6nWB2yk8"))
		got, err := recipes.GetByIDAndOwner(ctx, rc.ID, u.ID)
		require.NoError(t, err)
		assert.Equal(t, model.Price(250), got.Price)
		assert.Equal(t, "uploads/recipe/x.png", got.Image)
		assert.Equal(t, "LEHV6nWB2yk8", got.ImageBlurHash)
	})
}
