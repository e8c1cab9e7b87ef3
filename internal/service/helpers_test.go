package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/recipe-api/internal/logger"
	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/queue"
	"github.com/iliyamo/recipe-api/internal/repository/memory"
	"github.com/iliyamo/recipe-api/internal/service"
)

// blobStore is an in-memory media.Store.
type blobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failPut bool
}

func newBlobStore() *blobStore { return &blobStore{blobs: map[string][]byte{}} }

func (b *blobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if b.failPut {
		return errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = data
	return nil
}

func (b *blobStore) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

func (b *blobStore) URL(_ context.Context, key string) (string, error) {
	return "/media/" + key, nil
}

func (b *blobStore) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.blobs))
	for k := range b.blobs {
		out = append(out, k)
	}
	return out
}

// eventLog records published events.
type eventLog struct {
	mu     sync.Mutex
	events []queue.RecipeEvent
}

func (e *eventLog) PublishRecipeEvent(_ context.Context, ev queue.RecipeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventLog) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store   *memory.Store
	blobs   *blobStore
	events  *eventLog
	recipes *service.RecipeService
	tags    *service.AttributeService
	ings    *service.AttributeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	f := &fixture{store: st, blobs: newBlobStore(), events: &eventLog{}}
	f.recipes = service.NewRecipeService(st, f.blobs, f.events, logger.Discard())
	f.tags = service.NewAttributeService(st, model.KindTag)
	f.ings = service.NewAttributeService(st, model.KindIngredient)
	return f
}

func ptr[T any](v T) *T { return &v }

func names(attrs []*model.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

func recipeIDs(rcs []*model.Recipe) []uint64 {
	out := make([]uint64, len(rcs))
	for i, rc := range rcs {
		out[i] = rc.ID
	}
	return out
}

func sampleInput(title string) service.RecipeInput {
	return service.RecipeInput{
		Title:       ptr(title),
		TimeMinutes: ptr(10),
		Price:       ptr(model.Price(500)),
	}
}

func (f *fixture) mustCreate(t *testing.T, owner uint64, in service.RecipeInput) *model.Recipe {
	t.Helper()
	rc, err := f.recipes.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return rc
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
