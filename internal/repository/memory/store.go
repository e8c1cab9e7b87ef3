// Package memory is an in-process implementation of the service storage
// ports. It backs APP_STORE_DRIVER=memory and the service and handler tests.
// A unit of work runs against a private copy of the data that replaces
// the shared state only when the work succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
	"github.com/iliyamo/recipe-api/internal/service"
)

type attrKey struct {
	owner uint64
	name  string
}

type kindState struct {
	byID   map[uint64]model.Attribute
	byName map[attrKey]uint64
	joins  map[uint64]map[uint64]bool // recipe id -> attribute ids
}

type state struct {
	seq     uint64
	recipes map[uint64]model.Recipe
	kinds   map[model.AttributeKind]*kindState
}

func newState() *state {
	s := &state{recipes: map[uint64]model.Recipe{}, kinds: map[model.AttributeKind]*kindState{}}
	for _, k := range []model.AttributeKind{model.KindTag, model.KindIngredient} {
		s.kinds[k] = &kindState{byID: map[uint64]model.Attribute{}, byName: map[attrKey]uint64{}, joins: map[uint64]map[uint64]bool{}}
	}
	return s
}

func (s *state) clone() *state {
	c := &state{seq: s.seq, recipes: make(map[uint64]model.Recipe, len(s.recipes)), kinds: map[model.AttributeKind]*kindState{}}
	for id, rc := range s.recipes {
		c.recipes[id] = rc
	}
	for k, ks := range s.kinds {
		nk := &kindState{
			byID:   make(map[uint64]model.Attribute, len(ks.byID)),
			byName: make(map[attrKey]uint64, len(ks.byName)),
			joins:  make(map[uint64]map[uint64]bool, len(ks.joins)),
		}
		for id, a := range ks.byID {
			nk.byID[id] = a
		}
		for key, id := range ks.byName {
			nk.byName[key] = id
		}
		for rid, set := range ks.joins {
			ns := make(map[uint64]bool, len(set))
			for aid := range set {
				ns[aid] = true
			}
			nk.joins[rid] = ns
		}
		c.kinds[k] = nk
	}
	return c
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

// Store holds all data in memory. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	data  *state
	users *userStore
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	now := func() time.Time { return time.Now().UTC().Truncate(time.Second) }
	return &Store{data: newState(), users: newUserStore(now), now: now}
}

// Do runs fn against a snapshot and publishes the snapshot when fn
// returns nil. Units of work are serialised.
func (s *Store) Do(ctx context.Context, fn func(service.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	if err := fn(service.Repos{
		Recipes:     &recipeRepo{st: tx, now: s.now},
		Tags:        &attributeRepo{st: tx, kind: model.KindTag, now: s.now},
		Ingredients: &attributeRepo{st: tx, kind: model.KindIngredient, now: s.now},
	}); err != nil {
		return err
	}
	s.data = tx
	return nil
}

// Users returns the user repository.
func (s *Store) Users() service.UserRepository { return s.users }

// Tokens returns the refresh token repository.
func (s *Store) Tokens() service.TokenRepository { return s.users.tokens }

var _ service.UnitOfWork = (*Store)(nil)

type recipeRepo struct {
	st  *state
	now func() time.Time
}

func (r *recipeRepo) Create(_ context.Context, rc *model.Recipe) error {
	rc.ID = r.st.next()
	rc.CreatedAt = r.now()
	rc.UpdatedAt = rc.CreatedAt
	stored := *rc
	stored.Tags, stored.Ingredients = nil, nil
	r.st.recipes[rc.ID] = stored
	return nil
}

func (r *recipeRepo) GetByIDAndOwner(_ context.Context, id, ownerID uint64) (*model.Recipe, error) {
	rc, ok := r.st.recipes[id]
	if !ok || rc.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &rc, nil
}

func (r *recipeRepo) matches(kind model.AttributeKind, recipeID uint64, ids []uint64) bool {
	set := r.st.kinds[kind].joins[recipeID]
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

func (r *recipeRepo) List(_ context.Context, ownerID uint64, f repository.RecipeFilter) ([]*model.Recipe, error) {
	out := []*model.Recipe{}
	for _, rc := range r.st.recipes {
		if rc.OwnerID != ownerID {
			continue
		}
		if len(f.TagIDs) > 0 && !r.matches(model.KindTag, rc.ID, f.TagIDs) {
			continue
		}
		if len(f.IngredientIDs) > 0 && !r.matches(model.KindIngredient, rc.ID, f.IngredientIDs) {
			continue
		}
		rc := rc
		out = append(out, &rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *recipeRepo) Update(_ context.Context, rc *model.Recipe) error {
	cur, ok := r.st.recipes[rc.ID]
	if !ok || cur.OwnerID != rc.OwnerID {
		return repository.ErrNotFound
	}
	cur.Title, cur.TimeMinutes, cur.Price = rc.Title, rc.TimeMinutes, rc.Price
	cur.Description, cur.Link = rc.Description, rc.Link
	cur.UpdatedAt = r.now()
	r.st.recipes[rc.ID] = cur
	return nil
}

func (r *recipeRepo) SetImage(_ context.Context, id, ownerID uint64, key, blurHash string) error {
	cur, ok := r.st.recipes[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	cur.Image, cur.ImageBlurHash = key, blurHash
	cur.UpdatedAt = r.now()
	r.st.recipes[id] = cur
	return nil
}

func (r *recipeRepo) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	cur, ok := r.st.recipes[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.st.recipes, id)
	for _, ks := range r.st.kinds {
		delete(ks.joins, id)
	}
	return nil
}

type attributeRepo struct {
	st   *state
	kind model.AttributeKind
	now  func() time.Time
}

func (r *attributeRepo) ks() *kindState { return r.st.kinds[r.kind] }

func (r *attributeRepo) GetOrCreate(_ context.Context, ownerID uint64, name string) (*model.Attribute, bool, error) {
	ks := r.ks()
	if id, ok := ks.byName[attrKey{ownerID, name}]; ok {
		a := ks.byID[id]
		return &a, false, nil
	}
	a := model.Attribute{ID: r.st.next(), Kind: r.kind, OwnerID: ownerID, Name: name, CreatedAt: r.now()}
	ks.byID[a.ID] = a
	ks.byName[attrKey{ownerID, name}] = a.ID
	return &a, true, nil
}

func (r *attributeRepo) GetByIDAndOwner(_ context.Context, id, ownerID uint64) (*model.Attribute, error) {
	a, ok := r.ks().byID[id]
	if !ok || a.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *attributeRepo) assigned(a model.Attribute) bool {
	for rid, set := range r.ks().joins {
		if set[a.ID] && r.st.recipes[rid].OwnerID == a.OwnerID {
			return true
		}
	}
	return false
}

func (r *attributeRepo) ListByOwner(_ context.Context, ownerID uint64, assignedOnly bool) ([]*model.Attribute, error) {
	out := []*model.Attribute{}
	for _, a := range r.ks().byID {
		if a.OwnerID != ownerID || (assignedOnly && !r.assigned(a)) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name > out[j].Name
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *attributeRepo) Rename(_ context.Context, id, ownerID uint64, name string) error {
	ks := r.ks()
	a, ok := ks.byID[id]
	if !ok || a.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	if other, taken := ks.byName[attrKey{ownerID, name}]; taken && other != id {
		return repository.ErrConflict
	}
	delete(ks.byName, attrKey{ownerID, a.Name})
	a.Name = name
	ks.byID[id] = a
	ks.byName[attrKey{ownerID, name}] = id
	return nil
}

func (r *attributeRepo) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	ks := r.ks()
	a, ok := ks.byID[id]
	if !ok || a.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(ks.byID, id)
	delete(ks.byName, attrKey{ownerID, a.Name})
	for _, set := range ks.joins {
		delete(set, id)
	}
	return nil
}

func (r *attributeRepo) ListForRecipes(_ context.Context, recipeIDs []uint64) (map[uint64][]*model.Attribute, error) {
	ks := r.ks()
	out := make(map[uint64][]*model.Attribute, len(recipeIDs))
	for _, rid := range recipeIDs {
		ids := make([]uint64, 0, len(ks.joins[rid]))
		for aid := range ks.joins[rid] {
			ids = append(ids, aid)
		}
		if len(ids) == 0 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, aid := range ids {
			a := ks.byID[aid]
			out[rid] = append(out[rid], &a)
		}
	}
	return out, nil
}

func (r *attributeRepo) ReplaceForRecipe(_ context.Context, recipeID uint64, attrIDs []uint64) error {
	ks := r.ks()
	set := make(map[uint64]bool, len(attrIDs))
	for _, id := range attrIDs {
		if _, ok := ks.byID[id]; ok {
			set[id] = true
		}
	}
	if len(set) == 0 {
		delete(ks.joins, recipeID)
		return nil
	}
	ks.joins[recipeID] = set
	return nil
}
