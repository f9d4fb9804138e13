package wander

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wanderapp/wander-go/internal/gateway"
	"github.com/wanderapp/wander-go/internal/types"
)

const (
	attractionsTable = "attractions"
	favoritesTable   = "favorites"
	nearbyRPC        = "attractions_within_radius"
)

// attractionGateway is the slice of the remote gateway the cache needs.
type attractionGateway interface {
	Select(ctx context.Context, table string, opts ...gateway.QueryOption) ([]json.RawMessage, error)
	SelectFavorites(ctx context.Context, userID string) ([]types.FavoriteEdge, error)
	Insert(ctx context.Context, table string, row any) error
	Delete(ctx context.Context, table string, opts ...gateway.QueryOption) error
	RPC(ctx context.Context, fn string, args any) ([]json.RawMessage, error)
}

// AttractionCache holds the current result set of attractions and the
// active user's favorite set. Favorite membership is always
// server-confirmed: AddFavorite and RemoveFavorite return a definitive
// result so the UI can toggle optimistically and roll back on failure; no
// unconfirmed edge is ever buffered here.
type AttractionCache struct {
	gw   attractionGateway
	exec executor
	hub  *Hub
	log  zerolog.Logger

	mu          sync.RWMutex
	attractions []types.Attraction
	favorites   []types.Attraction
	lastErr     string
	loading     int
}

func newAttractionCache(gw attractionGateway, exec executor, hub *Hub, log zerolog.Logger) *AttractionCache {
	return &AttractionCache{gw: gw, exec: exec, hub: hub, log: log}
}

// Fetch replaces the cached attraction list, optionally filtered by exact
// category match. On failure the previous list is left untouched and the
// error is recorded.
func (c *AttractionCache) Fetch(ctx context.Context, category string) error {
	c.begin()
	defer c.end()

	opts := []gateway.QueryOption{gateway.OrderBy("name", false)}
	if category != "" {
		opts = append(opts, gateway.Eq("category", category))
	}
	rows, err := c.gw.Select(ctx, attractionsTable, opts...)
	cacheRefreshesTotal.WithLabelValues("fetch", resultLabel(err)).Inc()
	if err != nil {
		c.fail(err)
		return err
	}
	c.replaceAttractions(c.decodeAttractions(rows))
	return nil
}

// Search replaces the cached list with attractions whose name, description,
// category or subcategory contains query (case-insensitive), AND-combined
// with the category filter when given. An empty query behaves like Fetch.
func (c *AttractionCache) Search(ctx context.Context, query, category string) error {
	if query == "" {
		return c.Fetch(ctx, category)
	}

	c.begin()
	defer c.end()

	opts := []gateway.QueryOption{
		gateway.OrContains(query, "name", "description", "category", "subcategory"),
		gateway.OrderBy("name", false),
	}
	if category != "" {
		opts = append(opts, gateway.Eq("category", category))
	}
	rows, err := c.gw.Select(ctx, attractionsTable, opts...)
	cacheRefreshesTotal.WithLabelValues("search", resultLabel(err)).Inc()
	if err != nil {
		c.fail(err)
		return err
	}
	c.replaceAttractions(c.decodeAttractions(rows))
	return nil
}

// FetchNearby issues the radius lookup RPC. When it fails the cache falls
// back to an unfiltered Fetch so the UI is never left empty just because
// the geo query broke.
func (c *AttractionCache) FetchNearby(ctx context.Context, lat, lon, radiusKm float64) error {
	c.begin()

	args := map[string]float64{"lat": lat, "lon": lon, "radius_km": radiusKm}
	rows, err := c.gw.RPC(ctx, nearbyRPC, args)
	cacheRefreshesTotal.WithLabelValues("nearby", resultLabel(err)).Inc()
	if err != nil {
		c.end()
		c.log.Warn().Err(err).Msg("nearby lookup failed, falling back to full fetch")
		return c.Fetch(ctx, "")
	}
	defer c.end()
	c.replaceAttractions(c.decodeAttractions(rows))
	return nil
}

// FetchFavorites replaces the cached favorites list for userID with a
// two-step read: favorite edges first, then the referenced attractions in
// one batched request. An empty edge set yields an empty list without the
// second request.
func (c *AttractionCache) FetchFavorites(ctx context.Context, userID string) error {
	if err := types.ValidateID("user id", userID); err != nil {
		c.fail(err)
		return err
	}

	c.begin()
	defer c.end()

	edges, err := c.gw.SelectFavorites(ctx, userID)
	cacheRefreshesTotal.WithLabelValues("favorites", resultLabel(err)).Inc()
	if err != nil {
		c.fail(err)
		return err
	}
	if len(edges) == 0 {
		c.replaceFavorites(nil)
		return nil
	}

	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.AttractionID)
	}
	rows, err := c.gw.Select(ctx, attractionsTable, gateway.In("id", ids))
	if err != nil {
		c.fail(err)
		return err
	}
	c.replaceFavorites(c.decodeAttractions(rows))
	return nil
}

// AddFavorite writes a favorite edge remotely. On success, if the
// attraction is already in the fetched list and not yet in the favorites
// list, it is appended locally to avoid a re-fetch. Nothing is applied
// before the server confirms, so there is nothing to roll back on failure.
func (c *AttractionCache) AddFavorite(ctx context.Context, attractionID, userID string) bool {
	if err := types.ValidateID("attraction id", attractionID); err != nil {
		c.fail(err)
		return false
	}
	if err := types.ValidateID("user id", userID); err != nil {
		c.fail(err)
		return false
	}

	c.begin()
	defer c.end()

	err := c.exec.Do(ctx, "favorites/"+userID, func(ctx context.Context) error {
		return c.gw.Insert(ctx, favoritesTable, types.NewFavorite{
			UserID:       userID,
			AttractionID: attractionID,
		})
	})
	mutationsTotal.WithLabelValues("favorite_add", resultLabel(err)).Inc()
	if err != nil {
		c.fail(err)
		return false
	}

	c.mu.Lock()
	if a, ok := findAttraction(c.attractions, attractionID); ok {
		if _, dup := findAttraction(c.favorites, attractionID); !dup {
			c.favorites = append(c.favorites, a)
		}
	}
	c.mu.Unlock()
	c.hub.publish(EventFavoritesUpdated)
	return true
}

// RemoveFavorite deletes the edge matching both identifiers. Removing an
// already-absent edge succeeds: the backend deletes zero rows and the local
// list is unaffected.
func (c *AttractionCache) RemoveFavorite(ctx context.Context, attractionID, userID string) bool {
	if err := types.ValidateID("attraction id", attractionID); err != nil {
		c.fail(err)
		return false
	}
	if err := types.ValidateID("user id", userID); err != nil {
		c.fail(err)
		return false
	}

	c.begin()
	defer c.end()

	err := c.exec.Do(ctx, "favorites/"+userID, func(ctx context.Context) error {
		return c.gw.Delete(ctx, favoritesTable,
			gateway.Eq("user_id", userID),
			gateway.Eq("attraction_id", attractionID),
		)
	})
	mutationsTotal.WithLabelValues("favorite_remove", resultLabel(err)).Inc()
	if err != nil {
		c.fail(err)
		return false
	}

	c.mu.Lock()
	for i, a := range c.favorites {
		if a.ID == attractionID {
			c.favorites = append(c.favorites[:i], c.favorites[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.hub.publish(EventFavoritesUpdated)
	return true
}

// IsFavorite is a local-only membership test against the cached favorites
// list, for instantaneous UI feedback. No network call is made.
func (c *AttractionCache) IsFavorite(attractionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := findAttraction(c.favorites, attractionID)
	return ok
}

// Attractions returns a snapshot of the current result set.
func (c *AttractionCache) Attractions() []types.Attraction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Attraction, len(c.attractions))
	copy(out, c.attractions)
	return out
}

// Favorites returns a snapshot of the current favorites list.
func (c *AttractionCache) Favorites() []types.Attraction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Attraction, len(c.favorites))
	copy(out, c.favorites)
	return out
}

// Err returns the message of the last failed operation, or "".
func (c *AttractionCache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Loading reports whether an operation is currently in flight.
func (c *AttractionCache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

// ------------------------- internals -------------------------

// decodeAttractions decodes rows individually, skipping malformed records
// so one corrupt row cannot blank the whole list.
func (c *AttractionCache) decodeAttractions(rows []json.RawMessage) []types.Attraction {
	out := make([]types.Attraction, 0, len(rows))
	for _, raw := range rows {
		var a types.Attraction
		if err := json.Unmarshal(raw, &a); err != nil || a.ID == "" {
			c.log.Warn().Err(err).Msg("skipping malformed attraction row")
			continue
		}
		out = append(out, a)
	}
	return out
}

func (c *AttractionCache) replaceAttractions(list []types.Attraction) {
	c.mu.Lock()
	c.attractions = list
	c.mu.Unlock()
	c.hub.publish(EventAttractionsUpdated)
}

func (c *AttractionCache) replaceFavorites(list []types.Attraction) {
	c.mu.Lock()
	c.favorites = dedupeByID(list)
	c.mu.Unlock()
	c.hub.publish(EventFavoritesUpdated)
}

func (c *AttractionCache) begin() {
	c.mu.Lock()
	c.lastErr = ""
	c.loading++
	c.mu.Unlock()
}

func (c *AttractionCache) end() {
	c.mu.Lock()
	c.loading--
	c.mu.Unlock()
}

func (c *AttractionCache) fail(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.log.Debug().Err(err).Msg("attraction cache operation failed")
}

func findAttraction(list []types.Attraction, id string) (types.Attraction, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return types.Attraction{}, false
}

// dedupeByID keeps the first entry per attraction identifier, preserving
// order. The favorites list must never hold duplicates.
func dedupeByID(list []types.Attraction) []types.Attraction {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, a := range list {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
