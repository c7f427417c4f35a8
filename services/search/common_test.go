package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/gateway"
	"github.com/meghashyamc/playfinder/services/geo"
	"github.com/meghashyamc/playfinder/services/postcode"
)

var (
	buckinghamPalace = db.Coordinates{Latitude: 51.5014, Longitude: -0.1419}
	manchester       = db.Coordinates{Latitude: 53.4808, Longitude: -2.2426}
	birmingham       = db.Coordinates{Latitude: 52.4862, Longitude: -1.8904}
	miltonKeynes     = db.Coordinates{Latitude: 52.0406, Longitude: -0.7594}
	westminster      = db.Coordinates{Latitude: 51.5010, Longitude: -0.1416}
)

// a Monday
var testNow = time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC)

func openingHours(closedOn string) map[string]string {
	hours := make(map[string]string)
	for day := time.Sunday; day <= time.Saturday; day++ {
		hours[day.String()] = "9:00-17:00"
	}
	if closedOn != "" {
		hours[closedOn] = db.ClosedMarker
	}
	return hours
}

func liveListings() []db.Listing {
	return []db.Listing{
		{ID: 10, Name: "Tumble Town", Description: "Soft play in the heart of the city", City: "London", Postcode: "SW1A 1AA", Rating: 4.2, Coordinates: &westminster, Features: []string{"Soft Play", "Café"}, OpeningHours: openingHours("")},
		{ID: 11, Name: "Bounce Barn", Description: "Trampolines and slides", City: "Manchester", Postcode: "M1 1AE", Rating: 4.8, Coordinates: &manchester, Features: []string{"Soft Play", "Parking"}, OpeningHours: openingHours("Tuesday")},
		{ID: 12, Name: "Wiggle Woods", Description: "Woodland themed play barn", City: "Birmingham", Postcode: "B1 1AA", Rating: 4.1, Coordinates: &birmingham, Features: []string{"Café", "Parking"}, OpeningHours: openingHours("Monday")},
		{ID: 13, Name: "Tiny Tots Den", Description: "Sensory play for babies", City: "London", Postcode: "N1 1AA", Rating: 3.6, Features: []string{"Sensory Room"}, OpeningHours: openingHours("")},
		{ID: 14, Name: "Milton Mayhem", Description: "Huge indoor adventure", City: "Milton Keynes", Postcode: "MK9 1AA", Rating: 4.4, Coordinates: &miltonKeynes, Features: []string{"Soft Play"}, OpeningHours: openingHours("")},
	}
}

type fakeCollection struct {
	mu        sync.Mutex
	listings  []db.Listing
	counts    []db.CityCount
	err       error
	panics    bool
	findCalls int
	queries   []db.CandidateQuery
}

func (c *fakeCollection) Find(ctx context.Context, query db.CandidateQuery) ([]db.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findCalls++
	c.queries = append(c.queries, query)
	if c.panics {
		panic("collection exploded")
	}
	if c.err != nil {
		return nil, c.err
	}

	found := make([]db.Listing, 0, len(c.listings))
	for _, listing := range c.listings {
		if query.City != "" && !strings.EqualFold(listing.City, query.City) {
			continue
		}
		if query.ExcludeID != 0 && listing.ID == query.ExcludeID {
			continue
		}
		found = append(found, listing)
	}
	switch {
	case query.SortBy == db.SortRatingDesc:
		slices.SortStableFunc(found, func(a, b db.Listing) int { return cmp.Compare(b.Rating, a.Rating) })
	case query.NearestTo != nil:
		found = geo.RankByDistance(found, *query.NearestTo)
	}
	if query.Limit > 0 && len(found) > query.Limit {
		found = found[:query.Limit]
	}
	return found, nil
}

func (c *fakeCollection) Get(ctx context.Context, id int64) (*db.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	for _, listing := range c.listings {
		if listing.ID == id {
			found := listing
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", db.ErrListingNotFound, id)
}

func (c *fakeCollection) CityCounts(ctx context.Context) ([]db.CityCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.counts, nil
}

func (c *fakeCollection) FindCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findCalls
}

type fakeGeocoder struct {
	mu        sync.Mutex
	locations map[string]postcode.Location
	calls     int
}

func (g *fakeGeocoder) Geocode(ctx context.Context, code string) (postcode.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	location, ok := g.locations[postcode.Normalize(code)]
	if !ok {
		return postcode.Location{}, &postcode.LocationNotFoundError{Postcode: code, Reason: "lookup service unreachable"}
	}
	return location, nil
}

func newTestLogger() logger.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestService(collection *fakeCollection, opts ...Option) (*Service, *fakeGeocoder) {
	geocoder := &fakeGeocoder{locations: map[string]postcode.Location{
		"SW1A1AA": {Latitude: buckinghamPalace.Latitude, Longitude: buckinghamPalace.Longitude},
	}}
	testLogger := newTestLogger()
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithFeaturedLimit(3)}, opts...)
	return New(testLogger, collection, geocoder, gateway.New(testLogger, time.Minute), opts...), geocoder
}

func listingIDs(listings []db.Listing) []int64 {
	ids := make([]int64, 0, len(listings))
	for _, listing := range listings {
		ids = append(ids, listing.ID)
	}
	return ids
}

func mustCriteria(t *testing.T, params Params) Criteria {
	t.Helper()
	criteria, err := NewCriteria(params)
	if err != nil {
		t.Fatalf("could not build criteria: %s", err)
	}
	return criteria
}
