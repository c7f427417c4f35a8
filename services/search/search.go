// Package search runs listing searches and browse flows against the collection.
// Every flow returns a renderable result: when the collection fails or has
// nothing to show, the bundled sample listings are returned with UsedFallback set.
package search

import (
	"context"
	"time"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/sample"
	"github.com/meghashyamc/playfinder/services/filter"
	"github.com/meghashyamc/playfinder/services/gateway"
	"github.com/meghashyamc/playfinder/services/geo"
	"github.com/meghashyamc/playfinder/services/postcode"
)

const (
	defaultMaxCandidates = 1000
	defaultFeaturedLimit = 3
	similarListingsLimit = 3
)

type Service struct {
	logger     logger.Logger
	collection db.Collection
	geocoder   postcode.Geocoder
	gateway    *gateway.Gateway

	cacheTTL      time.Duration
	maxCandidates int
	featuredLimit int
	location      *time.Location
	now           func() time.Time
}

type Option func(*Service)

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

func WithMaxCandidates(maxCandidates int) Option {
	return func(s *Service) {
		if maxCandidates > 0 {
			s.maxCandidates = maxCandidates
		}
	}
}

func WithFeaturedLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.featuredLimit = limit
		}
	}
}

// WithTimezone sets the zone used to decide which weekday "today" is.
func WithTimezone(location *time.Location) Option {
	return func(s *Service) {
		if location != nil {
			s.location = location
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(logger logger.Logger, collection db.Collection, geocoder postcode.Geocoder, gw *gateway.Gateway, opts ...Option) *Service {
	s := &Service{
		logger:        logger,
		collection:    collection,
		geocoder:      geocoder,
		gateway:       gw,
		cacheTTL:      gateway.DefaultTTL,
		maxCandidates: defaultMaxCandidates,
		featuredLimit: defaultFeaturedLimit,
		location:      time.UTC,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search resolves the location, fetches candidates, filters and ranks them.
func (s *Service) Search(ctx context.Context, criteria Criteria) Result {
	resolved, ok := s.resolveLocation(ctx, criteria.Location)
	if !ok {
		return newResult(sample.Listings(), true, ReasonInvalidLocation)
	}

	outcome := s.fetch(ctx, s.candidateQuery(criteria, resolved))
	reason := ReasonNone
	if outcome.UsedFallback {
		reason = ReasonFetchFailure
	}

	predicates, err := filter.Compose(criteria.filterCriteria(), resolved, s.now().In(s.location))
	if err != nil {
		s.logger.Error("could not compose filters", "err", err.Error())
		return newResult(sample.Listings(), true, ReasonInvalidLocation)
	}

	listings := filter.Apply(outcome.Data, predicates)
	usedFallback := outcome.UsedFallback
	if len(listings) == 0 {
		s.logger.Info("no listings matched, using sample data", "filters", filter.Kinds(predicates), "used_fallback", usedFallback)
		listings = sample.Listings()
		// an unreachable collection outranks an empty match
		if !usedFallback {
			reason = ReasonEmptyResult
		}
		usedFallback = true
	}

	origin := resolved
	if origin == nil {
		origin = criteria.Origin
	}
	if origin != nil {
		listings = geo.RankByDistance(listings, *origin)
	}

	return newResult(listings, usedFallback, reason)
}

// resolveLocation geocodes a postcode location. A location that is not a
// postcode needs no coordinates and resolves to nil.
func (s *Service) resolveLocation(ctx context.Context, location string) (*db.Coordinates, bool) {
	if location == "" || !postcode.IsValid(location) {
		return nil, true
	}

	point, err := s.geocoder.Geocode(ctx, location)
	if err != nil {
		s.logger.Warn("could not resolve postcode, using sample data", "location", location, "err", err.Error())
		return nil, false
	}

	return &db.Coordinates{Latitude: point.Latitude, Longitude: point.Longitude}, true
}

func (s *Service) candidateQuery(criteria Criteria, resolved *db.Coordinates) db.CandidateQuery {
	query := db.CandidateQuery{
		Keyword:  criteria.Keyword,
		Category: criteria.Category,
		Limit:    s.maxCandidates,
	}
	if resolved != nil {
		query.Near = resolved
		query.RadiusKm = geo.MilesToKm(criteria.RadiusMiles)
		query.NearestTo = resolved
	} else {
		query.LocationText = criteria.Location
		query.NearestTo = criteria.Origin
	}
	return query
}

// fetch runs query through the cache. Failures yield the sample listings.
func (s *Service) fetch(ctx context.Context, query db.CandidateQuery) gateway.Outcome[[]db.Listing] {
	return gateway.SafeQuery(ctx, s.logger, func(ctx context.Context) ([]db.Listing, error) {
		return gateway.Query(ctx, s.gateway, "find:"+query.CacheKey(), s.cacheTTL, func(ctx context.Context) ([]db.Listing, error) {
			return s.collection.Find(ctx, query)
		})
	}, sample.Listings())
}
