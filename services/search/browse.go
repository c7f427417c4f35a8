package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/sample"
	"github.com/meghashyamc/playfinder/services/filter"
	"github.com/meghashyamc/playfinder/services/gateway"
	"github.com/meghashyamc/playfinder/services/geo"
)

// DeviceLocation is the client's own position. Granted is false when the
// user declined or the device could not report one.
type DeviceLocation struct {
	Granted   bool
	Latitude  float64
	Longitude float64
}

func (d DeviceLocation) coordinates() (db.Coordinates, bool) {
	point := db.Coordinates{Latitude: d.Latitude, Longitude: d.Longitude}
	return point, d.Granted && validCoordinates(point)
}

// NearMe lists everything nearest first from the device. Without a device
// location it shows the top rated listings in collection order instead.
func (s *Service) NearMe(ctx context.Context, device DeviceLocation) Result {
	origin, granted := device.coordinates()

	query := db.CandidateQuery{NearestTo: &origin, Limit: s.maxCandidates}
	reason := ReasonNone
	if !granted {
		query = db.CandidateQuery{SortBy: db.SortRatingDesc, Limit: s.featuredLimit * 3}
		reason = ReasonGeolocationDenied
	}

	outcome := s.fetch(ctx, query)
	listings := slices.Clone(outcome.Data)
	usedFallback := outcome.UsedFallback
	if usedFallback {
		reason = ReasonFetchFailure
	}
	if len(listings) == 0 {
		listings = sample.Listings()
		usedFallback = true
		reason = ReasonEmptyResult
	}

	if granted {
		listings = geo.RankByDistance(listings, origin)
	}

	return newResult(listings, usedFallback, reason)
}

// Featured returns the highest rated listings. A limit of zero or less uses the configured limit.
func (s *Service) Featured(ctx context.Context, limit int) Result {
	if limit <= 0 {
		limit = s.featuredLimit
	}

	outcome := s.fetch(ctx, db.CandidateQuery{SortBy: db.SortRatingDesc, Limit: limit})
	if outcome.UsedFallback || len(outcome.Data) == 0 {
		return newResult(topRated(sample.Listings(), limit), true, ReasonNone)
	}

	return newResult(slices.Clone(outcome.Data), false, ReasonNone)
}

// City lists the listings of the city named by slug, with dashes read as spaces,
// narrowed by filters. Filters that match nothing give an empty result rather
// than sample data.
func (s *Service) City(ctx context.Context, citySlug string, filters CityFilters) Result {
	city := db.CityFromSlug(citySlug)

	listings, usedFallback := s.cityListings(ctx, city)
	if usedFallback {
		s.logger.Info("no live listings for city, using sample data", "city", city)
	}

	predicates, err := filter.Compose(filters.filterCriteria(), nil, s.now().In(s.location))
	if err != nil {
		s.logger.Error("could not compose city filters", "err", err.Error())
		return newResult(listings, usedFallback, ReasonNone)
	}

	return newResult(filter.Apply(listings, predicates), usedFallback, ReasonNone)
}

// Listing finds the listing whose name slugifies to slug in the given city,
// along with up to three others from that city.
func (s *Service) Listing(ctx context.Context, citySlug string, slug string) (ListingResult, error) {
	city := db.CityFromSlug(citySlug)

	listings, usedFallback := s.cityListings(ctx, city)
	match, found := findBySlug(listings, slug)
	if !found && !usedFallback {
		listings, usedFallback = sample.InCity(city), true
		match, found = findBySlug(listings, slug)
	}
	if !found {
		return ListingResult{}, fmt.Errorf("%w: %s/%s", db.ErrListingNotFound, citySlug, slug)
	}

	similar := s.similar(ctx, city, match, listings, usedFallback)

	result := ListingResult{Listing: match, Similar: similar, UsedFallback: usedFallback}
	if usedFallback {
		result.Notice = NoticeSampleData
	}
	return result, nil
}

// ListingByID looks a listing up by id, falling back to the sample listings.
func (s *Service) ListingByID(ctx context.Context, id int64) (ListingResult, error) {
	outcome := gateway.SafeQuery(ctx, s.logger, func(ctx context.Context) (*db.Listing, error) {
		return s.collection.Get(ctx, id)
	}, (*db.Listing)(nil))
	if outcome.Data != nil {
		similar := s.similar(ctx, outcome.Data.City, *outcome.Data, nil, false)
		return ListingResult{Listing: *outcome.Data, Similar: similar}, nil
	}

	for _, listing := range sample.Listings() {
		if listing.ID == id {
			similar := sampleSimilar(sample.InCity(listing.City), listing)
			return ListingResult{Listing: listing, Similar: similar, UsedFallback: true, Notice: NoticeSampleData}, nil
		}
	}

	return ListingResult{}, fmt.Errorf("%w: %d", db.ErrListingNotFound, id)
}

// LocationCounts returns the number of listings per city, most populated first.
func (s *Service) LocationCounts(ctx context.Context) CountsResult {
	outcome := gateway.SafeQuery(ctx, s.logger, func(ctx context.Context) ([]db.CityCount, error) {
		return gateway.Query(ctx, s.gateway, "city_counts", s.cacheTTL, s.collection.CityCounts)
	}, sample.LocationCounts())

	if outcome.UsedFallback || len(outcome.Data) == 0 {
		return CountsResult{Counts: sample.LocationCounts(), UsedFallback: true, Notice: NoticeSampleData}
	}

	return CountsResult{Counts: slices.Clone(outcome.Data)}
}

// cityListings returns the live listings of city, or the sample listings of
// city when the collection fails or has none.
func (s *Service) cityListings(ctx context.Context, city string) ([]db.Listing, bool) {
	outcome := s.fetch(ctx, db.CandidateQuery{City: city, Limit: s.maxCandidates})

	listings := make([]db.Listing, 0, len(outcome.Data))
	if !outcome.UsedFallback {
		for _, listing := range outcome.Data {
			if strings.EqualFold(listing.City, city) {
				listings = append(listings, listing)
			}
		}
	}
	if len(listings) == 0 {
		return sample.InCity(city), true
	}

	return listings, false
}

func (s *Service) similar(ctx context.Context, city string, match db.Listing, cityListings []db.Listing, usedFallback bool) []db.Listing {
	if usedFallback {
		return sampleSimilar(cityListings, match)
	}

	outcome := s.fetch(ctx, db.CandidateQuery{City: city, ExcludeID: match.ID, Limit: similarListingsLimit})
	if outcome.UsedFallback {
		return make([]db.Listing, 0)
	}
	return slices.Clone(outcome.Data)
}

func sampleSimilar(cityListings []db.Listing, match db.Listing) []db.Listing {
	similar := make([]db.Listing, 0, similarListingsLimit)
	for _, listing := range cityListings {
		if listing.ID == match.ID {
			continue
		}
		similar = append(similar, listing)
		if len(similar) == similarListingsLimit {
			break
		}
	}
	return similar
}

func findBySlug(listings []db.Listing, slug string) (db.Listing, bool) {
	for _, listing := range listings {
		if listing.Slug() == slug {
			return listing, true
		}
	}
	return db.Listing{}, false
}

func topRated(listings []db.Listing, limit int) []db.Listing {
	slices.SortStableFunc(listings, func(a, b db.Listing) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	if len(listings) > limit {
		listings = listings[:limit]
	}
	return listings
}
