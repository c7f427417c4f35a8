package search

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/services/filter"
)

const (
	DefaultRadiusMiles = 10.0
	MinRatingBucket    = 0
	MaxRatingBucket    = 5
)

var ErrInvalidCriteria = errors.New("invalid search criteria")

type CriteriaError struct {
	Field  string
	Reason string
}

func (e *CriteriaError) Error() string {
	return fmt.Sprintf("invalid search criteria: %s %s", e.Field, e.Reason)
}

func (e *CriteriaError) Is(target error) bool {
	return target == ErrInvalidCriteria
}

// Params are the raw inputs of a search request. A zero RadiusMiles means the default radius.
type Params struct {
	Keyword     string
	Location    string
	RadiusMiles float64
	Category    string
	Features    []string
	Ratings     []int
	OpenToday   bool
	Origin      *db.Coordinates
}

// Criteria is a validated search request. Build it with NewCriteria and treat it as read only.
type Criteria struct {
	Keyword     string
	Location    string
	RadiusMiles float64
	Category    string
	Features    []string
	Ratings     []int
	OpenToday   bool
	Origin      *db.Coordinates
}

func NewCriteria(params Params) (Criteria, error) {
	radius := params.RadiusMiles
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return Criteria{}, &CriteriaError{Field: "radius", Reason: "must be a non-negative number of miles"}
	}
	if radius == 0 {
		radius = DefaultRadiusMiles
	}

	for _, rating := range params.Ratings {
		if rating < MinRatingBucket || rating > MaxRatingBucket {
			return Criteria{}, &CriteriaError{Field: "ratings", Reason: fmt.Sprintf("bucket %d is outside %d-%d", rating, MinRatingBucket, MaxRatingBucket)}
		}
	}

	var origin *db.Coordinates
	if params.Origin != nil {
		if !validCoordinates(*params.Origin) {
			return Criteria{}, &CriteriaError{Field: "origin", Reason: "is not a valid latitude and longitude"}
		}
		point := *params.Origin
		origin = &point
	}

	ratings := append(make([]int, 0, len(params.Ratings)), params.Ratings...)
	slices.Sort(ratings)

	return Criteria{
		Keyword:     strings.TrimSpace(params.Keyword),
		Location:    strings.TrimSpace(params.Location),
		RadiusMiles: radius,
		Category:    strings.TrimSpace(params.Category),
		Features:    cleanTags(params.Features),
		Ratings:     slices.Compact(ratings),
		OpenToday:   params.OpenToday,
		Origin:      origin,
	}, nil
}

func (c Criteria) filterCriteria() filter.Criteria {
	return filter.Criteria{
		Keyword:     c.Keyword,
		Location:    c.Location,
		RadiusMiles: c.RadiusMiles,
		Category:    c.Category,
		Features:    c.Features,
		Ratings:     c.Ratings,
		OpenToday:   c.OpenToday,
	}
}

// CityFilters narrow a city listing. Ratings here are minimums: the lowest
// selected bucket keeps every listing rated at or above it.
type CityFilters struct {
	AgeRanges []string
	Features  []string
	Ratings   []int
	OpenToday bool
}

func NewCityFilters(filters CityFilters) (CityFilters, error) {
	for _, rating := range filters.Ratings {
		if rating < MinRatingBucket || rating > MaxRatingBucket {
			return CityFilters{}, &CriteriaError{Field: "ratings", Reason: fmt.Sprintf("bucket %d is outside %d-%d", rating, MinRatingBucket, MaxRatingBucket)}
		}
	}

	ratings := append(make([]int, 0, len(filters.Ratings)), filters.Ratings...)
	slices.Sort(ratings)

	return CityFilters{
		AgeRanges: cleanTags(filters.AgeRanges),
		Features:  cleanTags(filters.Features),
		Ratings:   slices.Compact(ratings),
		OpenToday: filters.OpenToday,
	}, nil
}

func (f CityFilters) filterCriteria() filter.Criteria {
	criteria := filter.Criteria{
		Features:  f.Features,
		AgeRanges: f.AgeRanges,
		OpenToday: f.OpenToday,
	}
	if len(f.Ratings) > 0 {
		// a bucket of 0 still excludes unrated listings
		criteria.MinRating = math.Max(float64(slices.Min(f.Ratings)), math.SmallestNonzeroFloat64)
	}
	return criteria
}

func validCoordinates(point db.Coordinates) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

// cleanTags trims tags and drops blanks and duplicates, keeping first occurrences.
func cleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(cleaned, tag) {
			continue
		}
		cleaned = append(cleaned, tag)
	}
	return cleaned
}
