// Package filter holds the listing predicates a search composes. Each predicate
// is independent; a listing is kept only when every active predicate matches.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/services/geo"
	"github.com/meghashyamc/playfinder/services/postcode"
)

// ErrUnresolvedLocation is returned when a postcode location arrives without coordinates.
var ErrUnresolvedLocation = errors.New("postcode location has not been resolved")

type Kind string

const (
	KindKeyword   Kind = "keyword"
	KindLocation  Kind = "location"
	KindCategory  Kind = "category"
	KindFeatures  Kind = "features"
	KindRating    Kind = "rating"
	KindMinRating Kind = "min_rating"
	KindAgeRange  Kind = "age_range"
	KindOpenToday Kind = "open_today"
)

type Predicate interface {
	Kind() Kind
	Match(listing db.Listing) bool
}

// Criteria is the filter-relevant part of a search request.
type Criteria struct {
	Keyword     string
	Location    string
	RadiusMiles float64
	Category    string
	Features    []string
	Ratings     []int
	// MinRating keeps listings rated at least this much. Zero disables it.
	MinRating float64
	AgeRanges []string
	OpenToday bool
}

type Keyword struct {
	Text string
}

func (Keyword) Kind() Kind { return KindKeyword }

func (p Keyword) Match(listing db.Listing) bool {
	needle := strings.ToLower(p.Text)
	return strings.Contains(strings.ToLower(listing.Name), needle) ||
		strings.Contains(strings.ToLower(listing.Description), needle)
}

// Location matches by radius when Origin is set, otherwise by city or postcode text.
type Location struct {
	Text        string
	Origin      *db.Coordinates
	RadiusMiles float64
}

func (Location) Kind() Kind { return KindLocation }

func (p Location) Match(listing db.Listing) bool {
	if p.Origin != nil {
		if listing.Coordinates == nil {
			return false
		}
		return geo.Between(*p.Origin, *listing.Coordinates) <= geo.MilesToKm(p.RadiusMiles)
	}

	needle := strings.ToLower(p.Text)
	return strings.Contains(strings.ToLower(listing.City), needle) ||
		strings.Contains(strings.ToLower(listing.Postcode), needle)
}

type Category struct {
	Tag string
}

func (Category) Kind() Kind { return KindCategory }

func (p Category) Match(listing db.Listing) bool {
	return listing.HasFeature(p.Tag)
}

// Features requires every tag.
type Features struct {
	Tags []string
}

func (Features) Kind() Kind { return KindFeatures }

func (p Features) Match(listing db.Listing) bool {
	for _, tag := range p.Tags {
		if !listing.HasFeature(tag) {
			return false
		}
	}
	return true
}

// Rating keeps listings whose whole-star bucket is one of Buckets.
// A bucket of 4 keeps 4.0 through 4.9 and nothing above or below.
type Rating struct {
	Buckets []int
}

func (Rating) Kind() Kind { return KindRating }

func (p Rating) Match(listing db.Listing) bool {
	return slices.Contains(p.Buckets, listing.RatingBucket())
}

// MinRating keeps rated listings at or above Min. Unrated listings never match.
type MinRating struct {
	Min float64
}

func (MinRating) Kind() Kind { return KindMinRating }

func (p MinRating) Match(listing db.Listing) bool {
	return listing.Rating > 0 && listing.Rating >= p.Min
}

// AgeRange keeps listings with a feature mentioning any of Ranges, such as "0-2 years".
type AgeRange struct {
	Ranges []string
}

func (AgeRange) Kind() Kind { return KindAgeRange }

func (p AgeRange) Match(listing db.Listing) bool {
	for _, ageRange := range p.Ranges {
		for _, feature := range listing.Features {
			if strings.Contains(feature, ageRange) {
				return true
			}
		}
	}
	return false
}

type OpenToday struct {
	Weekday time.Weekday
}

func (OpenToday) Kind() Kind { return KindOpenToday }

func (p OpenToday) Match(listing db.Listing) bool {
	hours, ok := listing.OpeningHours[p.Weekday.String()]
	return ok && strings.TrimSpace(hours) != "" && hours != db.ClosedMarker
}

// Compose builds the active predicates for criteria. resolved is the geocoded
// point for a postcode location and is ignored otherwise. now fixes the weekday
// used by the open today predicate.
func Compose(criteria Criteria, resolved *db.Coordinates, now time.Time) ([]Predicate, error) {
	predicates := make([]Predicate, 0, 8)

	if keyword := strings.TrimSpace(criteria.Keyword); keyword != "" {
		predicates = append(predicates, Keyword{Text: keyword})
	}

	if location := strings.TrimSpace(criteria.Location); location != "" {
		if postcode.IsValid(location) {
			if resolved == nil {
				return nil, fmt.Errorf("could not filter by %q: %w", location, ErrUnresolvedLocation)
			}
			origin := *resolved
			predicates = append(predicates, Location{Text: location, Origin: &origin, RadiusMiles: criteria.RadiusMiles})
		} else {
			predicates = append(predicates, Location{Text: location})
		}
	}

	if category := strings.TrimSpace(criteria.Category); category != "" {
		predicates = append(predicates, Category{Tag: category})
	}

	if len(criteria.Features) > 0 {
		predicates = append(predicates, Features{Tags: slices.Clone(criteria.Features)})
	}

	if len(criteria.Ratings) > 0 {
		predicates = append(predicates, Rating{Buckets: slices.Clone(criteria.Ratings)})
	}

	if criteria.MinRating > 0 {
		predicates = append(predicates, MinRating{Min: criteria.MinRating})
	}

	if len(criteria.AgeRanges) > 0 {
		predicates = append(predicates, AgeRange{Ranges: slices.Clone(criteria.AgeRanges)})
	}

	if criteria.OpenToday {
		predicates = append(predicates, OpenToday{Weekday: now.Weekday()})
	}

	return predicates, nil
}

// Apply returns the listings that match every predicate, in input order.
func Apply(listings []db.Listing, predicates []Predicate) []db.Listing {
	matched := make([]db.Listing, 0, len(listings))
	for _, listing := range listings {
		if matchesAll(listing, predicates) {
			matched = append(matched, listing)
		}
	}
	return matched
}

func matchesAll(listing db.Listing, predicates []Predicate) bool {
	for _, predicate := range predicates {
		if !predicate.Match(listing) {
			return false
		}
	}
	return true
}

// Kinds lists the kinds of predicates, in order. Used for logging.
func Kinds(predicates []Predicate) []Kind {
	kinds := make([]Kind, len(predicates))
	for i, predicate := range predicates {
		kinds[i] = predicate.Kind()
	}
	return kinds
}
