package db

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// ClosedMarker is the opening hours value for a day the venue does not open.
const ClosedMarker = "Closed"

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Listing struct {
	ID           int64             `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Address      string            `json:"address"`
	City         string            `json:"city"`
	Postcode     string            `json:"postcode"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty"`
	Website      string            `json:"website,omitempty"`
	ImageURL     string            `json:"image_url,omitempty"`
	Rating       float64           `json:"rating"`
	ReviewCount  int               `json:"review_count"`
	Coordinates  *Coordinates      `json:"coordinates,omitempty"`
	Features     []string          `json:"features"`
	OpeningHours map[string]string `json:"opening_hours"`
}

// HasFeature reports whether tag is one of the listing's features. Tags are compared exactly.
func (l Listing) HasFeature(tag string) bool {
	for _, feature := range l.Features {
		if feature == tag {
			return true
		}
	}
	return false
}

// RatingBucket is the whole-star bucket a listing's rating falls in.
func (l Listing) RatingBucket() int {
	return int(math.Floor(l.Rating))
}

func (l Listing) Slug() string {
	return Slugify(l.Name)
}

var (
	nonSlugChars   = regexp.MustCompile(`[^\w\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
)

// Slugify lowercases name, drops punctuation and joins words with dashes.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	return slugWhitespace.ReplaceAllString(strings.TrimSpace(slug), "-")
}

// CityFromSlug turns a url city segment such as "milton-keynes" back into "milton keynes".
func CityFromSlug(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}

// CandidateQuery narrows the candidate set on the collection side. Every field is optional.
type CandidateQuery struct {
	Keyword      string
	LocationText string
	Category     string
	City         string
	Near         *Coordinates
	RadiusKm     float64
	ExcludeID    int64
	SortBy       SortOrder
	// NearestTo orders candidates by distance from the point before Limit is applied.
	// It is ignored when SortBy asks for rating order.
	NearestTo *Coordinates
	Limit     int
}

type SortOrder string

const (
	SortNatural    SortOrder = ""
	SortRatingDesc SortOrder = "rating_desc"
)

type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}
