package index

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/meghashyamc/playfinder/db"
)

var ErrInvalidListing = errors.New("invalid listing")

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// normalizeListing tidies an imported listing. It rejects listings with no id,
// no name or a rating outside 0-5, and drops coordinates that are out of range.
func normalizeListing(listing db.Listing, importedAt time.Time) (db.Listing, error) {
	if listing.ID <= 0 {
		return db.Listing{}, fmt.Errorf("%w: id must be positive, got %d", ErrInvalidListing, listing.ID)
	}

	listing.Name = strings.TrimSpace(listing.Name)
	if listing.Name == "" {
		return db.Listing{}, fmt.Errorf("%w: listing %d has no name", ErrInvalidListing, listing.ID)
	}
	if math.IsNaN(listing.Rating) || listing.Rating < 0 || listing.Rating > 5 {
		return db.Listing{}, fmt.Errorf("%w: listing %d has rating %v", ErrInvalidListing, listing.ID, listing.Rating)
	}
	listing.Rating = math.Round(listing.Rating*10) / 10

	listing.Description = strings.TrimSpace(listing.Description)
	listing.Address = strings.TrimSpace(listing.Address)
	listing.City = strings.TrimSpace(listing.City)
	listing.Postcode = strings.ToUpper(strings.TrimSpace(listing.Postcode))
	if listing.ReviewCount < 0 {
		listing.ReviewCount = 0
	}

	if listing.Coordinates != nil && !validCoordinates(*listing.Coordinates) {
		listing.Coordinates = nil
	}

	listing.Features = normalizeFeatures(listing.Features)
	listing.OpeningHours = normalizeOpeningHours(listing.OpeningHours)

	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = importedAt
	}

	return listing, nil
}

func validCoordinates(point db.Coordinates) bool {
	if point.Latitude == 0 && point.Longitude == 0 {
		return false
	}
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

func normalizeFeatures(features []string) []string {
	normalized := make([]string, 0, len(features))
	seen := make(map[string]struct{}, len(features))
	for _, feature := range features {
		feature = strings.TrimSpace(feature)
		if feature == "" {
			continue
		}
		if _, ok := seen[feature]; ok {
			continue
		}
		seen[feature] = struct{}{}
		normalized = append(normalized, feature)
	}
	return normalized
}

// normalizeOpeningHours keys hours by capitalised weekday name and spells
// closed days with db.ClosedMarker.
func normalizeOpeningHours(hours map[string]string) map[string]string {
	normalized := make(map[string]string, len(hours))
	for day, value := range hours {
		name, ok := weekdayName(day)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if strings.EqualFold(value, db.ClosedMarker) {
			value = db.ClosedMarker
		}
		normalized[name] = value
	}
	return normalized
}

func weekdayName(day string) (string, bool) {
	day = strings.TrimSpace(day)
	for _, name := range weekdays {
		if strings.EqualFold(day, name) {
			return name, true
		}
	}
	return "", false
}
