// Package sample holds the bundled listings shown whenever live data is unavailable or empty.
package sample

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/meghashyamc/playfinder/db"
)

//go:embed listings.json
var listingsJSON []byte

var listings = mustLoad(listingsJSON)

// locationCounts are the per-city counts shown when the collection cannot be counted.
var locationCounts = []db.CityCount{
	{City: "London", Count: 12},
	{City: "Manchester", Count: 8},
	{City: "Birmingham", Count: 6},
	{City: "Edinburgh", Count: 4},
}

func mustLoad(data []byte) []db.Listing {
	var parsed []db.Listing
	if err := json.Unmarshal(data, &parsed); err != nil {
		panic(fmt.Sprintf("sample listings are malformed: %s", err))
	}
	return parsed
}

// Listings returns a deep copy of the sample dataset; callers may reorder or edit it freely.
func Listings() []db.Listing {
	out := make([]db.Listing, len(listings))
	for i, listing := range listings {
		out[i] = clone(listing)
	}
	return out
}

func InCity(city string) []db.Listing {
	out := make([]db.Listing, 0)
	for _, listing := range listings {
		if strings.EqualFold(listing.City, city) {
			out = append(out, clone(listing))
		}
	}
	return out
}

func clone(listing db.Listing) db.Listing {
	listing.Features = slices.Clone(listing.Features)
	listing.OpeningHours = maps.Clone(listing.OpeningHours)
	if listing.Coordinates != nil {
		point := *listing.Coordinates
		listing.Coordinates = &point
	}
	return listing
}

func LocationCounts() []db.CityCount {
	out := make([]db.CityCount, len(locationCounts))
	copy(out, locationCounts)
	return out
}
