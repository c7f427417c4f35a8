package geo

import (
	"math"
	"slices"

	"github.com/meghashyamc/playfinder/db"
)

const (
	EarthRadiusKm = 6371.0
	MetersPerMile = 1609.34
)

// DistanceKm is the great-circle distance between two points given in degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

func MilesToKm(miles float64) float64 {
	return MilesToMeters(miles) / 1000
}

// Between is DistanceKm for two coordinate pairs.
func Between(a, b db.Coordinates) float64 {
	return DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// RankByDistance returns a copy of listings ordered nearest first from origin.
// Ties keep their input order. Listings without coordinates go last, in input order.
func RankByDistance(listings []db.Listing, origin db.Coordinates) []db.Listing {
	type ranked struct {
		listing  db.Listing
		distance float64
		located  bool
	}

	entries := make([]ranked, len(listings))
	for i, listing := range listings {
		entries[i] = ranked{listing: listing}
		if listing.Coordinates != nil {
			entries[i].distance = Between(origin, *listing.Coordinates)
			entries[i].located = true
		}
	}

	slices.SortStableFunc(entries, func(a, b ranked) int {
		switch {
		case a.located && !b.located:
			return -1
		case !a.located && b.located:
			return 1
		case !a.located && !b.located:
			return 0
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		default:
			return 0
		}
	})

	result := make([]db.Listing, len(entries))
	for i, entry := range entries {
		result[i] = entry.listing
	}
	return result
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
