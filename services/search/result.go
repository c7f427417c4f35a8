package search

import (
	"errors"

	"github.com/meghashyamc/playfinder/db"
)

// Reason says why a result is not the plain answer to the request.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidLocation   Reason = "invalid_location"
	ReasonFetchFailure      Reason = "fetch_failure"
	ReasonEmptyResult       Reason = "empty_result"
	ReasonGeolocationDenied Reason = "geolocation_denied"
)

var (
	ErrInvalidLocation   = errors.New("location could not be resolved")
	ErrFetchFailure      = errors.New("listings could not be fetched")
	ErrEmptyResult       = errors.New("no listings matched")
	ErrGeolocationDenied = errors.New("device location unavailable")
)

const (
	NoticeInvalidLocation   = "Invalid postcode entered"
	NoticeFetchFailure      = "Failed to load soft play areas. Using sample data..."
	NoticeEmptyResult       = "No results found - showing sample data"
	NoticeGeolocationDenied = "Location access denied. Showing all soft play areas instead."
	NoticeSampleData        = "Displaying sample data for demonstration purposes."
)

// Err is the sentinel error for r, or nil for ReasonNone.
func (r Reason) Err() error {
	switch r {
	case ReasonInvalidLocation:
		return ErrInvalidLocation
	case ReasonFetchFailure:
		return ErrFetchFailure
	case ReasonEmptyResult:
		return ErrEmptyResult
	case ReasonGeolocationDenied:
		return ErrGeolocationDenied
	default:
		return nil
	}
}

func (r Reason) Notice() string {
	switch r {
	case ReasonInvalidLocation:
		return NoticeInvalidLocation
	case ReasonFetchFailure:
		return NoticeFetchFailure
	case ReasonEmptyResult:
		return NoticeEmptyResult
	case ReasonGeolocationDenied:
		return NoticeGeolocationDenied
	default:
		return ""
	}
}

// Result is what every listing flow returns. UsedFallback is set whenever
// Listings came from the bundled sample data instead of the collection.
type Result struct {
	Listings     []db.Listing `json:"listings"`
	UsedFallback bool         `json:"used_fallback"`
	Notice       string       `json:"notice,omitempty"`
	Reason       Reason       `json:"reason,omitempty"`
	Generation   uint64       `json:"generation,omitempty"`
}

func newResult(listings []db.Listing, usedFallback bool, reason Reason) Result {
	result := Result{
		Listings:     listings,
		UsedFallback: usedFallback,
		Reason:       reason,
		Notice:       reason.Notice(),
	}
	if result.Notice == "" && usedFallback {
		result.Notice = NoticeSampleData
	}
	return result
}

// ListingResult is a single listing with others from the same city.
type ListingResult struct {
	Listing      db.Listing   `json:"listing"`
	Similar      []db.Listing `json:"similar"`
	UsedFallback bool         `json:"used_fallback"`
	Notice       string       `json:"notice,omitempty"`
}

type CountsResult struct {
	Counts       []db.CityCount `json:"counts"`
	UsedFallback bool           `json:"used_fallback"`
	Notice       string         `json:"notice,omitempty"`
}
