package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/sample"
	"github.com/meghashyamc/playfinder/services/geo"
	"github.com/stretchr/testify/require"
)

var errCollectionDown = errors.New("collection unavailable")

func TestSearch(t *testing.T) {
	testCases := []struct {
		name                 string
		params               Params
		expectedIDs          []int64
		expectedUsedFallback bool
		expectedReason       Reason
	}{
		{
			name:        "NoCriteriaKeepsCollectionOrder",
			params:      Params{},
			expectedIDs: []int64{10, 11, 12, 13, 14},
		},
		{
			name:        "Keyword",
			params:      Params{Keyword: "PLAY"},
			expectedIDs: []int64{10, 12, 13},
		},
		{
			name:        "LocationText",
			params:      Params{Location: "london"},
			expectedIDs: []int64{10, 13},
		},
		{
			name:        "PostcodeRadiusRankedByDistance",
			params:      Params{Location: "sw1a 1aa", RadiusMiles: 60},
			expectedIDs: []int64{10, 14},
		},
		{
			name:        "CategoryAndFeatures",
			params:      Params{Category: "Soft Play", Features: []string{"Parking"}},
			expectedIDs: []int64{11},
		},
		{
			name:        "RatingBuckets",
			params:      Params{Ratings: []int{4}},
			expectedIDs: []int64{10, 11, 12, 14},
		},
		{
			name:        "DeviceOriginRanks",
			params:      Params{Origin: &manchester},
			expectedIDs: []int64{11, 12, 14, 10, 13},
		},
		{
			name:                 "NothingMatches",
			params:               Params{Keyword: "laser tag"},
			expectedIDs:          []int64{1, 2, 3},
			expectedUsedFallback: true,
			expectedReason:       ReasonEmptyResult,
		},
		{
			name:                 "PostcodeNotFound",
			params:               Params{Location: "EC1A 1BB"},
			expectedIDs:          []int64{1, 2, 3},
			expectedUsedFallback: true,
			expectedReason:       ReasonInvalidLocation,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			service, _ := newTestService(&fakeCollection{listings: liveListings()})

			result := service.Search(context.Background(), mustCriteria(t, testCase.params))
			assert.Equal(testCase.expectedIDs, listingIDs(result.Listings))
			assert.Equal(testCase.expectedUsedFallback, result.UsedFallback)
			assert.Equal(testCase.expectedReason, result.Reason)
			assert.Equal(testCase.expectedReason.Notice(), result.Notice)
		})
	}
}

func TestSearchEmptyCollectionReturnsSample(t *testing.T) {
	assert := require.New(t)
	service, _ := newTestService(&fakeCollection{})

	result := service.Search(context.Background(), mustCriteria(t, Params{Keyword: "play"}))
	assert.True(result.UsedFallback)
	assert.Equal(sample.Listings(), result.Listings)
	assert.Equal(ReasonEmptyResult, result.Reason)
	assert.Equal("No results found - showing sample data", result.Notice)
}

func TestSearchUnreachableGeocoder(t *testing.T) {
	assert := require.New(t)
	collection := &fakeCollection{listings: liveListings()}
	service, geocoder := newTestService(collection)

	result := service.Search(context.Background(), mustCriteria(t, Params{Location: "EC1A 1BB"}))
	assert.True(result.UsedFallback)
	assert.NotEmpty(result.Listings)
	assert.Equal(ReasonInvalidLocation, result.Reason)
	assert.True(errors.Is(result.Reason.Err(), ErrInvalidLocation))
	assert.Equal(1, geocoder.calls)
	assert.Equal(0, collection.FindCalls(), "no fetch after a failed geocode")
}

func TestSearchFetchFailure(t *testing.T) {
	testCases := []struct {
		name           string
		collection     *fakeCollection
		params         Params
		expectedIDs    []int64
		expectedReason Reason
	}{
		{
			name:           "SampleIsFiltered",
			collection:     &fakeCollection{err: errCollectionDown},
			params:         Params{Keyword: "monkeys"},
			expectedIDs:    []int64{1},
			expectedReason: ReasonFetchFailure,
		},
		{
			name:           "FilteredSampleEmptyStillReportsFailure",
			collection:     &fakeCollection{err: errCollectionDown},
			params:         Params{Keyword: "laser tag"},
			expectedIDs:    []int64{1, 2, 3},
			expectedReason: ReasonFetchFailure,
		},
		{
			name:           "Panic",
			collection:     &fakeCollection{panics: true},
			params:         Params{},
			expectedIDs:    []int64{1, 2, 3},
			expectedReason: ReasonFetchFailure,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			service, _ := newTestService(testCase.collection)

			result := service.Search(context.Background(), mustCriteria(t, testCase.params))
			assert.True(result.UsedFallback)
			assert.Equal(testCase.expectedIDs, listingIDs(result.Listings))
			assert.Equal(testCase.expectedReason, result.Reason)
			assert.Equal(testCase.expectedReason.Notice(), result.Notice)
		})
	}
}

func TestSearchNarrowsCandidateQuery(t *testing.T) {
	assert := require.New(t)
	collection := &fakeCollection{listings: liveListings()}
	service, _ := newTestService(collection, WithMaxCandidates(50))

	service.Search(context.Background(), mustCriteria(t, Params{Keyword: "play", Category: "Café", Location: "SW1A 1AA", RadiusMiles: 5}))
	service.Search(context.Background(), mustCriteria(t, Params{Location: "london"}))

	assert.Len(collection.queries, 2)
	byPostcode := collection.queries[0]
	assert.Equal("play", byPostcode.Keyword)
	assert.Equal("Café", byPostcode.Category)
	assert.Equal(&buckinghamPalace, byPostcode.Near)
	assert.InDelta(geo.MilesToKm(5), byPostcode.RadiusKm, 1e-9)
	assert.Empty(byPostcode.LocationText)
	assert.Equal(50, byPostcode.Limit)

	byText := collection.queries[1]
	assert.Equal("london", byText.LocationText)
	assert.Nil(byText.Near)
}

func TestSearchCachesCollectionResults(t *testing.T) {
	assert := require.New(t)
	collection := &fakeCollection{listings: liveListings()}
	service, _ := newTestService(collection)
	criteria := mustCriteria(t, Params{Keyword: "play"})

	first := service.Search(context.Background(), criteria)
	second := service.Search(context.Background(), criteria)

	assert.Equal(first, second)
	assert.Equal(1, collection.FindCalls())
}

func TestSearchDoesNotMutateCachedListings(t *testing.T) {
	assert := require.New(t)
	collection := &fakeCollection{listings: liveListings()}
	service, _ := newTestService(collection)

	first := service.Search(context.Background(), mustCriteria(t, Params{}))
	first.Listings[0], first.Listings[4] = first.Listings[4], first.Listings[0]

	second := service.Search(context.Background(), mustCriteria(t, Params{}))
	assert.Equal([]int64{10, 11, 12, 13, 14}, listingIDs(second.Listings))
	assert.Equal(1, collection.FindCalls())
}

func TestSearchOrdersCandidatesFromOrigin(t *testing.T) {
	assert := require.New(t)
	collection := &fakeCollection{listings: liveListings()}
	service, _ := newTestService(collection, WithMaxCandidates(1))

	result := service.Search(context.Background(), mustCriteria(t, Params{Origin: &manchester}))
	assert.Equal([]int64{11}, listingIDs(result.Listings))
	assert.Equal(&manchester, collection.queries[0].NearestTo)

	service.Search(context.Background(), mustCriteria(t, Params{Location: "SW1A 1AA"}))
	assert.Equal(&buckinghamPalace, collection.queries[1].NearestTo)
}

func TestSearchOpenTodayUsesTimezone(t *testing.T) {
	assert := require.New(t)

	// 23:30 UTC on Monday is already Tuesday an hour east
	service, _ := newTestService(&fakeCollection{listings: liveListings()}, WithTimezone(time.FixedZone("BST", 3600)))
	result := service.Search(context.Background(), mustCriteria(t, Params{OpenToday: true}))
	assert.Equal([]int64{10, 12, 13, 14}, listingIDs(result.Listings))

	service, _ = newTestService(&fakeCollection{listings: liveListings()})
	result = service.Search(context.Background(), mustCriteria(t, Params{OpenToday: true}))
	assert.Equal([]int64{10, 11, 13, 14}, listingIDs(result.Listings))
}

func TestSearchEmptyResultIsRankedFromOrigin(t *testing.T) {
	assert := require.New(t)
	service, _ := newTestService(&fakeCollection{})

	result := service.Search(context.Background(), mustCriteria(t, Params{Origin: &manchester}))
	assert.True(result.UsedFallback)
	assert.Equal([]int64{2, 3, 1}, listingIDs(result.Listings))
}

func TestNewCriteria(t *testing.T) {
	testCases := []struct {
		name          string
		params        Params
		expected      Criteria
		expectedField string
	}{
		{
			name:     "Defaults",
			params:   Params{},
			expected: Criteria{RadiusMiles: DefaultRadiusMiles, Features: []string{}, Ratings: []int{}},
		},
		{
			name: "Cleaned",
			params: Params{
				Keyword:     "  soft play ",
				Location:    " M1 1AE",
				RadiusMiles: 2.5,
				Features:    []string{"Café", " ", "Parking", "Café"},
				Ratings:     []int{5, 4, 5},
				Origin:      &db.Coordinates{Latitude: 53.4, Longitude: -2.2},
			},
			expected: Criteria{
				Keyword:     "soft play",
				Location:    "M1 1AE",
				RadiusMiles: 2.5,
				Features:    []string{"Café", "Parking"},
				Ratings:     []int{4, 5},
				Origin:      &db.Coordinates{Latitude: 53.4, Longitude: -2.2},
			},
		},
		{name: "NegativeRadius", params: Params{RadiusMiles: -1}, expectedField: "radius"},
		{name: "RatingTooHigh", params: Params{Ratings: []int{6}}, expectedField: "ratings"},
		{name: "RatingNegative", params: Params{Ratings: []int{-1}}, expectedField: "ratings"},
		{name: "OriginOutOfRange", params: Params{Origin: &db.Coordinates{Latitude: 91}}, expectedField: "origin"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			criteria, err := NewCriteria(testCase.params)
			if testCase.expectedField != "" {
				assert.True(errors.Is(err, ErrInvalidCriteria))
				var criteriaErr *CriteriaError
				assert.True(errors.As(err, &criteriaErr))
				assert.Equal(testCase.expectedField, criteriaErr.Field)
				return
			}
			assert.NoError(err)
			assert.Equal(testCase.expected, criteria)
		})
	}
}

func TestNewCriteriaCopiesInput(t *testing.T) {
	assert := require.New(t)
	origin := db.Coordinates{Latitude: 51.5, Longitude: -0.1}
	ratings := []int{4}
	criteria := mustCriteria(t, Params{Ratings: ratings, Origin: &origin})

	ratings[0] = 1
	origin.Latitude = 0
	assert.Equal([]int{4}, criteria.Ratings)
	assert.Equal(51.5, criteria.Origin.Latitude)
}
