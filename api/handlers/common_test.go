// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/playfinder/config"
	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/db/kvdb"
	"github.com/meghashyamc/playfinder/db/searchdb"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/gateway"
	"github.com/meghashyamc/playfinder/services/index"
	"github.com/meghashyamc/playfinder/services/postcode"
	"github.com/meghashyamc/playfinder/services/search"
	"github.com/meghashyamc/playfinder/validation"
	"github.com/stretchr/testify/require"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var (
	westminster = db.Coordinates{Latitude: 51.5010, Longitude: -0.1416}
	manchester  = db.Coordinates{Latitude: 53.4808, Longitude: -2.2426}
)

var testListings = []db.Listing{
	{ID: 101, Name: "Tumble Town", Description: "Soft play in the heart of the city", City: "London", Postcode: "SW1A 1AA", Rating: 4.2, Coordinates: &westminster, Features: []string{"Soft Play", "Café"}},
	{ID: 102, Name: "Bounce Barn", Description: "Trampolines and slides", City: "Manchester", Postcode: "M1 1AE", Rating: 4.8, Coordinates: &manchester, Features: []string{"Soft Play", "Parking"}},
	{ID: 103, Name: "Tiny Tots Den", Description: "Sensory play for babies", City: "London", Postcode: "N1 1AA", Rating: 3.6, Features: []string{"Sensory Room"}},
}

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedIDs      []int64
	expectedFallback bool
	expectedReason   string
}

// listingsEnvelope decodes every response whose data carries a listing list.
type listingsEnvelope struct {
	Data struct {
		Listings     []db.Listing `json:"listings"`
		UsedFallback bool         `json:"used_fallback"`
		Notice       string       `json:"notice"`
		Reason       string       `json:"reason"`
		Generation   uint64       `json:"generation"`
		Superseded   bool         `json:"superseded"`
	} `json:"data"`
	Errors []string `json:"errors"`
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func newTestGeocoderServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/postcodes/SW1A1AA" {
			_, _ = io.WriteString(w, `{"status":200,"result":{"latitude":51.5014,"longitude":-0.1419}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status":404,"error":"Postcode not found"}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func setupTestServer(t *testing.T, assert *require.Assertions, listings []db.Listing) *gin.Engine {

	t.Setenv("ENV", "test")
	t.Setenv("STORAGE_PATH", t.TempDir())
	t.Setenv("GEOCODER_BASE_URL", newTestGeocoderServer(t).URL)

	cfg, err := config.Load("")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	searchDB, err := searchdb.New(testLogger, cfg)
	assert.NoError(err, "could not create search database")

	kvDB, err := kvdb.New(testLogger, cfg)
	assert.NoError(err, "could not create kv database")
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	store := db.NewListingStore(testLogger, searchDB, kvDB, cfg.GetMaxCandidates())
	if len(listings) > 0 {
		assert.NoError(store.Save(listings), "could not save test listings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		assert.NoError(searchDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	cache := gateway.New(testLogger, cfg.GetCacheTTL())
	geocoder := postcode.NewClient(testLogger, cfg.GetGeocoderBaseURL(), postcode.WithRateLimit(cfg.GetGeocoderRateLimit()), postcode.WithMemo(kvDB))
	searchService := search.New(testLogger, store, geocoder, cache,
		search.WithMaxCandidates(cfg.GetMaxCandidates()),
		search.WithFeaturedLimit(cfg.GetFeaturedLimit()),
		search.WithTimezone(cfg.GetTimezone()),
	)
	importService := index.New(ctx, testLogger, store, kvDB, index.WithOnComplete(cache.ClearAll))

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupSearch(router, testLogger, searchService, search.NewTracker(cfg.GetMaxSessions(), cfg.GetSessionIdle()), validator, cfg.GetDefaultRadiusMiles())
	SetupBrowse(router, testLogger, searchService, validator)
	SetupImport(router, testLogger, importService, validator)

	return router
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func decodeListings(assert *require.Assertions, w *httptest.ResponseRecorder) listingsEnvelope {
	var envelope listingsEnvelope
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &envelope), "response was %s", w.Body.String())
	return envelope
}

func listingIDs(listings []db.Listing) []int64 {
	ids := make([]int64, 0, len(listings))
	for _, listing := range listings {
		ids = append(ids, listing.ID)
	}
	return ids
}

func runListingTestCases(t *testing.T, router *gin.Engine, endpoint string, testCases []testCase) {
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(router, assert, http.MethodGet, endpoint, testCase.requestHeaders, nil, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())

			envelope := decodeListings(assert, w)
			if testCase.expectedStatus != http.StatusOK {
				assert.NotEmpty(envelope.Errors)
				return
			}
			assert.Empty(envelope.Errors)
			assert.Equal(testCase.expectedIDs, listingIDs(envelope.Data.Listings))
			assert.Equal(testCase.expectedFallback, envelope.Data.UsedFallback)
			assert.Equal(testCase.expectedReason, envelope.Data.Reason)
		})
	}
}
