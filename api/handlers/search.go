package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/search"
	"github.com/meghashyamc/playfinder/validation"
)

const HeaderSessionID = "X-Session-ID"

type SearchRequest struct {
	Keyword   string   `form:"keyword" json:"keyword" validate:"max=200"`
	Location  string   `form:"location" json:"location" validate:"valid_location"`
	Category  string   `form:"category" json:"category" validate:"max=100"`
	Radius    float64  `form:"radius" json:"radius" validate:"min=0,max=500"`
	Features  string   `form:"features" json:"features" validate:"max=500"`
	Ratings   string   `form:"ratings" json:"ratings" validate:"valid_rating_list"`
	OpenToday bool     `form:"open_today" json:"open_today"`
	Lat       *float64 `form:"lat" json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng       *float64 `form:"lng" json:"lng" validate:"omitempty,min=-180,max=180"`
}

func (r *SearchRequest) setDefaults(defaultRadiusMiles float64) {
	if r.Radius == 0 {
		r.Radius = defaultRadiusMiles
	}
}

func (r *SearchRequest) params() (search.Params, error) {
	ratings, err := validation.ParseRatingList(r.Ratings)
	if err != nil {
		return search.Params{}, err
	}

	params := search.Params{
		Keyword:     r.Keyword,
		Location:    r.Location,
		RadiusMiles: r.Radius,
		Category:    r.Category,
		Features:    validation.ParseList(r.Features),
		Ratings:     ratings,
		OpenToday:   r.OpenToday,
	}
	if r.Lat != nil && r.Lng != nil {
		params.Origin = &db.Coordinates{Latitude: *r.Lat, Longitude: *r.Lng}
	}
	return params, nil
}

type SearchResponse struct {
	search.Result
	Superseded bool `json:"superseded"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, tracker *search.Tracker, validator *validation.Validator, defaultRadiusMiles float64) {
	router.GET("/search", handleSearch(service, tracker, logger, validator, defaultRadiusMiles))
}

func handleSearch(service *search.Service, tracker *search.Tracker, logger logger.Logger, validator *validation.Validator, defaultRadiusMiles float64) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request query parameters")
			return
		}
		request.setDefaults(defaultRadiusMiles)

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		params, err := request.params()
		if err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}
		criteria, err := search.NewCriteria(params)
		if err != nil {
			logger.Warn("rejected search criteria", "err", err.Error())
			status := http.StatusInternalServerError
			if errors.Is(err, search.ErrInvalidCriteria) {
				status = http.StatusNotAcceptable
			}
			writeError(c, status, err.Error())
			return
		}

		session := sessionID(c)
		generation := tracker.Begin(session)

		result := service.Search(c.Request.Context(), criteria)
		result.Generation = generation

		writeResponse(c, SearchResponse{Result: result, Superseded: !tracker.IsLatest(session, generation)}, http.StatusOK, nil)
	}
}

// sessionID identifies the client for generation tracking. Clients without
// a session header are told apart by address.
func sessionID(c *gin.Context) string {
	if session := c.GetHeader(HeaderSessionID); session != "" {
		return session
	}
	return c.ClientIP()
}
