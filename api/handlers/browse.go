package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/search"
	"github.com/meghashyamc/playfinder/validation"
)

type NearMeRequest struct {
	Lat *float64 `form:"lat" json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng *float64 `form:"lng" json:"lng" validate:"omitempty,min=-180,max=180"`
	Geo string   `form:"geo" json:"geo" validate:"omitempty,oneof=granted denied"`
}

func (r NearMeRequest) device() search.DeviceLocation {
	if r.Geo == "denied" || r.Lat == nil || r.Lng == nil {
		return search.DeviceLocation{}
	}
	return search.DeviceLocation{Granted: true, Latitude: *r.Lat, Longitude: *r.Lng}
}

type FeaturedRequest struct {
	Limit int `form:"limit" json:"limit" validate:"min=0,max=50"`
}

type CityRequest struct {
	AgeRanges string `form:"age_ranges" json:"age_ranges" validate:"max=200"`
	Features  string `form:"features" json:"features" validate:"max=500"`
	Ratings   string `form:"ratings" json:"ratings" validate:"valid_rating_list"`
	OpenToday bool   `form:"open_today" json:"open_today"`
}

func (r CityRequest) filters() (search.CityFilters, error) {
	ratings, err := validation.ParseRatingList(r.Ratings)
	if err != nil {
		return search.CityFilters{}, err
	}

	return search.NewCityFilters(search.CityFilters{
		AgeRanges: validation.ParseList(r.AgeRanges),
		Features:  validation.ParseList(r.Features),
		Ratings:   ratings,
		OpenToday: r.OpenToday,
	})
}

type ListingPath struct {
	City string `uri:"city" json:"city" validate:"required,max=100"`
	Slug string `uri:"slug" json:"slug" validate:"required,max=200"`
}

func SetupBrowse(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.GET("/near-me", handleNearMe(service, logger, validator))
	router.GET("/featured", handleFeatured(service, logger, validator))
	router.GET("/cities/:city", handleCity(service, logger, validator))
	router.GET("/cities/:city/:slug", handleListing(service, logger, validator))
	router.GET("/listings/:id", handleListingByID(service, logger))
	router.GET("/locations/counts", handleLocationCounts(service))
}

func handleNearMe(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := NearMeRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from near me request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request query parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		writeResponse(c, service.NearMe(c.Request.Context(), request.device()), http.StatusOK, nil)
	}
}

func handleFeatured(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := FeaturedRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from featured request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request query parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		writeResponse(c, service.Featured(c.Request.Context(), request.Limit), http.StatusOK, nil)
	}
}

func handleCity(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := CityRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from city request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request query parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		filters, err := request.filters()
		if err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		writeResponse(c, service.City(c.Request.Context(), c.Param("city"), filters), http.StatusOK, nil)
	}
}

func handleListing(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ListingPath{}
		if err := c.ShouldBindUri(&request); err != nil {
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request path parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		result, err := service.Listing(c.Request.Context(), request.City, request.Slug)
		if err != nil {
			writeListingError(c, logger, err)
			return
		}

		writeResponse(c, result, http.StatusOK, nil)
	}
}

func handleListingByID(service *search.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(c, http.StatusUnprocessableEntity, "listing id must be a positive whole number")
			return
		}

		result, err := service.ListingByID(c.Request.Context(), id)
		if err != nil {
			writeListingError(c, logger, err)
			return
		}

		writeResponse(c, result, http.StatusOK, nil)
	}
}

func handleLocationCounts(service *search.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, service.LocationCounts(c.Request.Context()), http.StatusOK, nil)
	}
}

func writeListingError(c *gin.Context, logger logger.Logger, err error) {
	if errors.Is(err, db.ErrListingNotFound) {
		writeError(c, http.StatusNotFound, "listing not found")
		return
	}
	logger.Error("could not load listing", "err", err.Error())
	writeError(c, http.StatusInternalServerError, err.Error())
}
