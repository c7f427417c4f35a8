package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meghashyamc/playfinder/db/kvdb"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/index"
	"github.com/meghashyamc/playfinder/validation"
)

type ImportRequest struct {
	Path    string `json:"path" validate:"valid_path"`
	Replace bool   `json:"replace"`
}

type ImportResponse struct {
	ID string `json:"id"`
}

type ImportStatusRequest struct {
	ID string `uri:"id" json:"id" validate:"required,uuid4"`
}

type ImportStatusResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

func SetupImport(router *gin.Engine, logger logger.Logger, service *index.Service, validator *validation.Validator) {
	router.POST("/imports", handleImport(service, logger, validator))
	router.GET("/imports/:id", handleImportStatus(service, logger, validator))
}

func handleImport(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ImportRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from import request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request body parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate import request", "err", err.Error())
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		requestID := uuid.New().String()
		if err := service.Build(index.Request{Path: request.Path, Replace: request.Replace}, requestID); err != nil {
			logger.Warn("could not start import", "err", err.Error())
			status := http.StatusInternalServerError
			if errors.Is(err, index.ErrImportInProgress) {
				status = http.StatusConflict
			}
			writeError(c, status, err.Error())
			return
		}

		writeResponse(c, ImportResponse{ID: requestID}, http.StatusAccepted, nil)
	}
}

func handleImportStatus(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ImportStatusRequest{}
		if err := c.ShouldBindUri(&request); err != nil {
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request path parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		status, err := service.GetStatus(request.ID)
		if err != nil {
			if errors.Is(err, kvdb.ErrNotFound) {
				writeError(c, http.StatusNotFound, "import request not found")
				return
			}
			logger.Error("could not read import status", "id", request.ID, "err", err.Error())
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}

		writeResponse(c, ImportStatusResponse{ID: request.ID, Status: status}, http.StatusOK, nil)
	}
}
