package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/playfinder/logger"
)

const maxLocationLength = 100

type Validator struct {
	validator                *validator.Validate
	logger                   logger.Logger
	tagValidationDetailsOnce sync.Once
	tagValidationDetailsMap  map[string]tagValidationDetails
}

type tagValidationDetails struct {
	validatorFunc validator.Func
	err           error
}

func New(logger logger.Logger) (*Validator, error) {
	validator := &Validator{validator: validator.New(), logger: logger}
	validator.validator.RegisterTagNameFunc(useJSONFieldNames)
	if err := validator.registerCustomValidatorsForTags(); err != nil {
		return nil, err
	}

	return validator, nil
}

func (v *Validator) Validate(i any) error {

	if err := v.validator.Struct(i); err != nil {
		v.logger.Warn("validation failed", "err", err.Error())
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {

			tagValidationDetails, ok := v.getTagValidationDetails()[validationErrs[0].Tag()]
			if ok {
				return tagValidationDetails.err
			}

			switch validationErrs[0].Tag() {
			case "required":
				return fmt.Errorf("missing required field '%s'", validationErrs[0].Field())

			case "min", "max":
				return fmt.Errorf("value or length of field '%s' is not in the expected range", validationErrs[0].Field())

			}
		}
		return err
	}
	return nil
}

func (v *Validator) getTagValidationDetails() map[string]tagValidationDetails {
	v.tagValidationDetailsOnce.Do(func() {
		v.tagValidationDetailsMap = map[string]tagValidationDetails{
			"valid_path":        {validatorFunc: v.isValidPath, err: errors.New("invalid path")},
			"valid_location":    {validatorFunc: v.isValidLocation, err: errors.New("invalid location")},
			"valid_rating_list": {validatorFunc: v.isValidRatingList, err: errors.New("invalid ratings, expected comma separated whole numbers from 0 to 5")},
		}
	})
	return v.tagValidationDetailsMap
}

func (v *Validator) registerCustomValidatorsForTags() error {

	tagValidationDetailsMap := v.getTagValidationDetails()

	for tag, tagValidationDetails := range tagValidationDetailsMap {
		if err := v.validator.RegisterValidation(tag, tagValidationDetails.validatorFunc); err != nil {
			v.logger.Error("failed to register custom validator function", "err", err.Error())
			return err
		}
	}
	return nil
}

func useJSONFieldNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func (v *Validator) isValidPath(fl validator.FieldLevel) bool {
	inputPath := fl.Field().String()
	if strings.TrimSpace(inputPath) == "" {
		v.logger.Warn("validation path is empty", "path", inputPath)
		return false
	}

	if strings.Contains(inputPath, "\x00") {
		v.logger.Warn("validation path has null byte", "path", inputPath)
		return false
	}

	if !filepath.IsAbs(inputPath) {
		v.logger.Warn("validation path is not absolute", "path", inputPath)
		return false
	}

	if _, err := os.Stat(inputPath); err != nil {
		v.logger.Info("path does not exist", "path", inputPath)
		return false
	}

	return true
}

// isValidLocation accepts an empty location, a place name or a postcode.
// Control characters and overly long input are rejected.
func (v *Validator) isValidLocation(fl validator.FieldLevel) bool {
	location := strings.TrimSpace(fl.Field().String())
	if len(location) > maxLocationLength {
		v.logger.Warn("location is too long", "length", len(location))
		return false
	}

	for _, r := range location {
		if unicode.IsControl(r) {
			v.logger.Warn("location has control characters", "location", location)
			return false
		}
	}

	return true
}

func (v *Validator) isValidRatingList(fl validator.FieldLevel) bool {
	_, err := ParseRatingList(fl.Field().String())
	return err == nil
}

// ParseRatingList parses "4,5" into rating buckets. An empty list is valid.
func ParseRatingList(value string) ([]int, error) {
	ratings := make([]int, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rating, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("rating %q is not a whole number: %w", part, err)
		}
		if rating < 0 || rating > 5 {
			return nil, fmt.Errorf("rating %d is outside 0-5", rating)
		}
		ratings = append(ratings, rating)
	}
	return ratings, nil
}

// ParseList splits a comma separated list, dropping blank entries.
func ParseList(value string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
