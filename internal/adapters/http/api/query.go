package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// workersQuery is GET /recommendations/workers.
type workersQuery struct {
	RequestID          string  `validate:"omitempty,max=128"`
	Limit              int     `validate:"gte=1"`
	MinScore           float64 `validate:"gte=0,lte=1"`
	IncludeUnavailable bool
}

// requestsQuery is GET /recommendations/requests.
type requestsQuery struct {
	ProviderID string  `validate:"required,max=128"`
	Limit      int     `validate:"gte=1"`
	MinScore   float64 `validate:"gte=0,lte=1"`
}

func parseWorkersQuery(v url.Values, defLimit int, defMin float64) (workersQuery, error) {
	q := workersQuery{RequestID: strings.TrimSpace(v.Get("requestId"))}
	var err error
	if q.Limit, err = intParam(v, "limit", defLimit); err != nil {
		return q, err
	}
	if q.MinScore, err = floatParam(v, "minScore", defMin); err != nil {
		return q, err
	}
	if q.IncludeUnavailable, err = boolParam(v, "includeUnavailable"); err != nil {
		return q, err
	}
	return q, validateStruct(q)
}

func parseRequestsQuery(v url.Values, defLimit int, defMin float64) (requestsQuery, error) {
	q := requestsQuery{ProviderID: strings.TrimSpace(v.Get("providerId"))}
	var err error
	if q.Limit, err = intParam(v, "limit", defLimit); err != nil {
		return q, err
	}
	if q.MinScore, err = floatParam(v, "minScore", defMin); err != nil {
		return q, err
	}
	return q, validateStruct(q)
}

// validateStruct flattens validator errors into one ErrBadRequest.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func intParam(v url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return n, nil
}

func floatParam(v url.Values, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadRequest, key)
	}
	return f, nil
}

func boolParam(v url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrBadRequest, key)
	}
	return b, nil
}
