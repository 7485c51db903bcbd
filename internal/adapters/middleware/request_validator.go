package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
)

type (
	// ValidationErrorHandler writes the response for a request the OpenAPI document rejects.
	ValidationErrorHandler func(w http.ResponseWriter, r *http.Request, err error, statusCode int)

	RequestValidatorOptions struct {
		Options      openapi3filter.Options
		ErrorHandler ValidationErrorHandler
		// SilenceServersWarning skips the warning about a document that still lists servers,
		// which makes the router match on host.
		SilenceServersWarning bool
	}
)

// OapiRequestValidatorWithOptions validates every request against swagger before it reaches
// the handler.
func OapiRequestValidatorWithOptions(
	logger infrastructure.Logger,
	swagger *openapi3.T,
	options *RequestValidatorOptions,
) func(http.Handler) http.Handler {
	if options == nil {
		options = &RequestValidatorOptions{}
	}

	if options.ErrorHandler == nil {
		options.ErrorHandler = RequestValidationErrHandler
	}

	if len(swagger.Servers) != 0 && !options.SilenceServersWarning {
		logger.Warn().Msg("openapi document lists servers, requests are matched on host as well")
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build the openapi router")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if statusCode, err := validateRequest(r, router, &options.Options); err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Int("status_code", statusCode).Msg("request rejected")
				options.ErrorHandler(w, r, err, statusCode)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validateRequest(r *http.Request, router routers.Router, options *openapi3filter.Options) (int, error) {
	route, pathParams, err := router.FindRoute(r)
	if err != nil {
		if errors.Is(err, routers.ErrMethodNotAllowed) {
			return http.StatusMethodNotAllowed, err
		}

		return http.StatusNotFound, err
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
		Options:    options,
	}

	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		var (
			requestErr  *openapi3filter.RequestError
			securityErr *openapi3filter.SecurityRequirementsError
		)

		switch {
		case errors.As(err, &requestErr):
			return http.StatusBadRequest, err
		case errors.As(err, &securityErr):
			return http.StatusUnauthorized, err
		default:
			return http.StatusInternalServerError, err
		}
	}

	return http.StatusOK, nil
}

// RequestValidationErrHandler answers with an ErrorResponse carrying the first line of the
// validation error.
func RequestValidationErrHandler(w http.ResponseWriter, _ *http.Request, err error, statusCode int) {
	details, _, _ := strings.Cut(err.Error(), "\n")

	switch statusCode {
	case http.StatusNotFound:
		writeError(w, statusCode, "not_found", "Route not found", details)
	case http.StatusMethodNotAllowed:
		writeError(w, statusCode, "method_not_allowed", "Method not allowed", details)
	case http.StatusUnauthorized:
		writeError(w, statusCode, "unauthorized", "Unauthorized", details)
	case http.StatusBadRequest:
		writeError(w, statusCode, "bad_request", "Invalid request", details)
	default:
		writeError(w, statusCode, "internal_server_error", "Request validation failed", details)
	}
}
