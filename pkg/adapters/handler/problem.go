package handler

import (
	"errors"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

const (
	ContentTypeProblemJSON = "application/problem+json"

	ProblemTypeInvalidJSON  = "invalid_json"
	ProblemTypeNotFound     = "about:blank"
	ProblemTypeForbidden    = "forbidden"
	ProblemTypeUnauthorized = "unauthorized"
	ProblemTypeUnavailable  = "code_space_exhausted"
	ProblemTypeBadGateway   = "external_lookup_failed"
	ProblemTypeInternal     = "internal_error"

	DetailInvalidJSON    = "invalid json"
	DetailInvalidID      = "invalid id"
	DetailLinkNotFound   = "link not found"
	DetailNotOwner       = "link belongs to another user"
	DetailUnauthorized   = "authentication required"
	DetailCodesExhausted = "could not allocate a short code, try again"
	DetailInternalError  = "internal error"
	DetailAliasTaken     = "custom alias already taken"
	DetailQRStoreFailed  = "could not store qr image"
)

type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func WriteProblem(c *gin.Context, p Problem) {
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.AbortWithStatusJSON(p.Status, p)
}

func notFound(c *gin.Context) {
	WriteProblem(c, Problem{
		Type:   ProblemTypeNotFound,
		Title:  http.StatusText(http.StatusNotFound),
		Status: http.StatusNotFound,
		Detail: DetailLinkNotFound,
	})
}

func unauthorized(c *gin.Context) {
	WriteProblem(c, Problem{
		Type:   ProblemTypeUnauthorized,
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: DetailUnauthorized,
	})
}

func badJSON(c *gin.Context) {
	WriteProblem(c, Problem{
		Type:   ProblemTypeInvalidJSON,
		Title:  http.StatusText(http.StatusBadRequest),
		Status: http.StatusBadRequest,
		Detail: DetailInvalidJSON,
	})
}

func badID(c *gin.Context) {
	WriteProblem(c, Problem{
		Type:   ProblemTypeInvalidJSON,
		Title:  http.StatusText(http.StatusBadRequest),
		Status: http.StatusBadRequest,
		Detail: DetailInvalidID,
	})
}

// fail maps a service error onto the wire. Order matters: a lost alias race
// is a duplicate before it is anything else.
func fail(c *gin.Context, err error) {
	var verr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrDuplicateKey):
		writeFieldErrors(c, http.StatusConflict, map[string]string{"custom_alias": DetailAliasTaken})
	case errors.As(err, &verr):
		writeFieldErrors(c, http.StatusUnprocessableEntity, map[string]string{verr.Field: verr.Err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		notFound(c)
	case errors.Is(err, domain.ErrUnauthenticated):
		unauthorized(c)
	case errors.Is(err, domain.ErrUnauthorized):
		WriteProblem(c, Problem{
			Type:   ProblemTypeForbidden,
			Title:  http.StatusText(http.StatusForbidden),
			Status: http.StatusForbidden,
			Detail: DetailNotOwner,
		})
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		WriteProblem(c, Problem{
			Type:   ProblemTypeUnavailable,
			Title:  http.StatusText(http.StatusServiceUnavailable),
			Status: http.StatusServiceUnavailable,
			Detail: DetailCodesExhausted,
		})
	case errors.Is(err, domain.ErrExternalLookup):
		writeFieldErrors(c, http.StatusBadGateway, map[string]string{"qr": DetailQRStoreFailed})
	default:
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		_ = c.Error(err)
		WriteProblem(c, Problem{
			Type:   ProblemTypeInternal,
			Title:  http.StatusText(http.StatusInternalServerError),
			Status: http.StatusInternalServerError,
			Detail: DetailInternalError,
		})
	}
}
