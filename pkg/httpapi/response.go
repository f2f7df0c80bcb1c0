package httpapi

import (
	"github.com/gin-gonic/gin"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code            bferrors.ErrorCode `json:"code"`
	Message         string             `json:"message"`
	Retryable       bool               `json:"retryable"`
	SuggestedAction string             `json:"suggested_action,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     ErrorDetail       `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// OptionsResponse is the body of a picker search.
type OptionsResponse struct {
	EntityType picker.EntityType `json:"entity_type"`
	Query      string            `json:"query"`
	Options    picker.OptionSet  `json:"options"`
}

// LabelResponse is the body of a label lookup. On 404 Label is empty so the
// widget can render a placeholder.
type LabelResponse struct {
	EntityType picker.EntityType `json:"entity_type"`
	Key        int64             `json:"key"`
	Label      string            `json:"label"`
	Error      *ErrorDetail      `json:"error,omitempty"`
}

func errorBody(c *gin.Context, code bferrors.ErrorCode, msg string) ErrorResponse {
	return ErrorResponse{
		Error:     detail(code, msg),
		RequestID: c.GetString(requestIDKey),
	}
}

func detail(code bferrors.ErrorCode, msg string) ErrorDetail {
	return ErrorDetail{
		Code:            code,
		Message:         msg,
		Retryable:       bferrors.IsRetryable(code),
		SuggestedAction: bferrors.GetSuggestedAction(code),
	}
}

// writeError classifies err and writes the matching status and body.
func writeError(c *gin.Context, err error) {
	code := bferrors.Classify(err)
	c.AbortWithStatusJSON(bferrors.HTTPStatus(code), errorBody(c, code, err.Error()))
}
