package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/otherjamesbrown/backoffice/pkg/buildinfo"
	"github.com/otherjamesbrown/backoffice/pkg/db"
	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/forms"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

func (s *Server) searchOptions(c *gin.Context) {
	entity, err := picker.ParseEntityType(c.Param("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	query := c.Query("search")

	options, err := s.registry.Search(c.Request.Context(), query, entity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, OptionsResponse{EntityType: entity, Query: query, Options: options})
}

func (s *Server) resolveLabel(c *gin.Context) {
	entity, err := picker.ParseEntityType(c.Param("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	key, err := picker.ParseKey(c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}

	label, err := s.registry.ResolveLabel(c.Request.Context(), entity, key)
	switch {
	case bferrors.IsNotFound(err):
		d := detail(bferrors.CodeNotFound, err.Error())
		c.JSON(http.StatusNotFound, LabelResponse{EntityType: entity, Key: key, Error: &d})
	case err != nil:
		writeError(c, err)
	default:
		c.JSON(http.StatusOK, LabelResponse{EntityType: entity, Key: key, Label: label})
	}
}

// validateForm binds the JSON body into T and runs check on it.
func validateForm[T any](check func(*gin.Context, T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in T
		if err := c.ShouldBindJSON(&in); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(c, bferrors.CodeInvalidRequest, "malformed JSON body: "+err.Error()))
			return
		}

		err := check(c, in)
		var verr *forms.ValidationError
		switch {
		case errors.As(err, &verr):
			body := errorBody(c, bferrors.CodeValidationFailed, verr.Error())
			body.Fields = verr.Fields
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, body)
		case err != nil:
			writeError(c, err)
		default:
			c.Status(http.StatusNoContent)
		}
	}
}

func (s *Server) healthz(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	status := db.Check(c.Request.Context(), s.health)
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  status.Error.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"latency_ms": status.Latency.Milliseconds(),
	})
}

func (s *Server) version(c *gin.Context) {
	c.JSON(http.StatusOK, buildinfo.Get(s.serviceName))
}
