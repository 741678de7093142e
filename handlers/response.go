package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"visitor-registry/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500

	msgInvalidRequest = "Datos inválidos"
	msgInternal       = "internal server error"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report fields by their json name, so binding
// errors use the same keys as the request body.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// validationFailed writes 400 {"error": msg, "errores": {field: msg}} for model
// validation errors, binding errors and malformed bodies.
func validationFailed(c *gin.Context, err error) {
	fields := map[string]string{}
	msg := msgInvalidRequest

	var modelErr *models.ValidationError
	var bindErrs validator.ValidationErrors
	switch {
	case errors.As(err, &modelErr):
		fields[modelErr.Field] = modelErr.Message
		msg = modelErr.Message
	case errors.As(err, &bindErrs):
		for _, fe := range bindErrs {
			fields[fe.Field()] = describeFieldError(fe)
		}
	default:
		msg = "El cuerpo de la solicitud no es JSON válido"
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "errores": fields})
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es requerido"
	case "max":
		return fmt.Sprintf("Asegúrese de que este campo no tenga más de %s caracteres", fe.Param())
	case "min":
		return fmt.Sprintf("Asegúrese de que este campo tenga al menos %s caracteres", fe.Param())
	default:
		return "Valor inválido"
	}
}

// internalError records err for the error middleware and answers with a generic body.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}

func notFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid visit ID format"})
		return 0, false
	}
	return uint(id), true
}

// pagination reads limit and offset; limit defaults to 50 and is capped at 500.
func pagination(c *gin.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if s := c.Query("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", s)
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if s := c.Query("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return limit, offset, nil
}
