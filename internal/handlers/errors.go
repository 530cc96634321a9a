package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

// retryAfterSeconds is sent with concurrency conflicts.
const retryAfterSeconds = "1"

func statusFor(class models.ErrorClass) int {
	switch class {
	case models.ClassValidation:
		return http.StatusUnprocessableEntity
	case models.ClassState, models.ClassConcurrency:
		return http.StatusConflict
	case models.ClassNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	class := models.Classify(err)
	if class == models.ClassConcurrency {
		c.Header("Retry-After", retryAfterSeconds)
	}

	msg := err.Error()
	if class == models.ClassData || class == models.ClassInternal {
		// details are in the log
		msg = http.StatusText(http.StatusInternalServerError)
	}
	c.JSON(statusFor(class), gin.H{"error": msg, "class": class})
}
