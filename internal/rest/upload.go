package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/catalog/catalog/domain"
	"github.com/dfryer1193/catalog/internal/middleware"
)

const (
	ProductImageField = "product_image"

	uploadedImageKey = "uploaded_image_reference"
)

// StoreUploadedImage hands the file in field to store before the handler runs and
// leaves the assigned reference on the context. Requests without a file pass
// through untouched.
func StoreUploadedImage(store domain.ImageStore, field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			c.Next()
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Malformed upload")
			c.String(http.StatusBadRequest, "Invalid upload.")
			c.Abort()
			return
		}

		ref, err := store.StoreUploadedFile(c.Request.Context(), file)
		if err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Str("request_id", middleware.RequestID(c)).Msg("Failed to store uploaded image")
			c.String(http.StatusInternalServerError, "Error storing image.")
			c.Abort()
			return
		}

		log.Debug().Str("filename", file.Filename).Str("reference", ref).Msg("Stored uploaded image")
		c.Set(uploadedImageKey, ref)
		c.Next()
	}
}

// uploadedReference returns what StoreUploadedImage stored, or "".
func uploadedReference(c *gin.Context) string {
	return c.GetString(uploadedImageKey)
}
