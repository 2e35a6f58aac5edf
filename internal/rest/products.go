package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/catalog/catalog/application"
	"github.com/dfryer1193/catalog/catalog/domain"
	"github.com/dfryer1193/catalog/internal/middleware"
)

const (
	msgUploaded       = "Product uploaded successfully."
	msgNoImage        = "No image provided."
	msgInvalidURL     = "Invalid image URL."
	msgStorageFailed  = "Error storing image."
	msgDatabaseFailed = "Error saving product to database."
	msgInvalidBody    = "Invalid request body."
)

// uploadBody is the JSON form of an upload. Files only arrive as multipart.
type uploadBody struct {
	Description string `json:"product_description"`
	Price       string `json:"product_price"`
	ImageURL    string `json:"image_url"`
}

type ProductsApi struct {
	service *application.ProductService
	store   domain.ImageStore
}

func NewProductsApi(service *application.ProductService, store domain.ImageStore) *ProductsApi {
	return &ProductsApi{
		service: service,
		store:   store,
	}
}

// UploadProduct reads multipart, url-encoded or JSON bodies. A file can only
// arrive as multipart and is already stored by StoreUploadedImage.
func (a *ProductsApi) UploadProduct(c *gin.Context) {
	var body uploadBody
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&body); err != nil {
			log.Warn().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Malformed upload body")
			c.String(http.StatusBadRequest, msgInvalidBody)
			return
		}
	} else {
		body = uploadBody{
			Description: c.PostForm("product_description"),
			Price:       c.PostForm("product_price"),
			ImageURL:    c.PostForm("image_url"),
		}
	}

	req := application.CreateProductRequest{
		Description: body.Description,
		Price:       body.Price,
		Image: application.ImageSource{
			UploadedReference: uploadedReference(c),
			URL:               strings.TrimSpace(body.ImageURL),
		},
	}

	p, err := a.service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		status, msg := uploadError(err)
		log.Warn().Err(err).Int("status", status).Str("request_id", middleware.RequestID(c)).Msg("Upload rejected")
		c.String(status, msg)
		return
	}

	log.Debug().Int64("id", p.ID).Msg("Upload complete")
	c.String(http.StatusOK, msgUploaded)
}

func uploadError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingImage):
		return http.StatusBadRequest, msgNoImage
	case errors.Is(err, domain.ErrInvalidImageSource):
		return http.StatusBadRequest, msgInvalidURL
	case errors.Is(err, domain.ErrStorageWriteFailed):
		return http.StatusInternalServerError, msgStorageFailed
	default:
		return http.StatusInternalServerError, msgDatabaseFailed
	}
}

func (a *ProductsApi) ListProducts(c *gin.Context) {
	products, err := a.service.ListProducts(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Failed to list products")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve products"})
		return
	}

	c.JSON(http.StatusOK, products)
}

func (a *ProductsApi) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	p, err := a.service.GetProduct(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("id", id).Str("request_id", middleware.RequestID(c)).Msg("Failed to get product")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve product"})
		return
	}

	c.JSON(http.StatusOK, p)
}
