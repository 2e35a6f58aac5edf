package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandlePanics answers a recovered panic with a bare 500. The panic value is
// logged, never sent to the client.
func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		evt := log.Error().Str("path", c.Request.URL.Path).Str("request_id", RequestID(c))
		if err, ok := recovered.(error); ok {
			evt = evt.Err(err)
		} else {
			evt = evt.Str("panic", fmt.Sprint(recovered))
		}
		evt.Msg("Recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	}
}
