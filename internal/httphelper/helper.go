package httphelper

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Bind binds the JSON request body into value, emitting a problem+json 400
// response on failure. Handlers should return when it reports false.
func Bind(ctx *gin.Context, value any) bool {
	if errBind := ctx.ShouldBindJSON(value); errBind != nil {
		SetError(ctx, NewAPIError(http.StatusBadRequest, ErrBadRequest))

		return false
	}

	return true
}

func GetStringParam(ctx *gin.Context, key string) (string, bool) {
	valueStr := ctx.Param(key)
	if valueStr == "" {
		SetError(ctx, NewAPIErrorf(http.StatusBadRequest, ErrParamKeyMissing,
			"Cannot find param: %s", key))

		return "", false
	}

	return valueStr, true
}

func NewServer(listenAddr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           listenAddr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}
