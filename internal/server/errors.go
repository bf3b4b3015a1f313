package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/ssd-technologies/mixfile/internal/basen"
	"github.com/ssd-technologies/mixfile/internal/crypto"
	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/transfer"
	"github.com/ssd-technologies/mixfile/internal/uploader"
	"github.com/ssd-technologies/mixfile/internal/webdav"
)

// classify maps an error to a status code and the prefix of its message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, share.ErrInvalidShareCode), errors.Is(err, basen.ErrInvalidCharacter):
		return http.StatusBadRequest, "invalid share code: "
	case errors.Is(err, crypto.ErrDecrypt):
		return http.StatusInternalServerError, "decrypt error: "
	case errors.Is(err, transfer.ErrIntegrity):
		return http.StatusInternalServerError, "integrity error: "
	case errors.Is(err, crypto.ErrOversize):
		return http.StatusBadGateway, "oversize error: "
	case errors.Is(err, uploader.ErrUpload):
		return http.StatusBadGateway, "upload error: "
	case errors.Is(err, transfer.ErrIndexCorrupt):
		return http.StatusInternalServerError, "index error: "
	case errors.Is(err, transfer.ErrFetch), errors.Is(err, transfer.ErrIndexFetch):
		return http.StatusBadGateway, "fetch error: "
	case errors.Is(err, webdav.ErrNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, webdav.ErrConflict), errors.Is(err, webdav.ErrNotFolder):
		return http.StatusConflict, ""
	case errors.Is(err, webdav.ErrExists):
		return http.StatusPreconditionFailed, ""
	case errors.Is(err, webdav.ErrSnapshot):
		return http.StatusBadRequest, ""
	case errors.Is(err, context.Canceled):
		return 499, "canceled: "
	}
	return http.StatusInternalServerError, ""
}

// writeFailure answers a request that failed before any body was written.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, prefix := classify(err)
	if status >= 500 {
		log.Printf("[http] %s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, prefix+err.Error(), status)
}
