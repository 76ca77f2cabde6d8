package http

import (
	"net/http"

	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/jwtx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
)

// JWKSHandler publishes the session-token verification keys.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, linksdk.JWKSResponse(keys.PublicJWKS()))
	}
}
