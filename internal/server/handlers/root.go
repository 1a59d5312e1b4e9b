package handlers

import (
	"net/http"
	"strconv"

	"github.com/information-sharing-networks/ecommerce-api/internal/api"
)

// RootMessage is the body returned by GET /.
const RootMessage = "E-commerce API is running!"

// HandleRoot confirms the service is up. HEAD gets the GET headers without a body.
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(RootMessage)))
		w.WriteHeader(http.StatusOK)
		return
	}
	api.RespondWithText(w, http.StatusOK, RootMessage)
}
