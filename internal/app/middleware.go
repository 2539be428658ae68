package app

import "net/http"

const jsonContent = "application/json"

// jsonContentTypeMiddleware sets the Content-Type header to application/json
// before the wrapped handler runs.
func jsonContentTypeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContent)
		next.ServeHTTP(w, r)
	}
}
