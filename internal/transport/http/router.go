package http

import (
	"net/http"

	"go.uber.org/zap"
)

// Services bundles the application services the router dispatches to.
type Services struct {
	Catalog   ListingCatalog
	Submitter RequestSubmitter
	Decider   RequestDecider
	Viewer    RequestViewer
	Health    Pinger
}

// NewRouter builds the API handler tree wrapped in CORS, logging and panic
// recovery.
func NewRouter(svc Services, corsOrigins []string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", HealthHandler(svc.Health))
	mux.Handle("/listings", HandleListings(svc.Catalog))
	mux.Handle("/listings/", HandleListingItem(svc.Catalog))
	mux.Handle("/requests", HandleSubmitRequest(svc.Submitter))
	mux.Handle("/requests/", HandleRequestItem(svc.Decider, svc.Viewer))

	// Operation-named routes used by the original web client.
	mux.Handle("/submit-request", HandleSubmitRequest(svc.Submitter))
	mux.Handle("/decide-request/", HandleDecideRequest(svc.Decider))
	mux.Handle("/requests-by-requester", HandleRequesterViews(svc.Viewer))
	mux.Handle("/requests-by-owner", HandleOwnerViews(svc.Viewer))
	mux.Handle("/", NotFoundHandler())

	return Recoverer(RequestLogger(CORS(corsOrigins, mux), logger), logger)
}

// NotFoundHandler answers unknown routes with the JSON error envelope.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
}
