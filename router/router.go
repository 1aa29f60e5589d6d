package router

import (
	"net/http"

	docHandler "collabdocs/internal/document"
	"collabdocs/internal/document/service"
	"collabdocs/middleware"
	"collabdocs/socket"
)

func Setup(svc *service.DocumentService, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware

	// WebSocket: commit notifications + presence for one document.
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		socket.ServeWs(hub, svc, w, r, id)
	})
	mux.Handle("/ws", auth(wsHandler))

	h := docHandler.NewDocumentHandler(svc)

	mux.Handle("/api/documents/create", auth(http.HandlerFunc(h.CreateDocument)))
	mux.Handle("/api/documents/get", auth(http.HandlerFunc(h.GetDocument)))
	mux.Handle("/api/documents/update", auth(http.HandlerFunc(h.UpdateDocument)))
	mux.Handle("/api/documents/delete", auth(http.HandlerFunc(h.DeleteDocument)))
	mux.Handle("/api/documents/restore", auth(http.HandlerFunc(h.RestoreDocument)))
	mux.Handle("/api/documents/purge", auth(http.HandlerFunc(h.PurgeDocument)))
	mux.Handle("/api/documents", auth(http.HandlerFunc(h.ListDocuments)))
	mux.Handle("/api/documents/from-template", auth(http.HandlerFunc(h.CreateFromTemplate)))
	mux.Handle("/api/shares/create", auth(http.HandlerFunc(h.CreateShare)))
	mux.Handle("/api/shares/update", auth(http.HandlerFunc(h.UpdateShare)))
	mux.Handle("/api/shares/delete", auth(http.HandlerFunc(h.DeleteShare)))
	mux.Handle("/api/shares", auth(http.HandlerFunc(h.ListShares)))
	mux.Handle("/api/templates/create", auth(http.HandlerFunc(h.CreateTemplate)))
	mux.Handle("/api/templates", auth(http.HandlerFunc(h.ListTemplates)))
	mux.Handle("/api/profile", auth(http.HandlerFunc(h.Profile)))

	return middleware.CORSMiddleware(mux)
}
