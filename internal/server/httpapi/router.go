// Package httpapi exposes the session services over HTTP and mounts the
// websocket broker. Error responses are text/plain; the body is the message
// the client shows to its user.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/passshare/internal/common"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions is the business logic behind the routes.
type Sessions interface {
	Create(ctx context.Context, passkey, username string) error
	Join(ctx context.Context, passkey, username string) error
	ListFiles(ctx context.Context, passkey string) ([]*models.File, error)
	Upload(ctx context.Context, passkey, uploaderID, fileName string, r io.Reader, size int64) (*models.File, error)
	Download(ctx context.Context, id string) (*models.File, io.ReadCloser, error)
}

type Handler struct {
	sessions       Sessions
	broker         http.Handler
	log            logging.Logger
	maxUploadBytes int64
}

// NewHandler builds the API. broker serves the websocket endpoint and may
// be nil, in which case the endpoint answers 404.
func NewHandler(sessions Sessions, broker http.Handler, log logging.Logger, maxUploadBytes int64) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		sessions:       sessions,
		broker:         broker,
		log:            log.With("module", "http"),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the chi router with middleware applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get(common.HealthPath, h.health)
	if h.broker != nil {
		r.Handle(common.WebSocketPath, h.broker)
	}

	r.Post(common.CreateSessionPath, h.createSession)
	r.Post(common.JoinSessionPath, h.joinSession)
	r.Get(common.ListFilesRoute, h.listFiles)
	r.Post(common.UploadRoute, h.upload)
	r.Get(common.DownloadRoute, h.download)

	return r
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}
