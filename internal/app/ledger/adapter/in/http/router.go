package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter 建立 HTTP 路由
//
// 參數:
//
//	h: 交易 API handler
//	logger: 請求日誌
//	requestTimeout: 單一請求的時間上限，儲存層操作繼承此 deadline (0 表示不限)
func NewRouter(h *Handler, logger *slog.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(requestDeadline(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/transaction", func(r chi.Router) {
		r.Post("/use", h.UseBalance)
		r.Post("/cancel", h.CancelBalance)
		r.Get("/{transactionId}", h.QueryTransaction)
	})

	return r
}
