package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// maxBodyBytes 請求 body 上限
const maxBodyBytes = 1 << 20

// TransactionUseCase handler 依賴的帳務操作
type TransactionUseCase interface {
	UseBalance(ctx context.Context, userID int64, accountNumber string, amount int64) (*domain.TransactionRecord, error)
	CancelBalance(ctx context.Context, transactionID string, accountNumber string, amount int64) (*domain.TransactionRecord, error)
	QueryTransaction(ctx context.Context, transactionID string) (*domain.TransactionRecord, error)
}

// Handler 交易 API
type Handler struct {
	core     TransactionUseCase
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(core TransactionUseCase, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		core:     core,
		validate: newValidator(),
		logger:   logger,
	}
}

// newValidator 錯誤訊息使用 json 欄位名稱，並註冊帳號格式檢查
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("account_number", func(fl validator.FieldLevel) bool {
		return domain.IsValidAccountNumber(fl.Field().String())
	})
	return v
}

// UseBalance POST /transaction/use
func (h *Handler) UseBalance(w http.ResponseWriter, r *http.Request) {
	var req UseBalanceRequest
	if !h.bind(w, r, &req) {
		return
	}
	record, err := h.core.UseBalance(r.Context(), req.UserID, req.AccountNumber, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(record))
}

// CancelBalance POST /transaction/cancel
func (h *Handler) CancelBalance(w http.ResponseWriter, r *http.Request) {
	var req CancelBalanceRequest
	if !h.bind(w, r, &req) {
		return
	}
	record, err := h.core.CancelBalance(r.Context(), req.TransactionID, req.AccountNumber, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(record))
}

// QueryTransaction GET /transaction/{transactionId}
func (h *Handler) QueryTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")
	if transactionID == "" || len(transactionID) > 64 {
		writeInvalidRequest(w, "transactionId is required")
		return
	}
	record, err := h.core.QueryTransaction(r.Context(), transactionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQueryTransactionResponse(record))
}

// bind 解析並驗證 body，失敗時已寫入 400
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		writeInvalidRequest(w, "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeInvalidRequest(w, validationMessage(err))
		return false
	}
	return true
}

// writeError 所有核心回傳的錯誤 (包含內部錯誤) 都回 200，以 errorCode 區分
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, http.StatusOK, ErrorResponse{
		ErrorCode:    string(kind),
		ErrorMessage: domain.PublicMessage(err),
	})
}

func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		ErrorCode:    string(domain.KindInvalidRequest),
		ErrorMessage: message,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.KindInvalidRequest.Message()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
