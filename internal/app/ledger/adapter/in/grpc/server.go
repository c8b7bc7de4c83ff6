package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// TransactionUseCase server 依賴的帳務操作
type TransactionUseCase interface {
	UseBalance(ctx context.Context, userID int64, accountNumber string, amount int64) (*domain.TransactionRecord, error)
	CancelBalance(ctx context.Context, transactionID string, accountNumber string, amount int64) (*domain.TransactionRecord, error)
	QueryTransaction(ctx context.Context, transactionID string) (*domain.TransactionRecord, error)
}

type GrpcServer struct {
	core     TransactionUseCase
	validate *validator.Validate
	logger   *slog.Logger
}

func NewGrpcServer(core TransactionUseCase, logger *slog.Logger) *GrpcServer {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("account_number", func(fl validator.FieldLevel) bool {
		return domain.IsValidAccountNumber(fl.Field().String())
	})
	return &GrpcServer{
		core:     core,
		validate: v,
		logger:   logger,
	}
}

// NewServer 建立 gRPC server，註冊交易服務與 health 服務
//
// 回傳:
//
//	*grpc.Server: 尚未開始 Serve 的 server
//	*health.Server: 關閉前可將狀態設為 NOT_SERVING
func NewServer(srv *GrpcServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(
		LoggingInterceptor(srv.logger),
		RecoveryInterceptor(srv.logger),
	)}, opts...)
	s := grpc.NewServer(opts...)
	RegisterTransactionServiceServer(s, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	return s, healthServer
}

func (s *GrpcServer) UseBalance(ctx context.Context, req *UseBalanceRequest) (*TransactionResponse, error) {
	// 1. 驗證請求
	if resp := s.invalid(req); resp != nil {
		return resp, nil
	}
	// 2. 執行交易
	record, err := s.core.UseBalance(ctx, req.UserID, req.AccountNumber, req.Amount)
	if err != nil {
		return s.failure(err)
	}
	return newTransactionResponse(record), nil
}

func (s *GrpcServer) CancelBalance(ctx context.Context, req *CancelBalanceRequest) (*TransactionResponse, error) {
	if resp := s.invalid(req); resp != nil {
		return resp, nil
	}
	record, err := s.core.CancelBalance(ctx, req.TransactionID, req.AccountNumber, req.Amount)
	if err != nil {
		return s.failure(err)
	}
	return newTransactionResponse(record), nil
}

func (s *GrpcServer) QueryTransaction(ctx context.Context, req *QueryTransactionRequest) (*TransactionResponse, error) {
	if resp := s.invalid(req); resp != nil {
		return resp, nil
	}
	record, err := s.core.QueryTransaction(ctx, req.TransactionID)
	if err != nil {
		return s.failure(err)
	}
	return newTransactionResponse(record), nil
}

// invalid 驗證失敗時回傳 INVALID_REQUEST (Soft Failure)
func (s *GrpcServer) invalid(req any) *TransactionResponse {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newErrorResponse(domain.KindInvalidRequest, domain.KindInvalidRequest.Message())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return newErrorResponse(domain.KindInvalidRequest, strings.Join(msgs, "; "))
}

// failure 帳務錯誤為 Soft Failure，內部錯誤回傳 codes.Internal
func (s *GrpcServer) failure(err error) (*TransactionResponse, error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternalServerError {
		return nil, status.Error(codes.Internal, domain.PublicMessage(err))
	}
	return newErrorResponse(kind, domain.PublicMessage(err)), nil
}

// LoggingInterceptor 記錄每個 unary 呼叫
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"duration", time.Since(start),
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 {
				attrs = append(attrs, "request_id", ids[0])
			}
		}
		if r, ok := resp.(*TransactionResponse); ok && r != nil && r.Failed() {
			attrs = append(attrs, "error_code", r.ErrorCode)
		}
		if err != nil {
			attrs = append(attrs, "code", status.Code(err).String(), "error", err)
			logger.WarnContext(ctx, "grpc request failed", attrs...)
			return resp, err
		}
		logger.DebugContext(ctx, "grpc request", attrs...)
		return resp, err
	}
}

// RecoveryInterceptor handler panic 時回傳 codes.Internal，不讓整個程序結束
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(ctx, "grpc handler panic",
					"method", info.FullMethod,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, domain.KindInternalServerError.Message())
			}
		}()
		return handler(ctx, req)
	}
}

var _ TransactionServiceServer = (*GrpcServer)(nil)
