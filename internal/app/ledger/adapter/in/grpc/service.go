package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName gRPC 服務名稱
const ServiceName = "ledger.v1.TransactionService"

const (
	useBalanceMethod       = "/" + ServiceName + "/UseBalance"
	cancelBalanceMethod    = "/" + ServiceName + "/CancelBalance"
	queryTransactionMethod = "/" + ServiceName + "/QueryTransaction"
)

// TransactionServiceServer 伺服器端需實作的方法
type TransactionServiceServer interface {
	UseBalance(ctx context.Context, req *UseBalanceRequest) (*TransactionResponse, error)
	CancelBalance(ctx context.Context, req *CancelBalanceRequest) (*TransactionResponse, error)
	QueryTransaction(ctx context.Context, req *QueryTransactionRequest) (*TransactionResponse, error)
}

// ServiceDesc 手動宣告的服務描述，搭配 JSON codec 使用
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransactionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UseBalance", Handler: useBalanceHandler},
		{MethodName: "CancelBalance", Handler: cancelBalanceHandler},
		{MethodName: "QueryTransaction", Handler: queryTransactionHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterTransactionServiceServer 註冊服務
func RegisterTransactionServiceServer(s grpc.ServiceRegistrar, srv TransactionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func useBalanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UseBalanceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionServiceServer).UseBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: useBalanceMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransactionServiceServer).UseBalance(ctx, req.(*UseBalanceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelBalanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelBalanceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionServiceServer).CancelBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: cancelBalanceMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransactionServiceServer).CancelBalance(ctx, req.(*CancelBalanceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryTransactionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryTransactionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionServiceServer).QueryTransaction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryTransactionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransactionServiceServer).QueryTransaction(ctx, req.(*QueryTransactionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client TransactionService 的客戶端
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) UseBalance(ctx context.Context, in *UseBalanceRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.conn.Invoke(ctx, useBalanceMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelBalance(ctx context.Context, in *CancelBalanceRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.conn.Invoke(ctx, cancelBalanceMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) QueryTransaction(ctx context.Context, in *QueryTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.conn.Invoke(ctx, queryTransactionMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}
