package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/scamgi/inventory-service/internal/pkg/logger"
)

const inventoryServiceName = "inventory.v1.InventoryService"

const (
	GetStockMethod      = "/" + inventoryServiceName + "/GetStock"
	IncreaseStockMethod = "/" + inventoryServiceName + "/IncreaseStock"
	DecreaseStockMethod = "/" + inventoryServiceName + "/DecreaseStock"
	SetStockMethod      = "/" + inventoryServiceName + "/SetStock"
)

type GetStockRequest struct {
	ProductID string `json:"productId"`
}

type AdjustStockRPCRequest struct {
	ProductID string `json:"productId"`
	Amount    int64  `json:"amount"`
}

type SetStockRPCRequest struct {
	ProductID string `json:"productId"`
	Stock     int64  `json:"stock"`
}

// JSONCodec carries the inventory messages as JSON instead of protobuf.
type JSONCodec struct{}

var _ encoding.Codec = JSONCodec{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return "json"
}

type InventoryServer interface {
	GetStock(context.Context, *GetStockRequest) (*StockResponse, error)
	IncreaseStock(context.Context, *AdjustStockRPCRequest) (*AdjustStockResponse, error)
	DecreaseStock(context.Context, *AdjustStockRPCRequest) (*AdjustStockResponse, error)
	SetStock(context.Context, *SetStockRPCRequest) (*SetStockResponse, error)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStock",
			Handler: unaryHandler(GetStockMethod, func(srv InventoryServer, ctx context.Context, req *GetStockRequest) (any, error) {
				return srv.GetStock(ctx, req)
			}),
		},
		{
			MethodName: "IncreaseStock",
			Handler: unaryHandler(IncreaseStockMethod, func(srv InventoryServer, ctx context.Context, req *AdjustStockRPCRequest) (any, error) {
				return srv.IncreaseStock(ctx, req)
			}),
		},
		{
			MethodName: "DecreaseStock",
			Handler: unaryHandler(DecreaseStockMethod, func(srv InventoryServer, ctx context.Context, req *AdjustStockRPCRequest) (any, error) {
				return srv.DecreaseStock(ctx, req)
			}),
		},
		{
			MethodName: "SetStock",
			Handler: unaryHandler(SetStockMethod, func(srv InventoryServer, ctx context.Context, req *SetStockRPCRequest) (any, error) {
				return srv.SetStock(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.proto",
}

func unaryHandler[Req any](fullMethod string, call func(InventoryServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

// NewGRPCServer builds a server with the JSON codec and logging interceptor
// and registers srv on it.
func NewGRPCServer(srv InventoryServer, l *slog.Logger) *grpc.Server {
	server := grpc.NewServer(
		grpc.ForceServerCodec(JSONCodec{}),
		grpc.UnaryInterceptor(unaryLoggingInterceptor(l)),
	)
	RegisterInventoryServer(server, srv)
	return server
}

func unaryLoggingInterceptor(l *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("x-request-id"); len(vals) > 0 {
				requestID = vals[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = logger.WithRequestID(ctx, requestID)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		l.LogAttrs(ctx, level, "grpc_request",
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
			slog.String("request_id", requestID),
		)

		return resp, err
	}
}
