// Package budgetwatchv1 describes the budgetwatch.v1.BudgetService gRPC
// service. Messages travel as google.protobuf.Struct; the request and
// response shapes are the Go types in messages.go.
package budgetwatchv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "budgetwatch.v1.BudgetService"

// Full method names.
const (
	BudgetService_StartSession_FullMethodName    = "/" + ServiceName + "/StartSession"
	BudgetService_ReportUsage_FullMethodName     = "/" + ServiceName + "/ReportUsage"
	BudgetService_CompleteSession_FullMethodName = "/" + ServiceName + "/CompleteSession"
	BudgetService_HandOffSession_FullMethodName  = "/" + ServiceName + "/HandOffSession"
	BudgetService_GetSession_FullMethodName      = "/" + ServiceName + "/GetSession"
)

// BudgetServiceServer is the server API for BudgetService.
type BudgetServiceServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HandOffSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(BudgetServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, fn call) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(BudgetServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(srv.(BudgetServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// BudgetService_ServiceDesc is the grpc.ServiceDesc for BudgetService.
var BudgetService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BudgetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: handler(BudgetService_StartSession_FullMethodName, BudgetServiceServer.StartSession)},
		{MethodName: "ReportUsage", Handler: handler(BudgetService_ReportUsage_FullMethodName, BudgetServiceServer.ReportUsage)},
		{MethodName: "CompleteSession", Handler: handler(BudgetService_CompleteSession_FullMethodName, BudgetServiceServer.CompleteSession)},
		{MethodName: "HandOffSession", Handler: handler(BudgetService_HandOffSession_FullMethodName, BudgetServiceServer.HandOffSession)},
		{MethodName: "GetSession", Handler: handler(BudgetService_GetSession_FullMethodName, BudgetServiceServer.GetSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "budgetwatch/v1/budgetwatch.proto",
}

// RegisterBudgetServiceServer registers srv on s.
func RegisterBudgetServiceServer(s grpc.ServiceRegistrar, srv BudgetServiceServer) {
	s.RegisterService(&BudgetService_ServiceDesc, srv)
}

// Invoke encodes req, calls method on cc and decodes the reply into resp.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return err
	}
	return Decode(out, resp)
}
