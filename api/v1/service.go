package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "rustsible.v1.Provisioner"

	Provisioner_Start_FullMethodName  = "/" + ServiceName + "/Start"
	Provisioner_Cancel_FullMethodName = "/" + ServiceName + "/Cancel"
	Provisioner_Status_FullMethodName = "/" + ServiceName + "/Status"
	Provisioner_Events_FullMethodName = "/" + ServiceName + "/Events"
)

type ProvisionerServer interface {
	Start(context.Context, *StartRequest) (*StartResponse, error)
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Events(*EventsRequest, grpc.ServerStreamingServer[Event]) error
}

// UnimplementedProvisionerServer can be embedded to stay forward compatible.
type UnimplementedProvisionerServer struct{}

func (UnimplementedProvisionerServer) Start(context.Context, *StartRequest) (*StartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Start not implemented")
}

func (UnimplementedProvisionerServer) Cancel(context.Context, *CancelRequest) (*CancelResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Cancel not implemented")
}

func (UnimplementedProvisionerServer) Status(context.Context, *StatusRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Status not implemented")
}

func (UnimplementedProvisionerServer) Events(*EventsRequest, grpc.ServerStreamingServer[Event]) error {
	return status.Error(codes.Unimplemented, "method Events not implemented")
}

func RegisterProvisionerServer(s grpc.ServiceRegistrar, srv ProvisionerServer) {
	s.RegisterService(&Provisioner_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(ProvisionerServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ProvisionerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ProvisionerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(EventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ProvisionerServer).Events(in, &grpc.GenericServerStream[EventsRequest, Event]{ServerStream: stream})
}

var Provisioner_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProvisionerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Start",
			Handler:    unaryHandler(Provisioner_Start_FullMethodName, ProvisionerServer.Start),
		},
		{
			MethodName: "Cancel",
			Handler:    unaryHandler(Provisioner_Cancel_FullMethodName, ProvisionerServer.Cancel),
		},
		{
			MethodName: "Status",
			Handler:    unaryHandler(Provisioner_Status_FullMethodName, ProvisionerServer.Status),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "rustsible/v1/provisioner",
}
