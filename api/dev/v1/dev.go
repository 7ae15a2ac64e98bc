// Package devv1 defines the dev-only ridehail.dev.v1 DevService. It is never registered in production.
package devv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ridehail-identity/api/jsoncodec"
)

const DevService_GetDevOtp_FullMethodName = "/ridehail.dev.v1.DevService/GetDevOtp"

type GetDevOtpRequest struct {
	Target string `json:"target"`
}

func (x *GetDevOtpRequest) GetTarget() string {
	if x == nil {
		return ""
	}
	return x.Target
}

type GetDevOtpResponse struct {
	Code string `json:"code"`
	Note string `json:"note"`
}

// DevServiceServer is the server API for DevService.
type DevServiceServer interface {
	GetDevOtp(context.Context, *GetDevOtpRequest) (*GetDevOtpResponse, error)
}

type UnimplementedDevServiceServer struct{}

func (UnimplementedDevServiceServer) GetDevOtp(context.Context, *GetDevOtpRequest) (*GetDevOtpResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDevOtp not implemented")
}

func RegisterDevServiceServer(s grpc.ServiceRegistrar, srv DevServiceServer) {
	s.RegisterService(&DevService_ServiceDesc, srv)
}

func _DevService_GetDevOtp_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetDevOtpRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DevServiceServer).GetDevOtp(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DevService_GetDevOtp_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DevServiceServer).GetDevOtp(ctx, req.(*GetDevOtpRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var DevService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ridehail.dev.v1.DevService",
	HandlerType: (*DevServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDevOtp", Handler: _DevService_GetDevOtp_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ridehail/dev/v1/dev.json",
}

type DevServiceClient interface {
	GetDevOtp(ctx context.Context, in *GetDevOtpRequest, opts ...grpc.CallOption) (*GetDevOtpResponse, error)
}

type devServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDevServiceClient(cc grpc.ClientConnInterface) DevServiceClient {
	return &devServiceClient{cc: cc}
}

func (c *devServiceClient) GetDevOtp(ctx context.Context, in *GetDevOtpRequest, opts ...grpc.CallOption) (*GetDevOtpResponse, error) {
	out := new(GetDevOtpResponse)
	opts = append([]grpc.CallOption{jsoncodec.CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, DevService_GetDevOtp_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
