package authv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ridehail-identity/api/jsoncodec"
)

const AuthService_ServiceName = "ridehail.auth.v1.AuthService"

const (
	AuthService_SendOtp_FullMethodName       = "/ridehail.auth.v1.AuthService/SendOtp"
	AuthService_VerifyOtp_FullMethodName     = "/ridehail.auth.v1.AuthService/VerifyOtp"
	AuthService_SsoLogin_FullMethodName      = "/ridehail.auth.v1.AuthService/SsoLogin"
	AuthService_RefreshTokens_FullMethodName = "/ridehail.auth.v1.AuthService/RefreshTokens"
	AuthService_Logout_FullMethodName        = "/ridehail.auth.v1.AuthService/Logout"
	AuthService_Introspect_FullMethodName    = "/ridehail.auth.v1.AuthService/Introspect"
)

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	SendOtp(context.Context, *SendOtpRequest) (*SendOtpResponse, error)
	VerifyOtp(context.Context, *VerifyOtpRequest) (*LoginResponse, error)
	SsoLogin(context.Context, *SsoLoginRequest) (*LoginResponse, error)
	RefreshTokens(context.Context, *RefreshTokensRequest) (*RefreshTokensResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	Introspect(context.Context, *IntrospectRequest) (*IntrospectResponse, error)
}

// UnimplementedAuthServiceServer can be embedded for forward compatibility.
type UnimplementedAuthServiceServer struct{}

func (UnimplementedAuthServiceServer) SendOtp(context.Context, *SendOtpRequest) (*SendOtpResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendOtp not implemented")
}

func (UnimplementedAuthServiceServer) VerifyOtp(context.Context, *VerifyOtpRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyOtp not implemented")
}

func (UnimplementedAuthServiceServer) SsoLogin(context.Context, *SsoLoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SsoLogin not implemented")
}

func (UnimplementedAuthServiceServer) RefreshTokens(context.Context, *RefreshTokensRequest) (*RefreshTokensResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RefreshTokens not implemented")
}

func (UnimplementedAuthServiceServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}

func (UnimplementedAuthServiceServer) Introspect(context.Context, *IntrospectRequest) (*IntrospectResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Introspect not implemented")
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

// unaryHandler adapts a typed AuthServiceServer method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthService_ServiceDesc is the grpc.ServiceDesc for AuthService.
var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthService_ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendOtp", Handler: unaryHandler(AuthService_SendOtp_FullMethodName, AuthServiceServer.SendOtp)},
		{MethodName: "VerifyOtp", Handler: unaryHandler(AuthService_VerifyOtp_FullMethodName, AuthServiceServer.VerifyOtp)},
		{MethodName: "SsoLogin", Handler: unaryHandler(AuthService_SsoLogin_FullMethodName, AuthServiceServer.SsoLogin)},
		{MethodName: "RefreshTokens", Handler: unaryHandler(AuthService_RefreshTokens_FullMethodName, AuthServiceServer.RefreshTokens)},
		{MethodName: "Logout", Handler: unaryHandler(AuthService_Logout_FullMethodName, AuthServiceServer.Logout)},
		{MethodName: "Introspect", Handler: unaryHandler(AuthService_Introspect_FullMethodName, AuthServiceServer.Introspect)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ridehail/auth/v1/auth.json",
}

// AuthServiceClient is the client API for AuthService. Calls always use the JSON codec.
type AuthServiceClient interface {
	SendOtp(ctx context.Context, in *SendOtpRequest, opts ...grpc.CallOption) (*SendOtpResponse, error)
	VerifyOtp(ctx context.Context, in *VerifyOtpRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	SsoLogin(ctx context.Context, in *SsoLoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	RefreshTokens(ctx context.Context, in *RefreshTokensRequest, opts ...grpc.CallOption) (*RefreshTokensResponse, error)
	Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error)
	Introspect(ctx context.Context, in *IntrospectRequest, opts ...grpc.CallOption) (*IntrospectResponse, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{jsoncodec.CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) SendOtp(ctx context.Context, in *SendOtpRequest, opts ...grpc.CallOption) (*SendOtpResponse, error) {
	return invoke[SendOtpResponse](ctx, c.cc, AuthService_SendOtp_FullMethodName, in, opts)
}

func (c *authServiceClient) VerifyOtp(ctx context.Context, in *VerifyOtpRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, AuthService_VerifyOtp_FullMethodName, in, opts)
}

func (c *authServiceClient) SsoLogin(ctx context.Context, in *SsoLoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, AuthService_SsoLogin_FullMethodName, in, opts)
}

func (c *authServiceClient) RefreshTokens(ctx context.Context, in *RefreshTokensRequest, opts ...grpc.CallOption) (*RefreshTokensResponse, error) {
	return invoke[RefreshTokensResponse](ctx, c.cc, AuthService_RefreshTokens_FullMethodName, in, opts)
}

func (c *authServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, AuthService_Logout_FullMethodName, in, opts)
}

func (c *authServiceClient) Introspect(ctx context.Context, in *IntrospectRequest, opts ...grpc.CallOption) (*IntrospectResponse, error) {
	return invoke[IntrospectResponse](ctx, c.cc, AuthService_Introspect_FullMethodName, in, opts)
}
