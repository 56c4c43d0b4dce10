// Package enginerpc описывает gRPC-сервис formula.Engine. Сообщения
// передаются в JSON (кодек "json"), поэтому сервис не требует .proto.
package enginerpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/GGmuzem/formula-engine/pkg/models"
)

// CodecName - content-subtype, под которым зарегистрирован JSON-кодек
const CodecName = "json"

const serviceName = "formula.Engine"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return CodecName }

// EngineServer - серверная часть сервиса
type EngineServer interface {
	Resolve(ctx context.Context, in *models.ResolveRequest) (*models.ResolveResponse, error)
	Solve(ctx context.Context, in *models.SolveRequest) (*models.SolveResponse, error)
	Plot(ctx context.Context, in *models.PlotRequest) (*models.PlotResponse, error)
}

// Базовая реализация EngineServer
type UnimplementedEngineServer struct{}

func (UnimplementedEngineServer) Resolve(context.Context, *models.ResolveRequest) (*models.ResolveResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "метод Resolve не реализован")
}

func (UnimplementedEngineServer) Solve(context.Context, *models.SolveRequest) (*models.SolveResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "метод Solve не реализован")
}

func (UnimplementedEngineServer) Plot(context.Context, *models.PlotRequest) (*models.PlotResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "метод Plot не реализован")
}

// RegisterEngineServer регистрирует сервер Engine в gRPC
func RegisterEngineServer(s grpc.ServiceRegistrar, srv EngineServer) {
	s.RegisterService(&_Engine_serviceDesc, srv)
}

var _Engine_serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: _Engine_Resolve_Handler},
		{MethodName: "Solve", Handler: _Engine_Solve_Handler},
		{MethodName: "Plot", Handler: _Engine_Plot_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "formula.proto",
}

func _Engine_Resolve_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(models.ResolveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Resolve"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).Resolve(ctx, req.(*models.ResolveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_Solve_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(models.SolveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Solve"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).Solve(ctx, req.(*models.SolveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_Plot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(models.PlotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Plot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Plot"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).Plot(ctx, req.(*models.PlotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EngineClient - клиентская часть сервиса
type EngineClient interface {
	Resolve(ctx context.Context, in *models.ResolveRequest, opts ...grpc.CallOption) (*models.ResolveResponse, error)
	Solve(ctx context.Context, in *models.SolveRequest, opts ...grpc.CallOption) (*models.SolveResponse, error)
	Plot(ctx context.Context, in *models.PlotRequest, opts ...grpc.CallOption) (*models.PlotResponse, error)
}

type engineClient struct {
	cc grpc.ClientConnInterface
}

// NewEngineClient создает клиента сервиса Engine поверх соединения
func NewEngineClient(cc grpc.ClientConnInterface) EngineClient {
	return &engineClient{cc: cc}
}

func (c *engineClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *engineClient) Resolve(ctx context.Context, in *models.ResolveRequest, opts ...grpc.CallOption) (*models.ResolveResponse, error) {
	out := new(models.ResolveResponse)
	if err := c.invoke(ctx, "Resolve", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *engineClient) Solve(ctx context.Context, in *models.SolveRequest, opts ...grpc.CallOption) (*models.SolveResponse, error) {
	out := new(models.SolveResponse)
	if err := c.invoke(ctx, "Solve", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *engineClient) Plot(ctx context.Context, in *models.PlotRequest, opts ...grpc.CallOption) (*models.PlotResponse, error) {
	out := new(models.PlotResponse)
	if err := c.invoke(ctx, "Plot", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Dial открывает соединение без TLS
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.Dial(addr, opts...)
}
