package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/pkg/enginerpc"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

// GRPCServer реализация сервиса formula.Engine
type GRPCServer struct {
	enginerpc.UnimplementedEngineServer

	engine *engine.Engine
	log    *slog.Logger
}

func NewGRPCServer(e *engine.Engine, log *slog.Logger) *GRPCServer {
	return &GRPCServer{engine: e, log: log}
}

// NewGRPC создает gRPC сервер с зарегистрированным сервисом. Токен из
// метаданных "authorization" необязателен; при его наличии запросы
// выполняются от имени пользователя.
func NewGRPC(e *engine.Engine, a *auth.Manager, log *slog.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(authInterceptor(a)))
	enginerpc.RegisterEngineServer(s, NewGRPCServer(e, log))
	return s
}

// ServeGRPC слушает addr и обслуживает запросы до остановки сервера
func ServeGRPC(s *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func authInterceptor(a *auth.Manager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok || len(md.Get("authorization")) == 0 {
			return handler(ctx, req)
		}
		user, err := a.Authenticate(md.Get("authorization")[0])
		if err != nil {
			return nil, grpcError(err)
		}
		return handler(auth.SetUserContext(ctx, user), req)
	}
}

func grpcUser(ctx context.Context) *models.User {
	if user, ok := auth.GetUserFromContext(ctx); ok {
		return &user
	}
	return nil
}

func (s *GRPCServer) fail(method string, err error) error {
	s.log.Info("grpc.rejected", "method", method, "error", err)
	return grpcError(err)
}

func (s *GRPCServer) Resolve(ctx context.Context, in *models.ResolveRequest) (*models.ResolveResponse, error) {
	resp, err := s.engine.Handle(ctx, grpcUser(ctx), formulaRequest(in))
	if err != nil {
		return nil, s.fail("Resolve", err)
	}
	out := resolveResponse(resp)
	return &out, nil
}

func (s *GRPCServer) Solve(ctx context.Context, in *models.SolveRequest) (*models.SolveResponse, error) {
	resp, err := s.engine.Handle(ctx, nil, engine.EquationRequest{Equations: in.Equations})
	if err != nil {
		return nil, s.fail("Solve", err)
	}
	out := solveResponse(resp)
	return &out, nil
}

func (s *GRPCServer) Plot(ctx context.Context, in *models.PlotRequest) (*models.PlotResponse, error) {
	resp, err := s.engine.Handle(ctx, grpcUser(ctx), plotRequest(in))
	if err != nil {
		return nil, s.fail("Plot", err)
	}
	out := &models.PlotResponse{PNG: resp.PNG}
	if resp.PlotPath != "" {
		out.DownloadURL = PlotDownloadURL
	}
	return out, nil
}
