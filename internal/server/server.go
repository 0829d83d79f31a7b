// Package server exposes the session manager over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/ppiankov/budgetwatch/api/budgetwatch/v1"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
)

// Server implements the BudgetService gRPC server.
type Server struct {
	mgr        *session.Manager
	grpcServer *grpc.Server
}

// New creates a gRPC server backed by mgr.
func New(mgr *session.Manager) *Server {
	s := &Server{
		mgr:        mgr,
		grpcServer: grpc.NewServer(),
	}
	pb.RegisterBudgetServiceServer(s.grpcServer, s)
	return s
}

// Serve listens on addr and serves until stopped.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// StartSession implements the StartSession RPC.
func (s *Server) StartSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.StartSessionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	sess, err := s.mgr.Start(req.ProfileID, req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	fmt.Fprintf(os.Stderr, "server: session %s started (profile %s)\n", sess.ID, sess.ProfileID)
	return encode(pb.StartSessionResponse{Session: sess})
}

// ReportUsage implements the ReportUsage RPC. A counter overflow returns
// ResourceExhausted with the forced handoff obligation attached as a detail.
func (s *Server) ReportUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ReportUsageRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	var (
		obs []model.Obligation
		err error
	)
	if req.Notes != nil {
		obs, err = s.mgr.ReportUsageWithNotes(req.SessionID, req.Delta, *req.Notes)
	} else {
		obs, err = s.mgr.ReportUsage(req.SessionID, req.Delta)
	}
	if err != nil && len(obs) == 0 {
		return nil, toStatus(err)
	}

	resp, rerr := s.respond(ctx, req.SessionID, obs)
	if rerr != nil {
		return nil, rerr
	}
	if err != nil {
		st, derr := status.New(code(err), err.Error()).WithDetails(resp)
		if derr != nil {
			return nil, toStatus(err)
		}
		return nil, st.Err()
	}
	return resp, nil
}

// CompleteSession implements the CompleteSession RPC.
func (s *Server) CompleteSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.CompleteSessionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ob, err := s.mgr.Complete(req.SessionID, req.Notes)
	if err != nil {
		return nil, toStatus(err)
	}
	fmt.Fprintf(os.Stderr, "server: session %s completed at %d\n", req.SessionID, ob.UsageAtTrigger)
	return s.respond(ctx, req.SessionID, []model.Obligation{ob})
}

// HandOffSession implements the HandOffSession RPC.
func (s *Server) HandOffSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.HandOffSessionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ob, err := s.mgr.HandOff(req.SessionID, req.Notes, req.Reason)
	if err != nil {
		return nil, toStatus(err)
	}
	fmt.Fprintf(os.Stderr, "server: session %s handed off at %d\n", req.SessionID, ob.UsageAtTrigger)
	return s.respond(ctx, req.SessionID, []model.Obligation{ob})
}

// GetSession implements the GetSession RPC.
func (s *Server) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.GetSessionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	st, err := s.mgr.Status(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(pb.GetSessionResponse(st))
}

// respond delivers obs to the sinks and builds the response. Delivery
// failures are reported in Undelivered, never as an RPC error.
func (s *Server) respond(ctx context.Context, sessionID string, obs []model.Obligation) (*structpb.Struct, error) {
	undelivered, derr := s.mgr.Deliver(ctx, obs)
	if derr != nil {
		fmt.Fprintf(os.Stderr, "server: session %s: %d obligation(s) undelivered: %v\n", sessionID, len(undelivered), derr)
	}
	for _, ob := range obs {
		if ob.IsEmergency {
			fmt.Fprintf(os.Stderr, "server: session %s EMERGENCY checkpoint %s (%s)\n", sessionID, ob.Tier, ob.Reason)
		}
	}

	resp := pb.ObligationsResponse{
		Obligations: obs,
		Undelivered: undelivered,
	}
	if c, err := s.mgr.Get(sessionID); err == nil {
		resp.Session = c.Snapshot()
	}
	return encode(resp)
}

func decode(in *structpb.Struct, v any) error {
	if err := pb.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := pb.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// code maps engine errors to gRPC status codes.
func code(err error) codes.Code {
	switch {
	case errors.Is(err, model.ErrUnknownSession), errors.Is(err, model.ErrUnknownProfile):
		return codes.NotFound
	case errors.Is(err, model.ErrSessionExists):
		return codes.AlreadyExists
	case errors.Is(err, model.ErrSessionTerminal), errors.Is(err, model.ErrIncompleteNotes):
		return codes.FailedPrecondition
	case errors.Is(err, model.ErrUsageOverflow):
		return codes.ResourceExhausted
	case errors.Is(err, model.ErrNegativeDelta), errors.Is(err, model.ErrInvalidProfile):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.InvalidArgument
	}
}

func toStatus(err error) error {
	return status.Error(code(err), err.Error())
}
