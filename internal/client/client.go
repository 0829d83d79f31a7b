// Package client talks to a budgetwatch gRPC server.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/ppiankov/budgetwatch/api/budgetwatch/v1"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
)

const defaultTimeout = 5 * time.Second

// sentinels are matched against status messages so callers can use errors.Is
// across the wire.
var sentinels = []error{
	model.ErrInvalidProfile,
	model.ErrUnknownProfile,
	model.ErrUnknownSession,
	model.ErrSessionExists,
	model.ErrNegativeDelta,
	model.ErrSessionTerminal,
	model.ErrUsageOverflow,
	model.ErrIncompleteNotes,
}

// Client connects to a budgetwatch gRPC server.
type Client struct {
	conn *grpc.ClientConn
}

// New creates a gRPC client for addr. The connection is established lazily.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to budget server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Start opens a session under profileID. Empty sessionID lets the server pick.
func (c *Client) Start(ctx context.Context, profileID, sessionID string) (model.Session, error) {
	var resp pb.StartSessionResponse
	err := c.invoke(ctx, pb.BudgetService_StartSession_FullMethodName,
		pb.StartSessionRequest{ProfileID: profileID, SessionID: sessionID}, &resp)
	return resp.Session, err
}

// Report adds delta to a session. notes may be nil.
// On a counter overflow both the forced handoff obligation and an error
// wrapping model.ErrUsageOverflow are returned.
func (c *Client) Report(ctx context.Context, sessionID string, delta int64, notes *model.ProgressNotes) (pb.ObligationsResponse, error) {
	var resp pb.ObligationsResponse
	err := c.invoke(ctx, pb.BudgetService_ReportUsage_FullMethodName,
		pb.ReportUsageRequest{SessionID: sessionID, Delta: delta, Notes: notes}, &resp)
	return resp, err
}

// Complete finishes a session.
func (c *Client) Complete(ctx context.Context, sessionID string, notes model.ProgressNotes) (pb.ObligationsResponse, error) {
	var resp pb.ObligationsResponse
	err := c.invoke(ctx, pb.BudgetService_CompleteSession_FullMethodName,
		pb.CompleteSessionRequest{SessionID: sessionID, Notes: notes}, &resp)
	return resp, err
}

// HandOff hands a session to a successor.
func (c *Client) HandOff(ctx context.Context, sessionID string, notes model.ProgressNotes, reason string) (pb.ObligationsResponse, error) {
	var resp pb.ObligationsResponse
	err := c.invoke(ctx, pb.BudgetService_HandOffSession_FullMethodName,
		pb.HandOffSessionRequest{SessionID: sessionID, Notes: notes, Reason: reason}, &resp)
	return resp, err
}

// Status returns a session's status.
func (c *Client) Status(ctx context.Context, sessionID string) (session.Status, error) {
	var resp pb.GetSessionResponse
	err := c.invoke(ctx, pb.BudgetService_GetSession_FullMethodName,
		pb.GetSessionRequest{SessionID: sessionID}, &resp)
	return resp, err
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	err := pb.Invoke(ctx, c.conn, method, req, resp)
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			if derr := pb.Decode(s, resp); derr != nil {
				return fmt.Errorf("%w (decode detail: %v)", FromStatus(st), derr)
			}
		}
	}
	return FromStatus(st)
}

// FromStatus rebuilds an engine error from a gRPC status so errors.Is
// works on the client side.
func FromStatus(st *status.Status) error {
	msg := st.Message()
	for _, sentinel := range sentinels {
		if strings.HasPrefix(msg, sentinel.Error()) {
			rest := strings.TrimPrefix(strings.TrimPrefix(msg, sentinel.Error()), ": ")
			if rest == "" {
				return sentinel
			}
			return fmt.Errorf("%w: %s", sentinel, rest)
		}
	}
	return st.Err()
}
