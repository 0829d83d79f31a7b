package budgetwatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/profile"
	"github.com/ppiankov/budgetwatch/internal/session"
	"github.com/ppiankov/budgetwatch/internal/sink"
)

// Client runs budget sessions in-process and delivers their obligations.
// Safe for concurrent use; reports for one session are serialized.
type Client struct {
	mgr  *session.Manager
	sink sink.Sink
}

// New creates a Client with the given options. Without options it serves
// the built-in profiles and delivers nowhere.
func New(opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}

	specs := profile.Builtins()
	var s sink.Sink
	if cfg.configPath != "" {
		fileCfg, err := config.LoadConfig(config.ExpandHome(cfg.configPath))
		if err != nil {
			return nil, fmt.Errorf("budgetwatch: failed to load config: %w", err)
		}
		specs = profile.Merge(specs, fileCfg.Profiles)
		if !cfg.sinkSet {
			if s, err = fileCfg.BuildSink(); err != nil {
				return nil, fmt.Errorf("budgetwatch: failed to open sinks: %w", err)
			}
		}
	}
	if cfg.sinkSet {
		s = cfg.sink
	}

	if cfg.profilesPath != "" {
		data, err := os.ReadFile(config.ExpandHome(cfg.profilesPath))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("budgetwatch: failed to read profiles: %w", err), closeSink(s))
		}
		extra, err := profile.Parse(data)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("budgetwatch: %w", err), closeSink(s))
		}
		specs = profile.Merge(specs, extra)
	}

	catalog, err := profile.NewCatalog(specs)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("budgetwatch: %w", err), closeSink(s))
	}

	return &Client{mgr: session.NewManager(catalog, s), sink: s}, nil
}

func closeSink(s sink.Sink) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// Profiles lists the profile ids sessions can start under.
func (c *Client) Profiles() []string {
	return c.mgr.Catalog().IDs()
}

// Start begins a session under profileID. An empty sessionID gets a
// generated one.
func (c *Client) Start(_ context.Context, profileID, sessionID string) (Session, error) {
	return c.mgr.Start(profileID, sessionID)
}

// Report adds delta units to the session's usage and delivers any
// obligations it made due. On usage overflow the session is handed off and
// the emergency obligation is returned together with ErrUsageOverflow.
func (c *Client) Report(ctx context.Context, sessionID string, delta int64) (Result, error) {
	obs, err := c.mgr.ReportUsage(sessionID, delta)
	return c.result(ctx, sessionID, obs, err)
}

// ReportWithNotes is Report with notes replacing the session's progress
// notes first.
func (c *Client) ReportWithNotes(ctx context.Context, sessionID string, delta int64, notes Notes) (Result, error) {
	obs, err := c.mgr.ReportUsageWithNotes(sessionID, delta, notes)
	return c.result(ctx, sessionID, obs, err)
}

// SetNotes replaces the session's progress notes.
func (c *Client) SetNotes(_ context.Context, sessionID string, notes Notes) error {
	return c.mgr.SetNotes(sessionID, notes)
}

// Complete ends the session successfully and delivers the completion
// checkpoint.
func (c *Client) Complete(ctx context.Context, sessionID string, notes Notes) (Result, error) {
	ob, err := c.mgr.Complete(sessionID, notes)
	if err != nil {
		return Result{}, err
	}
	return c.result(ctx, sessionID, []model.Obligation{ob}, nil)
}

// HandOff ends the session for continuation elsewhere and delivers the
// handoff checkpoint.
func (c *Client) HandOff(ctx context.Context, sessionID string, notes Notes, reason string) (Result, error) {
	ob, err := c.mgr.HandOff(sessionID, notes, reason)
	if err != nil {
		return Result{}, err
	}
	return c.result(ctx, sessionID, []model.Obligation{ob}, nil)
}

// Status returns the session with its budget and next scheduled tier.
func (c *Client) Status(sessionID string) (Status, error) {
	return c.mgr.Status(sessionID)
}

// Forget drops a terminal session from the client.
func (c *Client) Forget(sessionID string) error {
	return c.mgr.Forget(sessionID)
}

// Close releases the client's sinks.
func (c *Client) Close() error {
	return closeSink(c.sink)
}

// result delivers obs and assembles the Result. Obligations returned with
// an operation error are still delivered; the operation error wins over any
// delivery error.
func (c *Client) result(ctx context.Context, sessionID string, obs []model.Obligation, opErr error) (Result, error) {
	if opErr != nil && len(obs) == 0 {
		return Result{}, opErr
	}
	res := Result{Obligations: obs}
	undelivered, derr := c.mgr.Deliver(ctx, obs)
	res.Undelivered = undelivered
	if ctl, err := c.mgr.Get(sessionID); err == nil {
		res.Session = ctl.Snapshot()
	}
	if opErr != nil {
		return res, opErr
	}
	if derr != nil {
		return res, fmt.Errorf("budgetwatch: %d obligation(s) undelivered: %w", len(undelivered), derr)
	}
	return res, nil
}
