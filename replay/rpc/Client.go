package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/samuelfneumann/godqn/replay"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var _ replay.Table = (*Client)(nil)

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// Client implements a client of a remote replay table. Client
// implements replay.Table so that an adder and iterator can be built
// on a remote table with replay.MakeNStepReplay.
type Client struct {
	conn         *grpc.ClientConn
	timeout      time.Duration
	pollInterval time.Duration
}

// Dial connects to the replay service at target
func Dial(ctx context.Context, target string,
	opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})))

	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial: %v", err)
	}

	return &Client{
		conn:         conn,
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
	}, nil
}

// SetTimeout sets the timeout of calls made without a context
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *Client) invoke(ctx context.Context, method string, req,
	resp interface{}) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
}

// Insert implements the replay.Inserter interface
func (c *Client) Insert(t ts.Transition, priority float64) (uint64, error) {
	if t.State == nil || t.NextState == nil {
		return 0, &replay.Error{Op: "insert",
			Err: fmt.Errorf("transition is missing states")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req := &InsertRequest{
		Transition: Transition{
			State:     mat.Col(nil, 0, t.State),
			Action:    t.Action,
			Reward:    t.Reward,
			Discount:  t.Discount,
			NextState: mat.Col(nil, 0, t.NextState),
		},
		Priority: priority,
	}
	resp := new(InsertResponse)
	if err := c.invoke(ctx, "Insert", req, resp); err != nil {
		return 0, fromStatus("insert", err)
	}
	return resp.Key, nil
}

// Sample samples a batch from the remote table without waiting
func (c *Client) Sample(ctx context.Context, n int) (replay.Batch, error) {
	resp := new(SampleResponse)
	if err := c.invoke(ctx, "Sample", &SampleRequest{n}, resp); err != nil {
		return replay.Batch{}, fromStatus("sample", err)
	}
	return resp.Batch, nil
}

// SampleWait implements the replay.Sampler interface by polling the
// remote table until it can be sampled
func (c *Client) SampleWait(ctx context.Context,
	n int) (replay.Batch, error) {
	for {
		b, err := c.Sample(ctx, n)
		if !replay.IsInsufficientSamples(err) {
			return b, err
		}

		select {
		case <-ctx.Done():
			return replay.Batch{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Ready implements the replay.Sampler interface. Ready returns false
// if the remote table cannot be reached.
func (c *Client) Ready() bool {
	info, err := c.ServerInfo()
	if err != nil {
		return false
	}
	return info.Size >= info.MinSize
}

// MutatePriorities implements the replay.Client interface
func (c *Client) MutatePriorities(keys []uint64,
	priorities []float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req := &MutatePrioritiesRequest{keys, priorities}
	if err := c.invoke(ctx, "MutatePriorities", req,
		new(MutatePrioritiesResponse)); err != nil {
		return fromStatus("mutatePriorities", err)
	}
	return nil
}

// ServerInfo implements the replay.Client interface
func (c *Client) ServerInfo() (replay.Info, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp := new(InfoResponse)
	if err := c.invoke(ctx, "Info", &InfoRequest{}, resp); err != nil {
		return replay.Info{}, fromStatus("serverInfo", err)
	}
	return resp.Info, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
