package dqn

import (
	"context"
	"net"
	"testing"

	"github.com/samuelfneumann/godqn/network"
	"github.com/samuelfneumann/godqn/replay"
	"github.com/samuelfneumann/godqn/replay/rpc"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// remoteTable serves a replay table over an in-memory gRPC connection
func remoteTable(t *testing.T, c replay.ServerConfig) (*replay.Server,
	*rpc.Client) {
	server, err := replay.NewServer(c)
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	s := rpc.NewGRPCServer(server)
	go s.Serve(lis)

	dialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}
	client, err := rpc.Dial(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer))
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		client.Close()
		s.Stop()
		server.Close()
	})
	return server, client
}

func TestNewFromTable(t *testing.T) {
	c := smallConfig()
	server, client := remoteTable(t, replay.ServerConfig{
		Features:         4,
		MinSize:          c.MinReplaySize,
		MaxSize:          c.MaxReplaySize,
		PriorityExponent: c.PriorityExponent,
		Seed:             1,
	})

	d, err := NewFromTable(discreteSpec(4, 3),
		network.NewMLP([]int{8}, network.ReLU, nil), client, c)
	if err != nil {
		t.Fatal(err)
	}
	if d.Replay().Server != nil {
		t.Error("agent on a remote table should not own a server")
	}
	if d.Learner().client != replay.Client(client) {
		t.Error("learner should update priorities on the remote table")
	}

	ctx := context.Background()
	obs := mat.NewVecDense(4, []float64{0.1, -0.1, 0.2, 0})
	if err := d.ObserveFirst(ts.New(ts.First, 0, 1, obs, 0)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		action, err := d.SelectAction(obs)
		if err != nil {
			t.Fatal(err)
		}
		stepType := ts.Mid
		if i == 29 {
			stepType = ts.Last
		}
		if err := d.Observe(action, ts.New(stepType, 1, 1, obs,
			i+1)); err != nil {
			t.Fatal(err)
		}
		if err := d.Update(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if d.Learner().Steps() == 0 {
		t.Error("learner never stepped on the remote table")
	}
	info := server.Info()
	if info.Size != 30 || info.Samples == 0 {
		t.Errorf("remote table should hold 30 items and be sampled: %+v",
			info)
	}

	// The table outlives the agent
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !server.Ready() {
		t.Error("closing the agent should not close the remote table")
	}
}
