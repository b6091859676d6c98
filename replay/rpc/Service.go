package rpc

import (
	"context"
	"errors"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godqn/replay"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "godqn.replay.Replay"

// Transition is the wire format of a transition
type Transition struct {
	State     []float64 `json:"state"`
	Action    int       `json:"action"`
	Reward    float64   `json:"reward"`
	Discount  float64   `json:"discount"`
	NextState []float64 `json:"next_state"`
}

// InsertRequest inserts a transition with a priority
type InsertRequest struct {
	Transition Transition `json:"transition"`
	Priority   float64    `json:"priority"`
}

// InsertResponse returns the key of an inserted transition
type InsertResponse struct {
	Key uint64 `json:"key"`
}

// SampleRequest samples a batch of transitions
type SampleRequest struct {
	BatchSize int `json:"batch_size"`
}

// SampleResponse returns a sampled batch
type SampleResponse struct {
	Batch replay.Batch `json:"batch"`
}

// MutatePrioritiesRequest updates the priorities of transitions
type MutatePrioritiesRequest struct {
	Keys       []uint64  `json:"keys"`
	Priorities []float64 `json:"priorities"`
}

// MutatePrioritiesResponse is empty
type MutatePrioritiesResponse struct{}

// InfoRequest is empty
type InfoRequest struct{}

// InfoResponse returns the state of the table
type InfoResponse struct {
	Info replay.Info `json:"info"`
}

// ReplayServer is the server API of the replay service
type ReplayServer interface {
	Insert(context.Context, *InsertRequest) (*InsertResponse, error)
	Sample(context.Context, *SampleRequest) (*SampleResponse, error)
	MutatePriorities(context.Context, *MutatePrioritiesRequest) (
		*MutatePrioritiesResponse, error)
	Info(context.Context, *InfoRequest) (*InfoResponse, error)
}

// service implements ReplayServer on a replay.Server
type service struct {
	server *replay.Server
}

// NewService returns a ReplayServer backed by server
func NewService(server *replay.Server) ReplayServer {
	return &service{server}
}

func (s *service) Insert(_ context.Context,
	req *InsertRequest) (*InsertResponse, error) {
	t := req.Transition
	if len(t.State) == 0 || len(t.NextState) == 0 {
		return nil, status.Error(codes.InvalidArgument,
			"insert: transition is missing states")
	}

	key, err := s.server.Insert(ts.Transition{
		State:     mat.NewVecDense(len(t.State), t.State),
		Action:    t.Action,
		Reward:    t.Reward,
		Discount:  t.Discount,
		NextState: mat.NewVecDense(len(t.NextState), t.NextState),
	}, req.Priority)
	if err != nil {
		return nil, toStatus(err)
	}
	return &InsertResponse{key}, nil
}

func (s *service) Sample(_ context.Context,
	req *SampleRequest) (*SampleResponse, error) {
	b, err := s.server.Sample(req.BatchSize)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SampleResponse{b}, nil
}

func (s *service) MutatePriorities(_ context.Context,
	req *MutatePrioritiesRequest) (*MutatePrioritiesResponse, error) {
	if err := s.server.MutatePriorities(req.Keys, req.Priorities); err != nil {
		return nil, toStatus(err)
	}
	return &MutatePrioritiesResponse{}, nil
}

func (s *service) Info(context.Context, *InfoRequest) (*InfoResponse,
	error) {
	return &InfoResponse{s.server.Info()}, nil
}

// toStatus converts replay errors into gRPC status errors
func toStatus(err error) error {
	switch {
	case replay.IsInsufficientSamples(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case replay.IsZeroPriorities(err):
		return status.Error(codes.Aborted, err.Error())
	case replay.IsClosed(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// fromStatus converts gRPC status errors back into replay errors
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &replay.Error{Op: op, Err: err}
	}

	switch st.Code() {
	case codes.FailedPrecondition:
		return &replay.Error{Op: op, Err: replay.ErrInsufficientSamples}
	case codes.Aborted:
		return &replay.Error{Op: op, Err: replay.ErrZeroPriorities}
	case codes.Unavailable:
		return &replay.Error{Op: op, Err: replay.ErrClosed}
	default:
		return &replay.Error{Op: op, Err: errors.New(st.Message())}
	}
}

func insertHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InsertRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayServer).Insert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Insert",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayServer).Insert(ctx, req.(*InsertRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func sampleHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SampleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayServer).Sample(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Sample",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayServer).Sample(ctx, req.(*SampleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func mutatePrioritiesHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MutatePrioritiesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayServer).MutatePriorities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/MutatePriorities",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayServer).MutatePriorities(ctx,
			req.(*MutatePrioritiesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func infoHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Info",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayServer).Info(ctx, req.(*InfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Insert", Handler: insertHandler},
		{MethodName: "Sample", Handler: sampleHandler},
		{MethodName: "MutatePriorities", Handler: mutatePrioritiesHandler},
		{MethodName: "Info", Handler: infoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replay",
}

// RegisterReplayServer registers srv with a gRPC server
func RegisterReplayServer(s grpc.ServiceRegistrar, srv ReplayServer) {
	s.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer returns a gRPC server which serves server and logs
// failed calls
func NewGRPCServer(server *replay.Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ForceServerCodec(codec{}),
		grpc.UnaryInterceptor(logErrors),
	)
	s := grpc.NewServer(opts...)
	RegisterReplayServer(s, NewService(server))
	return s
}

// logErrors logs calls which fail for reasons other than the table
// not yet being ready
func logErrors(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{},
	error) {
	resp, err := handler(ctx, req)
	if err != nil && status.Code(err) != codes.FailedPrecondition {
		log.Errorf("%v: %v", info.FullMethod, err)
	}
	return resp, err
}
