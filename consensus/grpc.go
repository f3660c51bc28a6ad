package consensus

import (
	"bytes"
	"context"
	"encoding/gob"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/fra-chain/stakingcore/errors"
)

// Empty stands in for google.protobuf.Empty on RPCs whose contract has no
// response payload (begin_block's "-> void").
type Empty struct{}

// gobCodec lets the gRPC service exchange the hand-written request/response
// structs below without a .proto pipeline, per SPEC_FULL.md 10.4's
// "hand-written Go structs standing in for the generated stubs." No
// third-party RPC codec in the retrieval pack improves on stdlib gob for
// this purpose, so this is a documented stdlib carve-out. gob also encodes
// consensus.Envelope, the utxo client's codec, model.ValidatorInfo's
// GobEncode/GobDecode and the stores/snapshot row body.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.NewProcessingError("gob marshal failed", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errors.NewProcessingError("gob unmarshal failed", err)
	}
	return nil
}

func (gobCodec) Name() string { return "gob" }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// CallOption is the dial/call option every consensus gRPC client must use to
// select the gob codec negotiated above.
var CallOption = grpc.CallContentSubtype(gobCodec{}.Name())

func beginBlockHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BeginBlockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(ClientI).BeginBlock(ctx, *req.(*BeginBlockRequest))
		return &Empty{}, err
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stakingcore.consensus.Consensus/BeginBlock"}
	return interceptor(ctx, in, info, handler)
}

func deliverTxHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeliverTxRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClientI).DeliverTx(ctx, *req.(*DeliverTxRequest))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stakingcore.consensus.Consensus/DeliverTx"}
	return interceptor(ctx, in, info, handler)
}

func endBlockHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
		return srv.(ClientI).EndBlock(ctx)
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stakingcore.consensus.Consensus/EndBlock"}
	return interceptor(ctx, in, info, handler)
}

func commitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
		return srv.(ClientI).Commit(ctx)
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stakingcore.consensus.Consensus/Commit"}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc registers the Consensus Driver Contract as a gRPC service
// backed by any ClientI (normally a *Driver).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "stakingcore.consensus.Consensus",
	HandlerType: (*ClientI)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BeginBlock", Handler: beginBlockHandler},
		{MethodName: "DeliverTx", Handler: deliverTxHandler},
		{MethodName: "EndBlock", Handler: endBlockHandler},
		{MethodName: "Commit", Handler: commitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "consensus.proto",
}

// RegisterServer exposes driver as a gRPC service on s.
func RegisterServer(s *grpc.Server, driver ClientI) {
	s.RegisterService(&ServiceDesc, driver)
}

// GRPCClient implements ClientI against a remote Driver over a grpc.ClientConn.
type GRPCClient struct {
	conn *grpc.ClientConn
}

var _ ClientI = (*GRPCClient)(nil)

// NewGRPCClient wraps an established connection.
func NewGRPCClient(conn *grpc.ClientConn) *GRPCClient {
	return &GRPCClient{conn: conn}
}

func (c *GRPCClient) BeginBlock(ctx context.Context, req BeginBlockRequest) error {
	out := new(Empty)
	return c.conn.Invoke(ctx, "/stakingcore.consensus.Consensus/BeginBlock", &req, out, CallOption)
}

func (c *GRPCClient) DeliverTx(ctx context.Context, req DeliverTxRequest) (DeliverTxResponse, error) {
	out := new(DeliverTxResponse)
	err := c.conn.Invoke(ctx, "/stakingcore.consensus.Consensus/DeliverTx", &req, out, CallOption)
	return *out, err
}

func (c *GRPCClient) EndBlock(ctx context.Context) (EndBlockResponse, error) {
	out := new(EndBlockResponse)
	err := c.conn.Invoke(ctx, "/stakingcore.consensus.Consensus/EndBlock", &Empty{}, out, CallOption)
	return *out, err
}

func (c *GRPCClient) Commit(ctx context.Context) (CommitResponse, error) {
	out := new(CommitResponse)
	err := c.conn.Invoke(ctx, "/stakingcore.consensus.Consensus/Commit", &Empty{}, out, CallOption)
	return *out, err
}
