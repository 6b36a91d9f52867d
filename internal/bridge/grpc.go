package bridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service every call name lives under.
const ServiceName = "pldownloader.DownloaderPlugin"

func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// GRPCClient forwards calls to a remote Registry served by NewGRPCServer.
type GRPCClient struct {
	conn  grpc.ClientConnInterface
	token string
	close func() error
}

// DialGRPC connects to target without TLS; extra options are appended.
func DialGRPC(target, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("bridge dial %s: %w", target, err)
	}
	c := NewGRPCClient(conn, token)
	c.close = conn.Close
	return c, nil
}

func NewGRPCClient(conn grpc.ClientConnInterface, token string) *GRPCClient {
	return &GRPCClient{conn: conn, token: token}
}

func (c *GRPCClient) Call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return fmt.Errorf("remote call %s: %w", method, err)
	}
	if resp == nil {
		return nil
	}
	raw, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func (c *GRPCClient) Close() error {
	if c.close != nil {
		return c.close()
	}
	return nil
}

// NewGRPCServer serves reg without generated stubs: every method of
// ServiceName is routed by name through an unknown-service handler.
func NewGRPCServer(reg *Registry, token string, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	h := &grpcHandler{registry: reg, token: token, logger: logger}
	opts = append(opts, grpc.UnknownServiceHandler(h.handle))
	return grpc.NewServer(opts...)
}

type grpcHandler struct {
	registry *Registry
	token    string
	logger   *slog.Logger
}

func (h *grpcHandler) handle(_ any, stream grpc.ServerStream) error {
	fullMethod, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "method name unavailable")
	}
	service, method, _ := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if service != ServiceName {
		return status.Errorf(codes.Unimplemented, "unknown service %s", service)
	}
	if err := h.authorize(stream.Context()); err != nil {
		return err
	}
	if _, ok := h.registry.Lookup(method); !ok {
		return status.Errorf(codes.Unimplemented, "no handler for %q", method)
	}

	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	payload, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	reply, err := h.registry.Invoke(stream.Context(), method, payload)
	if err != nil {
		h.logger.Warn("Bridge handler failed", "method", method, "error", err)
		if errors.Is(err, ErrNoHandler) {
			return status.Error(codes.Unimplemented, err.Error())
		}
		return status.Error(codes.Aborted, err.Error())
	}
	if emptyReply(reply) {
		h.logger.Warn("Bridge handler failed", "method", method, "error", ErrEmptyReply)
		return status.Errorf(codes.Internal, "%s: %v", method, ErrEmptyReply)
	}

	out, err := rawToStruct(reply)
	if err != nil {
		return status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return stream.SendMsg(out)
}

func (h *grpcHandler) authorize(ctx context.Context) error {
	if h.token == "" {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	want := "Bearer " + h.token
	for _, got := range md.Get("authorization") {
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "invalid bridge token")
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return rawToStruct(raw)
}

func rawToStruct(raw json.RawMessage) (*structpb.Struct, error) {
	fields := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	return structpb.NewStruct(fields)
}
