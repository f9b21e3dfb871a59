// Package server exposes the normalizer and extractor over gRPC. The service
// is described by hand on top of the protobuf well-known types, so no
// generated stubs are needed.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/core/extract"
	"github.com/marwinsteiner/trade-accounting/internal/core/normalize"
	"github.com/marwinsteiner/trade-accounting/internal/export"
)

const (
	ExtractServiceName = "trades.v1.ExtractService"
	// MaxTextBytes bounds a single confirmation's text.
	MaxTextBytes = 1 << 20
)

// ExtractServiceServer is the server API for trades.v1.ExtractService.
type ExtractServiceServer interface {
	Normalize(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Extract(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// TextProcessor runs the normalize and extract pipeline on raw text.
type TextProcessor interface {
	ProcessText(ctx context.Context, raw string) (extract.Result, error)
}

type ExtractService struct {
	proc   TextProcessor
	logger *slog.Logger
}

func NewExtractService(proc TextProcessor, logger *slog.Logger) *ExtractService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractService{proc: proc, logger: logger}
}

func validateText(text string) error {
	v := common.NewValidator().Field("text", text, common.Required, common.MaxBytes(MaxTextBytes), common.ValidUTF8)
	return common.ValidateAndReturnError(v)
}

func (s *ExtractService) Normalize(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if err := validateText(req.GetValue()); err != nil {
		return nil, err
	}
	return wrapperspb.String(normalize.Normalize(req.GetValue())), nil
}

func (s *ExtractService) Extract(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := validateText(req.GetValue()); err != nil {
		return nil, err
	}
	log := common.LoggerWith(ctx, s.logger)

	res, err := s.proc.ProcessText(ctx, req.GetValue())
	if err != nil {
		log.Warn("grpc.extract.failed", "error", err)
		return nil, common.ToStatus(err)
	}

	out, err := recordStruct(export.NewTradeRecord(res.Trade))
	if err != nil {
		log.Error("grpc.extract.encode_failed", "order_id", res.Trade.OrderID, "error", err)
		return nil, common.ToStatus(err)
	}
	log.Info("grpc.extract.ok", "order_id", res.Trade.OrderID, "legs", len(res.Trade.Legs), "skipped_legs", len(res.Skipped))
	return out, nil
}

func recordStruct(rec export.TradeRecord) (*structpb.Struct, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return structpb.NewStruct(m)
}

func RegisterExtractServiceServer(s grpc.ServiceRegistrar, srv ExtractServiceServer) {
	s.RegisterService(&ExtractServiceDesc, srv)
}

func normalizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractServiceServer).Normalize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractServiceName + "/Normalize"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractServiceServer).Normalize(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractServiceServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractServiceName + "/Extract"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractServiceServer).Extract(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var ExtractServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractServiceName,
	HandlerType: (*ExtractServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Normalize", Handler: normalizeHandler},
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trades/v1/extract.proto",
}
