package server

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/marwinsteiner/trade-accounting/internal/core"
)

const confirmation = `Your order #123456789 has been filled.
Received At : : January 5, 2024 9:30:00 A M EST
Submitted Order T ype:: Limit
Fill Details
Bought 1 SPX 100 1/19/24 Put 4,700.00 @ 12.35
Filled at:: January 5, 2024 9:31:02 AM EST
Sold 5 XYZ @ n/a
https://broker.example.com/orders/123456789
Disclaimer: Options involve risk.`

func dial(t *testing.T) *grpc.ClientConn {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := NewExtractService(core.NewProcessor(nil, logger), logger)
	srv, _ := New(svc, logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestExtractOverGRPC(t *testing.T) {
	conn := dial(t)
	out := new(structpb.Struct)
	err := conn.Invoke(context.Background(), "/trades.v1.ExtractService/Extract", wrapperspb.String(confirmation), out)
	if err != nil {
		t.Fatalf("Extract error = %v", err)
	}

	m := out.AsMap()
	if m["order_id"] != "123456789" || m["order_type"] != "Limit" {
		t.Errorf("Unexpected record %v", m)
	}
	legs, ok := m["legs"].([]any)
	if !ok || len(legs) != 1 {
		t.Fatalf("Expected 1 leg, got %v", m["legs"])
	}
	leg := legs[0].(map[string]any)
	if leg["strike"] != "4700" || leg["fill_price"] != "12.35" || leg["quantity"] != float64(1) {
		t.Errorf("Unexpected leg %v", leg)
	}
}

func TestExtractErrorsMapToStatus(t *testing.T) {
	conn := dial(t)
	tests := []struct {
		name string
		text string
		code codes.Code
	}{
		{"empty", "   ", codes.InvalidArgument},
		{"missing order id", strings.Replace(confirmation, "order #123456789", "order", 1), codes.InvalidArgument},
		{"no valid legs", strings.Replace(confirmation, "Filled at:: January 5, 2024 9:31:02 AM EST", "", 1), codes.InvalidArgument},
		{"too large", strings.Repeat("x", MaxTextBytes+1), codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := conn.Invoke(context.Background(), "/trades.v1.ExtractService/Extract", wrapperspb.String(tt.text), new(structpb.Struct))
			if got := status.Code(err); got != tt.code {
				t.Errorf("Expected %s, got %s (%v)", tt.code, got, err)
			}
		})
	}
}

func TestNormalizeOverGRPC(t *testing.T) {
	conn := dial(t)
	out := new(wrapperspb.StringValue)
	err := conn.Invoke(context.Background(), "/trades.v1.ExtractService/Normalize", wrapperspb.String("Submitted Order T ype::  Limit\n\nhttp://x.example"), out)
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}
	if out.GetValue() != "Submitted Order Type: Limit" {
		t.Errorf("Unexpected normalized text %q", out.GetValue())
	}
}

func TestHealth(t *testing.T) {
	conn := dial(t)
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ExtractServiceName})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %s", resp.GetStatus())
	}
}
