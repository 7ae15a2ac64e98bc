package interceptors

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	requestsMetric = "ridehail.rpc.requests"
	durationMetric = "ridehail.rpc.duration"
)

// TelemetryUnary returns a unary server interceptor that writes one access log line and records
// request count and latency after each RPC. skipMethods are neither logged nor counted
// (e.g. the health check). A nil meter records nothing.
func TelemetryUnary(logger zerolog.Logger, meter metric.Meter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	requests, err := meter.Int64Counter(requestsMetric, metric.WithDescription("Completed RPCs by method and status code."))
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry: request counter unavailable")
		requests, _ = noop.NewMeterProvider().Meter("").Int64Counter(requestsMetric)
	}
	duration, err := meter.Float64Histogram(durationMetric, metric.WithUnit("ms"), metric.WithDescription("RPC latency."))
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry: duration histogram unavailable")
		duration, _ = noop.NewMeterProvider().Meter("").Float64Histogram(durationMetric)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		elapsed := time.Since(start)
		code := status.Code(err)

		attrs := metric.WithAttributes(
			attribute.String("rpc.method", info.FullMethod),
			attribute.String("rpc.grpc.status_code", code.String()),
		)
		requests.Add(ctx, 1, attrs)
		duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

		ev := logger.Info()
		if code == codes.Internal || code == codes.Unknown {
			ev = logger.Error()
		}
		ev = ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Str("client_ip", ClientIP(ctx))
		if id, ok := GetIdentityID(ctx); ok {
			ev = ev.Str("identity_id", id)
		}
		ev.Msg("rpc")
		return resp, err
	}
}
