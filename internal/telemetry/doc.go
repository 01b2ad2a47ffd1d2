// Package telemetry wires OpenTelemetry tracing, metrics, and log export
// for projectd.
//
// Create an instance from the service configuration and hand its providers
// to the packages that instrument themselves:
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version, cfg.Logging.OTEL),
//	    telemetry.WithLogger(zapLogger))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	metrics, _ := project.NewMetrics(tel.Meter(project.InstrumentationName))
//	store, _ := project.NewStore(engine,
//	    project.WithMetrics(metrics),
//	    project.WithTracer(tel.Tracer(project.InstrumentationName)))
//
// Traces and metrics are exported over OTLP gRPC or HTTP; logs from the
// otelzap bridge over OTLP gRPC. Export failures degrade the instance
// instead of failing startup.
//
// Tests use NewTestTelemetry, which captures everything in memory.
package telemetry
