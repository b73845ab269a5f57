// Package metrics provides Prometheus instrumentation for goduplex components.
//
// Composers and ends accept a *Registry through their Config. A nil registry
// disables instrumentation for that component.
//
// # Quick Start
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	c := duplex.DuplexerWithConfig(duplex.Config{Name: "upload", Metrics: m}, sink, source)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
// ## Composer Metrics
//
//   - goduplex_composer_chunks_total: Chunks relayed, by direction ("in" from the readable end, "out" to the writable end)
//   - goduplex_composer_bytes_total: Bytes relayed, by direction
//   - goduplex_composer_backpressure_pauses_total: Pauses applied to the readable end
//   - goduplex_composer_drains_total: Drain signals that released a pending write
//   - goduplex_composer_finalized_total: Clean finalizations
//   - goduplex_composer_destroyed_total: Destructions, by error kind
//   - goduplex_composer_active: Composers not yet closed
//   - goduplex_composer_queued_bytes: Bytes waiting in the inbound queue
//
// ## End Metrics
//
//   - goduplex_end_chunks_total: Chunks produced or consumed by concrete ends
//   - goduplex_end_errors_total: Ends destroyed with an error
//   - goduplex_writer_flushes_total: Writer sink flushes
//   - goduplex_writer_bytes_written_total: Bytes written by writer sinks
//   - goduplex_writer_retries_total: Writer sink retries
//   - goduplex_source_ticks_total: Scheduled source ticks
//
// # Configuration
//
//	config := metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "myapp",
//		Labels:    prometheus.Labels{"version": "1.0"},
//	}
//	m := metrics.NewRegistryWithConfig(config)
package metrics
