// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"code.hybscloud.com/channel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// module wires the domain and its sinks.
func module(opts options) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(
			newLogger,
			newConfig,
			newRegistry,
			newTracerProvider,
			newFlowRecorder,
			newDomain,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(serveMetrics),
	)
}

func newLogger(opts options) (*zap.Logger, error) {
	if opts.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newConfig(opts options) (channel.Config, error) {
	if opts.configPath == "" {
		return channel.DefaultConfig(), nil
	}
	return channel.LoadConfig(opts.configPath)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newTracerProvider(lc fx.Lifecycle, opts options) (trace.TracerProvider, error) {
	if opts.otlpEndpoint == "" {
		return trace.NewNoopTracerProvider(), nil
	}
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(opts.otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	lc.Append(fx.StopHook(tp.Shutdown))
	return tp, nil
}

func newFlowRecorder(tp trace.TracerProvider, cfg channel.Config) *channel.FlowRecorder {
	return channel.NewFlowRecorder(tp, cfg.FlowBufferSize)
}

func newDomain(cfg channel.Config, log *zap.Logger, reg *prometheus.Registry, rec *channel.FlowRecorder) (*channel.Domain, error) {
	return channel.NewDomain(cfg,
		channel.WithLogger(log.Named("channel")),
		channel.WithMetrics(channel.NewMetrics(reg)),
		channel.WithFlowSink(rec),
	)
}

func serveMetrics(lc fx.Lifecycle, opts options, reg *prometheus.Registry, log *zap.Logger) {
	if opts.metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: opts.metricsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", opts.metricsAddr)
			if err != nil {
				return err
			}
			log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
