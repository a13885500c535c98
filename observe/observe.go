package observe

import (
	"context"
	"fmt"
	"time"

	"github.com/hatlonely/odb/log/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	// EnableMetrics 是否启用指标收集
	EnableMetrics bool `cfg:"enableMetrics" def:"true"`

	// EnableLogging 是否记录每次操作的日志，成功时为 debug 级别
	EnableLogging bool `cfg:"enableLogging" def:"true"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Name 组件名称标识，用于所有观测维度
	// - Metrics: 作为指标名前缀
	// - Logging: 作为 component 字段值
	// - Tracing: 作为 span 的 component 属性
	Name string `cfg:"name" def:"odb"`
}

// Metrics 封装 prometheus 指标
type Metrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
	rowsHistogram     *prometheus.HistogramVec
}

// NewMetrics 创建指标收集器并注册到 registerer
func NewMetrics(name string, registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		activeOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_operations",
				Help: "Number of active operations",
			},
			[]string{"operation"},
		),
		rowsHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_rows",
				Help:    "Number of rows touched by an operation",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
			[]string{"operation"},
		),
	}

	registerer.MustRegister(
		metrics.operationCounter,
		metrics.operationDuration,
		metrics.activeOperations,
		metrics.rowsHistogram,
	)

	return metrics
}

// Observer 为一次操作统一记录指标、追踪和日志，nil Observer 只执行操作本身
type Observer struct {
	name     string
	logger   logger.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	registry *prometheus.Registry
}

// New 创建观测器，每个观测器持有独立的 prometheus registry
func New(options *Options, l logger.Logger) *Observer {
	if options == nil {
		options = &Options{Name: "odb"}
	}
	name := options.Name
	if name == "" {
		name = "odb"
	}

	obs := &Observer{name: name}
	if options.EnableLogging && l != nil {
		obs.logger = l.WithGroup("observe")
	}
	if options.EnableMetrics {
		obs.registry = prometheus.NewRegistry()
		obs.metrics = NewMetrics(name, obs.registry)
	}
	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("odb.%s", name))
	}
	return obs
}

// Name 组件名称
func (obs *Observer) Name() string {
	if obs == nil {
		return ""
	}
	return obs.name
}

// Registry 返回指标所在的 registry，未启用指标时为 nil
func (obs *Observer) Registry() *prometheus.Registry {
	if obs == nil {
		return nil
	}
	return obs.registry
}

// Observe 执行 fn 并记录观测数据，attrs 附加到 span 上
func (obs *Observer) Observe(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if obs == nil {
		return fn(ctx)
	}

	start := time.Now()

	// 创建 tracing span
	var span trace.Span
	if obs.tracer != nil {
		spanAttrs := append([]attribute.KeyValue{
			attribute.String("component", obs.name),
			attribute.String("operation", operation),
		}, attrs...)
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("%s.%s", obs.name, operation), trace.WithAttributes(spanAttrs...))
		defer span.End()
	}

	// 记录活跃操作数
	if obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	if obs.logger != nil {
		if err != nil {
			obs.logger.WarnContext(ctx, "operation failed",
				"component", obs.name,
				"operation", operation,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.DebugContext(ctx, "operation completed",
				"component", obs.name,
				"operation", operation,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}

// ObserveRows 记录一次操作涉及的行数
func (obs *Observer) ObserveRows(operation string, rows int) {
	if obs == nil || obs.metrics == nil {
		return
	}
	obs.metrics.rowsHistogram.WithLabelValues(operation).Observe(float64(rows))
}
