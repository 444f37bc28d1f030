// Package engine implements the single engine value SPEC_FULL.md §9 calls
// for in place of the source's file-scope globals: it owns the transport,
// registry and every C1-C10 component, and drives the C10 main loop.
package engine

import (
	"context"
	"fmt"
	"time"

	"mbbridge/pkg/config"
	bridgehttp "mbbridge/pkg/http"
	"mbbridge/pkg/groupread"
	"mbbridge/pkg/health"
	"mbbridge/pkg/liveness"
	"mbbridge/pkg/logger"
	"mbbridge/pkg/metrics"
	"mbbridge/pkg/mqttbridge"
	"mbbridge/pkg/publisher"
	"mbbridge/pkg/recovery"
	"mbbridge/pkg/registry"
	"mbbridge/pkg/scheduler"
	"mbbridge/pkg/tag"
	"mbbridge/pkg/transport"
	"mbbridge/pkg/writequeue"
)

// healthGracePeriod tolerates a short run of consecutive Modbus errors
// before the bridge-wide health status flips unhealthy (A4), matching the
// circuit breaker's own default recovery timeout.
const healthGracePeriod = 30 * time.Second

// Engine is the single value that owns everything the main loop touches.
// Every field here is written from exactly one goroutine — the Run loop —
// except health and metrics, which are safe for concurrent read from the
// optional HTTP listeners (SPEC_FULL.md §5).
type Engine struct {
	cfg *config.Config
	reg *registry.Registry

	rawTransport *transport.RTUTransport
	transport    transport.Transport

	liveness    *liveness.Tracker
	publisher   *publisher.Publisher
	groupEngine *groupread.Engine
	scheduler   *scheduler.Scheduler
	writeQueue  *writequeue.Queue
	mqttClient  *mqttbridge.Client
	health      *health.Monitor
	metrics     metrics.MetricsCollector
	perf        *metrics.PerformanceTracker

	cpuTempReader CPUTempReader
	loopInterval  time.Duration
	version       string
}

// New builds the engine from a validated configuration: dials the serial
// port, constructs every C1-C10 component and builds the tag registry.
// All tags and cycles are created here, at startup, and live until
// Shutdown — there is no dynamic add/remove at runtime (SPEC_FULL.md §3
// Lifecycle invariant).
func New(cfg *config.Config, version string) (*Engine, error) {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	rtu, err := transport.Dial(transport.Config{
		Device:          cfg.ModbusRTU.Device,
		BaudRate:        cfg.ModbusRTU.BaudRate,
		ResponseTimeout: cfg.ModbusRTU.ResponseTimeout(),
		InterSlaveDelay: cfg.ModbusRTU.InterSlaveDelay(),
		MaxRetries:      cfg.ModbusRTU.MaxRetries,
		DebugLevel:      cfg.ModbusRTU.DebugLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("dial modbus rtu %s: %w", cfg.ModbusRTU.Device, err)
	}

	cb := transport.NewCircuitBreakerTransport(rtu, recovery.CircuitBreakerConfig{})

	var metricsCollector metrics.MetricsCollector
	if cfg.Metrics.Port > 0 {
		metricsCollector = metrics.NewPrometheusMetrics()
	} else {
		metricsCollector = metrics.NewNullMetrics()
	}

	healthMon := health.NewMonitor(healthGracePeriod)
	mt := transport.NewMetricsTransport(cb, metricsCollector, healthMon)

	mqttClient := mqttbridge.New(mqttbridge.Config{
		Broker:      cfg.MQTT.Broker,
		Port:        cfg.MQTT.Port,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		ClientID:    cfg.MQTT.ClientID,
		RetryDelay:  time.Duration(cfg.MQTT.RetryDelayMs) * time.Millisecond,
		StatusTopic: cfg.MQTT.StatusTopic,
	}, reg)

	mp := &metricsPublisher{client: mqttClient, metrics: metricsCollector}

	diagnosticTopic := ""
	if cfg.Diagnostics.Enabled {
		diagnosticTopic = cfg.Diagnostics.Topic
	}
	lv := liveness.New(mp, cfg.ModbusRTU.SlaveStatusTopic, cfg.ModbusRTU.SlaveStatusRetain, diagnosticTopic)

	pub := publisher.New(mp)
	groupEngine := groupread.New(mt, lv, pub, cfg.ModbusRTU.MaxRetries)
	sched := scheduler.New(groupEngine, cfg.ModbusRTU.InterSlaveDelay())
	wq := writequeue.New(mt, lv, cfg.ModbusRTU.InterSlaveDelay(), cfg.ModbusRTU.WriteMaxAttempts)

	return &Engine{
		cfg:           cfg,
		reg:           reg,
		rawTransport:  rtu,
		transport:     mt,
		liveness:      lv,
		publisher:     pub,
		groupEngine:   groupEngine,
		scheduler:     sched,
		writeQueue:    wq,
		mqttClient:    mqttClient,
		health:        healthMon,
		metrics:       metricsCollector,
		perf:          metrics.NewPerformanceTracker(time.Minute),
		cpuTempReader: newSysfsCPUTempReader(),
		loopInterval:  time.Duration(cfg.MainLoopIntervalMs) * time.Millisecond,
		version:       version,
	}, nil
}

// buildRegistry turns a validated configuration into the tag registry,
// mirroring mb_assign_updatecycles and the per-slave tag setup of
// original_source/mbbridge.cpp.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.New()

	for _, c := range cfg.UpdateCycles {
		reg.AddCycle(&registry.UpdateCycle{Ident: c.ID, Interval: c.Interval})
	}

	for _, slave := range cfg.Slaves {
		if !slave.Enabled {
			continue
		}
		for _, t := range slave.Tags {
			rt, err := tag.NewReadTag(slave.ID, t.Address)
			if err != nil {
				return nil, fmt.Errorf("slave %d tag address %d: %w", slave.ID, t.Address, err)
			}
			rt.UpdateCycleID = t.UpdateCycle
			rt.GroupID = t.Group
			rt.DeviceName = slave.Name
			rt.Topic = t.Topic
			if t.Format != "" {
				rt.Format = t.Format
			}
			if t.Multiplier != nil {
				rt.Multiplier = *t.Multiplier
			}
			if t.Offset != nil {
				rt.Offset = *t.Offset
			}
			if t.Retain != nil {
				rt.PublishRetain = *t.Retain
			} else {
				rt.PublishRetain = slave.DefaultRetain
			}
			rt.NoreadValue = t.NoreadValue
			if t.NoreadAction != nil {
				rt.NoreadAction = tag.NoreadAction(*t.NoreadAction)
			} else {
				rt.NoreadAction = tag.NoreadAction(slave.DefaultNoreadAction)
			}
			rt.NoreadIgnore = t.NoreadIgnore
			reg.AddReadTag(rt)
		}
	}
	reg.AssignCycleIndices()

	for _, wt := range cfg.WriteTags {
		dt, err := tag.ParseWriteDataType(wt.DataType)
		if err != nil {
			return nil, fmt.Errorf("write tag %s: %w", wt.Topic, err)
		}
		w, err := tag.NewWriteTag(wt.Topic, wt.SlaveID, wt.Address, dt, wt.IgnoreRetained)
		if err != nil {
			return nil, fmt.Errorf("write tag %s: %w", wt.Topic, err)
		}
		reg.AddWriteTag(w)
	}

	if cfg.CPUTemp != nil {
		reg.AddLocalTag(&tag.LocalTag{
			Topic:           cfg.CPUTemp.Topic,
			ReadInterval:    time.Duration(cfg.CPUTemp.ReadIntervalS) * time.Second,
			PublishInterval: time.Duration(cfg.CPUTemp.PublishInterval) * time.Second,
			Retain:          cfg.CPUTemp.Retain,
		})
	}

	return reg, nil
}

// Run connects MQTT, starts the optional ambient HTTP listeners, and then
// drives the C10 main loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Health.Port > 0 {
		handler := bridgehttp.NewHealthHandler(e.health, e.version)
		go func() {
			if err := bridgehttp.StartHealthServer(handler, e.cfg.Health.Port); err != nil {
				logger.LogError("health server stopped: %v", err)
			}
		}()
	}
	if pm, ok := e.metrics.(*metrics.PrometheusMetrics); ok && e.cfg.Metrics.Port > 0 {
		go func() {
			if err := pm.StartMetricsServer(e.cfg.Metrics.Port); err != nil {
				logger.LogError("metrics server stopped: %v", err)
			}
		}()
	}

	if err := e.mqttClient.Connect(ctx); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	logger.LogStartup("engine started, main loop interval %s", e.loopInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tickStart := time.Now()
		e.tick(ctx, tickStart)
		e.perf.PrintSummaryIfNeeded()

		remaining := e.loopInterval - time.Since(tickStart)
		if remaining <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(remaining):
		}
	}
}

// tick implements steps 1 and 2 of SPEC_FULL.md §4.10; the sleep of step 4
// is done by Run. Reconnection (step 3 in the spec) is not a separate timer
// here: mqttbridge.Client enables paho's
// AutoReconnect, so the broker reconnect the spec schedules explicitly is
// instead driven by the MQTT library's own backoff goroutine, consistent
// with this codebase's single-buffered-channel handoff (SPEC_FULL.md §5).
func (e *Engine) tick(ctx context.Context, now time.Time) {
	e.mqttClient.DrainInbound(e.reg)

	if e.mqttClient.Connected() {
		e.scheduler.Tick(ctx, e.reg, now)
		if e.writeQueue.DrainOne(ctx, e.reg) == writequeue.Progressed {
			e.perf.RecordSuccess()
		}
	}

	e.processLocalTags(ctx, now)
}

// processLocalTags implements the CPU-temp read/publish loop grounded on
// original_source/mbbridge.cpp's var_process(): read when due, publish
// when due, independently of each other.
func (e *Engine) processLocalTags(ctx context.Context, now time.Time) {
	for _, lt := range e.reg.LocalTags() {
		if !now.Before(lt.NextReadTime) {
			if v, err := e.cpuTempReader.ReadCelsius(); err != nil {
				logger.LogWarn("local tag %s: read failed: %v", lt.Topic, err)
			} else {
				lt.Value = v
			}
			lt.NextReadTime = now.Add(lt.ReadInterval)
		}
		if !now.Before(lt.NextPublishTime) {
			if err := e.publisher.PublishLocalTag(ctx, lt); err != nil {
				logger.LogWarn("local tag %s: publish failed: %v", lt.Topic, err)
			}
			lt.NextPublishTime = now.Add(lt.PublishInterval)
		}
	}
}

// Shutdown runs the procedure of SPEC_FULL.md §5: force every online slave
// offline and publish, close the serial port, optionally clear or
// publish-noread retained tags, then disconnect MQTT. The tag/cycle arrays
// this engine owns are released simply by the engine going out of scope.
func (e *Engine) Shutdown(ctx context.Context) {
	e.liveness.ForceAllOffline(ctx)

	if err := e.transport.Close(); err != nil {
		logger.LogWarn("closing serial port: %v", err)
	}

	if e.cfg.MQTT.ClearOnExit || e.cfg.MQTT.NoreadOnExit {
		e.publisher.ClearAllTags(ctx, e.reg, e.cfg.MQTT.NoreadOnExit, e.cfg.MQTT.ClearOnExit)
	}

	e.mqttClient.Disconnect()
	logger.LogInfo("engine shutdown complete")
}

// HealthMonitor exposes the bridge-wide health monitor, e.g. for a
// diagnostic CLI mode that prints current status without running the loop.
func (e *Engine) HealthMonitor() *health.Monitor {
	return e.health
}
