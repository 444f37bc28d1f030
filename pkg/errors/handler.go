package errors

import (
	"context"
	"fmt"

	"mbbridge/pkg/logger"
)

// DiagnosticPublisher lets the error handler optionally republish a failure
// onto the MQTT diagnostic topic (A5) alongside the local log line.
type DiagnosticPublisher interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// Handler centralizes log-level selection and diagnostic republishing so
// every component reports failures the same way.
type Handler struct {
	diagnosticPublisher DiagnosticPublisher
}

// NewHandler creates a new error handler. publisher may be nil (diagnostics disabled).
func NewHandler(publisher DiagnosticPublisher) *Handler {
	return &Handler{diagnosticPublisher: publisher}
}

// Handle logs err at a level derived from its severity and, for typed
// errors, republishes a diagnostic summary.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	switch e := err.(type) {
	case *ModbusError:
		h.logBySeverity(e.Severity, "modbus", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("slave %d: %s (%s)", e.SlaveID, e.Op, e.Kind))
	case *MQTTError:
		h.logBySeverity(e.Severity, "mqtt", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("broker %q: %s", e.Broker, e.Op))
	case *ConfigError:
		logger.LogError("config error: %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("config field %q: %s", e.Field, e.Op))
	case *ValidationError:
		logger.LogError("validation error: %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("validation failed for %q", e.Field))
	case *BridgeError:
		h.logBySeverity(e.Severity, "bridge", e.Error())
		h.publish(ctx, e.Code, e.Op)
	default:
		logger.LogError("unclassified error: %v", err)
		h.publish(ctx, 99, err.Error())
	}
}

func (h *Handler) logBySeverity(sev ErrorSeverity, category, msg string) {
	switch sev {
	case SeverityCritical, SeverityError:
		logger.LogError("%s: %s", category, msg)
	case SeverityWarning:
		logger.LogWarn("%s: %s", category, msg)
	default:
		logger.LogInfo("%s: %s", category, msg)
	}
}

func (h *Handler) publish(ctx context.Context, code int, message string) {
	if h.diagnosticPublisher == nil {
		return
	}
	if err := h.diagnosticPublisher.PublishDiagnostic(ctx, code, message); err != nil {
		logger.LogDebug("failed to publish diagnostic: %v", err)
	}
}

// IsRecoverable reports whether the process should keep running after err.
// Only configuration errors are treated as fatal; every Modbus/MQTT failure
// is absorbed into noread/offline semantics by the components that see it.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	switch err.(type) {
	case *ConfigError, *ValidationError:
		return false
	default:
		return true
	}
}

// GetDiagnosticCode extracts the diagnostic code carried by a typed error,
// or 99 for anything untyped.
func GetDiagnosticCode(err error) int {
	if err == nil {
		return 0
	}
	switch e := err.(type) {
	case *ModbusError:
		return e.Code
	case *MQTTError:
		return e.Code
	case *ConfigError:
		return e.Code
	case *ValidationError:
		return e.Code
	case *BridgeError:
		return e.Code
	default:
		return 99
	}
}
