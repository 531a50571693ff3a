package detection

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/types"
)

// ErrRulePanic wraps a panic recovered from a rule.
var ErrRulePanic = errors.New("rule panicked")

const (
	resultOK    = "ok"
	resultError = "error"
)

// Engine runs registered rules against an EvalContext.
// Rules must be registered before evaluation (not concurrent with Register*).
type Engine struct {
	eval         types.EvalContext
	logger       *zap.Logger
	stationRules []types.StationRule
	globalRules  []types.GlobalRule
}

// NewEngine creates an Engine with no rules.
func NewEngine(eval types.EvalContext, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		eval:   eval,
		logger: logger.Named("detection"),
	}
}

// NewDefaultEngine creates an Engine with every built-in rule registered.
func NewDefaultEngine(eval types.EvalContext, logger *zap.Logger) *Engine {
	e := NewEngine(eval, logger)
	for _, r := range DefaultStationRules() {
		e.RegisterStationRule(r)
	}
	for _, r := range DefaultGlobalRules() {
		e.RegisterGlobalRule(r)
	}
	return e
}

// DefaultStationRules returns the built-in per-station rules in evaluation order.
func DefaultStationRules() []types.StationRule {
	return []types.StationRule{
		NewScannerAvoidanceRule(),
		NewBarcodeSwitchingRule(),
		NewWeightDiscrepancyRule(),
		NewSystemCrashRule(),
		NewLongQueueRule(),
		NewLongWaitRule(),
	}
}

// DefaultGlobalRules returns the built-in store-wide rules in evaluation order.
func DefaultGlobalRules() []types.GlobalRule {
	return []types.GlobalRule{
		NewInventoryDiscrepancyRule(),
		NewStaffingNeedsRule(),
		NewStationActionRule(),
	}
}

// RegisterStationRule adds a per-station rule.
func (e *Engine) RegisterStationRule(rule types.StationRule) {
	e.stationRules = append(e.stationRules, rule)
}

// RegisterGlobalRule adds a store-wide rule.
func (e *Engine) RegisterGlobalRule(rule types.GlobalRule) {
	e.globalRules = append(e.globalRules, rule)
}

// StationRules returns the registered per-station rules.
func (e *Engine) StationRules() []types.StationRule {
	out := make([]types.StationRule, len(e.stationRules))
	copy(out, e.stationRules)
	return out
}

// GlobalRules returns the registered store-wide rules.
func (e *Engine) GlobalRules() []types.GlobalRule {
	out := make([]types.GlobalRule, len(e.globalRules))
	copy(out, e.globalRules)
	return out
}

// Thresholds returns the limits rules are evaluated with.
func (e *Engine) Thresholds() types.Thresholds {
	return e.eval.Thresholds
}

// EvaluateStation runs every per-station rule for stationID at the given instant.
func (e *Engine) EvaluateStation(stationID string, at time.Time) []types.Finding {
	var result []types.Finding
	for _, rule := range e.stationRules {
		rule := rule
		findings := e.run(rule.Name(), stationID, func() ([]types.Finding, error) {
			return rule.Evaluate(e.eval, stationID, at)
		})
		result = append(result, findings...)
	}
	return result
}

// EvaluateGlobal runs every store-wide rule at the given instant.
func (e *Engine) EvaluateGlobal(at time.Time) []types.Finding {
	var result []types.Finding
	for _, rule := range e.globalRules {
		rule := rule
		findings := e.run(rule.Name(), "", func() ([]types.Finding, error) {
			return rule.Evaluate(e.eval, at)
		})
		result = append(result, findings...)
	}
	return result
}

// run evaluates one rule, isolating its errors and panics from the others.
func (e *Engine) run(name, stationID string, eval func() ([]types.Finding, error)) []types.Finding {
	start := time.Now()
	findings, err := safeEvaluate(eval)
	ruleEvaluationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		ruleEvaluationsTotal.WithLabelValues(name, resultError).Inc()
		e.logger.Warn("Rule evaluation failed",
			zap.String("rule", name),
			zap.String("station", stationID),
			zap.Error(err),
		)
		return nil
	}

	ruleEvaluationsTotal.WithLabelValues(name, resultOK).Inc()
	for _, f := range findings {
		findingsTotal.WithLabelValues(string(f.EventName), string(f.Severity)).Inc()
	}
	return findings
}

func safeEvaluate(eval func() ([]types.Finding, error)) (findings []types.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("%w: %v", ErrRulePanic, r)
		}
	}()
	return eval()
}
