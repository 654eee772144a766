package alerts

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/vitalwatch/vitalwatch/monitor/internal/config"
	"github.com/vitalwatch/vitalwatch/monitor/internal/metrics"
	"github.com/vitalwatch/vitalwatch/monitor/internal/poller"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// Rule names.
const (
	RuleRiskTier          = "risk_tier"
	RuleSourceUnavailable = "source_unavailable"
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

const (
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert is a single alert event produced by the engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Tier       types.Tier `json:"tier,omitempty"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates completed poll cycles and delivers webhook notifications
// when an alert fires or resolves.
//
// Engine is safe for concurrent use.
type Engine struct {
	cooldown         time.Duration
	unavailableAfter int
	client           *resty.Client
	now              func() time.Time

	mu       sync.Mutex
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts
	wg       sync.WaitGroup
}

// New creates an Engine from the alerts configuration.
func New(cfg config.AlertsConfig) *Engine {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = config.DefaultAlertCooldown
	}
	after := cfg.UnavailableAfter
	if after <= 0 {
		after = config.DefaultUnavailableAfter
	}
	return &Engine{
		cooldown:         cooldown,
		unavailableAfter: after,
		webhooks:         cfg.Webhooks,
		client:           resty.New().SetTimeout(10 * time.Second),
		now:              time.Now,
		active:           make(map[string]*Alert),
		lastFire:         make(map[string]time.Time),
	}
}

// SetWebhooks replaces the delivery targets. Used on config reload.
func (e *Engine) SetWebhooks(webhooks []config.WebhookConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.webhooks = append([]config.WebhookConfig(nil), webhooks...)
}

// Evaluate folds one completed cycle into the alert state. It has the
// signature of a poller subscriber; delivery happens on separate goroutines.
func (e *Engine) Evaluate(c poller.Cycle) {
	now := e.now()
	e.evalRiskTier(c, now)
	e.evalUnavailable(c, now)
}

func (e *Engine) evalRiskTier(c poller.Cycle, now time.Time) {
	// Only a fresh classification moves this rule; failed cycles leave it as is.
	if c.Status != types.StatusConnected || c.Result == nil {
		return
	}
	res := c.Result

	if res.Tier == types.TierNormal {
		e.resolve(RuleRiskTier, now)
		return
	}

	e.mu.Lock()
	prev, firing := e.active[RuleRiskTier]
	escalated := firing && res.Tier.Rank() > prev.Tier.Rank()
	e.mu.Unlock()

	msg := fmt.Sprintf("%s: %s", res.Tier.Label(), res.Advisory)
	if len(res.Triggers) > 0 {
		msg += " (" + strings.Join(res.Triggers, ", ") + ")"
	}
	e.fire(RuleRiskTier, severityFor(res.Tier), msg, res.Tier, now, escalated)
}

func (e *Engine) evalUnavailable(c poller.Cycle, now time.Time) {
	if c.Status == types.StatusConnected {
		e.resolve(RuleSourceUnavailable, now)
		return
	}
	if c.ConsecutiveFailures < e.unavailableAfter {
		return
	}
	msg := fmt.Sprintf("No valid reading for %d consecutive cycles: %s",
		c.ConsecutiveFailures, c.Status.Message())
	if c.Err != nil {
		msg += " (" + c.Err.Error() + ")"
	}
	e.fire(RuleSourceUnavailable, "critical", msg, "", now, false)
}

// fire records a firing alert for rule unless it is within cooldown.
// force bypasses the cooldown, used when the risk tier escalates.
func (e *Engine) fire(rule, severity, msg string, tier types.Tier, now time.Time, force bool) {
	e.mu.Lock()
	if !force && now.Sub(e.lastFire[rule]) <= e.cooldown {
		e.mu.Unlock()
		return
	}
	a := &Alert{
		ID:       uuid.NewString(),
		RuleName: rule,
		Severity: severity,
		Message:  msg,
		Tier:     tier,
		FiredAt:  now,
		State:    StateFiring,
	}
	e.active[rule] = a
	e.lastFire[rule] = now
	alertCopy := *a
	webhooks := e.webhooks
	e.mu.Unlock()

	slog.Warn("alert fired",
		"rule", rule,
		"severity", severity,
		"message", msg,
	)
	metrics.ObserveAlert(rule, StateFiring)
	e.dispatch(webhooks, &alertCopy)
}

func (e *Engine) resolve(rule string, now time.Time) {
	e.mu.Lock()
	a, ok := e.active[rule]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, rule)
	// A resolved condition may fire again immediately if it recurs.
	delete(e.lastFire, rule)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	webhooks := e.webhooks
	e.mu.Unlock()

	slog.Info("alert resolved", "rule", rule)
	metrics.ObserveAlert(rule, StateResolved)
	e.dispatch(webhooks, &alertCopy)
}

func (e *Engine) dispatch(webhooks []config.WebhookConfig, a *Alert) {
	if len(webhooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(webhooks, a)
	}()
}

// Wait blocks until all pending webhook deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func severityFor(t types.Tier) string {
	if t == types.TierCritical {
		return "critical"
	}
	return "warning"
}
