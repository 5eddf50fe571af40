// Package alert sends webhook notifications for failed or slow probe runs.
package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event kinds sent to the webhook.
const (
	KindPreconditionFailed = "precondition_failed"
	KindSlowScenario       = "slow_scenario"
)

// Event describes one alert-worthy observation.
type Event struct {
	Kind       string
	Target     string
	Label      string
	Detail     string
	ElapsedMs  int64
	OccurredAt time.Time
}

// Alerter posts events to a webhook, rate-limited per event kind.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Kind       string `json:"kind"`
	Target     string `json:"target"`
	Label      string `json:"label,omitempty"`
	Detail     string `json:"detail,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`
	OccurredAt string `json:"occurred_at"`
	Source     string `json:"source"`
}

// Notify sends a webhook for the event unless one of the same kind was sent
// within the cooldown window.
func (a *Alerter) Notify(e Event) {
	a.mu.Lock()
	last, exists := a.lastAlert[e.Kind]
	if exists && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "kind", e.Kind, "label", e.Label)
		return
	}
	a.lastAlert[e.Kind] = time.Now()
	a.mu.Unlock()

	// Send asynchronously so Notify doesn't block the probe run.
	go a.send(e)
}

func (a *Alerter) send(e Event) {
	payload := webhookPayload{
		Kind:       e.Kind,
		Target:     e.Target,
		Label:      e.Label,
		Detail:     e.Detail,
		ElapsedMs:  e.ElapsedMs,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339),
		Source:     "availprobe",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "kind", e.Kind, "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "kind", e.Kind, "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"kind", e.Kind,
			"status", resp.StatusCode,
		)
	}
}
