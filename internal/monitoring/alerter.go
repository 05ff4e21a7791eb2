// Package monitoring watches served systems and reports stale data.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gbfs-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSystemStale    AlertType = "system_stale"
	AlertSystemNotReady AlertType = "system_not_ready"
	AlertSystemEmpty    AlertType = "system_empty"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	System    string         `json:"system"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	staleAfter := a.cfg.StaleAfter()

	for _, h := range snap.Systems {
		switch {
		case !h.Ready:
			// Give the first update a full window before complaining.
			if snap.Uptime < staleAfter {
				continue
			}
			alerts = append(alerts, Alert{
				Type:     AlertSystemNotReady,
				Severity: "high",
				System:   h.Tag,
				Message: fmt.Sprintf("System %s has not completed an update in %s",
					h.Tag, snap.Uptime.Round(time.Second)),
				Details:   map[string]any{"uptime_secs": int(snap.Uptime.Seconds())},
				Timestamp: snap.CollectedAt,
			})

		case h.Age > staleAfter:
			alerts = append(alerts, Alert{
				Type:     AlertSystemStale,
				Severity: "medium",
				System:   h.Tag,
				Message: fmt.Sprintf("System %s stations are %s old (threshold %s)",
					h.Tag, h.Age.Round(time.Second), staleAfter),
				Details: map[string]any{
					"updated_at":     h.UpdatedAt,
					"age_secs":       int(h.Age.Seconds()),
					"threshold_secs": int(staleAfter.Seconds()),
				},
				Timestamp: snap.CollectedAt,
			})

		case h.Stations == 0:
			alerts = append(alerts, Alert{
				Type:      AlertSystemEmpty,
				Severity:  "low",
				System:    h.Tag,
				Message:   fmt.Sprintf("System %s published no installed stations", h.Tag),
				Timestamp: snap.CollectedAt,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("system", alert.System),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
