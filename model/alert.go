package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies what change on a vulnerability triggered an alert.
type AlertType string

const (
	AlertTypeNewVulnerability AlertType = "new_vulnerability"
	AlertTypeSeverityUpgrade  AlertType = "severity_upgrade"
	AlertTypeExploitAvailable AlertType = "exploit_available"
	AlertTypePatchAvailable   AlertType = "patch_available"
	AlertTypeMassExploitation AlertType = "mass_exploitation"
	AlertTypeZeroDay          AlertType = "zero_day"
)

// AlertPriority is the dispatch priority of an alert.
type AlertPriority string

const (
	AlertPriorityCritical AlertPriority = "critical"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityLow      AlertPriority = "low"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusSent         AlertStatus = "sent"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusSuppressed   AlertStatus = "suppressed"
)

// Alert is a notification derived from a vulnerability create/update event.
type Alert struct {
	Key             string `json:"_key,omitempty"`
	AlertID         string `json:"alert_id"`
	VulnerabilityID string `json:"vulnerability_id"`

	AlertType AlertType     `json:"alert_type"`
	Priority  AlertPriority `json:"priority"`
	Status    AlertStatus   `json:"status"`

	Title   string `json:"title"`
	Message string `json:"message,omitempty"`

	SentAt         *time.Time `json:"sent_at,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ObjType string `json:"objtype"`
}

// NewAlert creates a pending alert for a vulnerability.
func NewAlert(vulnID string, alertType AlertType, priority AlertPriority, title string, now time.Time) *Alert {
	return &Alert{
		AlertID:         "alert-" + uuid.New().String(),
		VulnerabilityID: vulnID,
		AlertType:       alertType,
		Priority:        priority,
		Status:          AlertStatusPending,
		Title:           title,
		CreatedAt:       now,
		UpdatedAt:       now,
		ObjType:         "Alert",
	}
}

// MarkSent transitions a pending alert to sent once fan-out completes.
func (a *Alert) MarkSent(now time.Time) {
	a.Status = AlertStatusSent
	a.SentAt = &now
	a.UpdatedAt = now
}

// Suppress forces an alert into the suppressed state. Valid from pending or
// sent; other states are left untouched.
func (a *Alert) Suppress(now time.Time) {
	if a.Status == AlertStatusPending || a.Status == AlertStatusSent {
		a.Status = AlertStatusSuppressed
		a.UpdatedAt = now
	}
}
