package notify

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// SlackNotifier posts critical and high priority alerts to a Slack channel.
// A nil notifier is valid and posts nothing, so Slack stays optional.
type SlackNotifier struct {
	client    *slack.Client
	channelID string
}

// NewSlackNotifier returns nil when no token is configured.
func NewSlackNotifier(token, channelID string) *SlackNotifier {
	if token == "" || channelID == "" {
		return nil
	}
	return &SlackNotifier{
		client:    slack.New(token),
		channelID: channelID,
	}
}

// Notify posts one alert. Only critical and high priority alerts are worth a
// channel message; the rest stay on the stream and the API.
func (s *SlackNotifier) Notify(alert *model.Alert, vuln *model.Vulnerability) error {
	if s == nil {
		return nil
	}
	if alert.Priority != model.AlertPriorityCritical && alert.Priority != model.AlertPriorityHigh {
		return nil
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf(":rotating_light: *%s* [%s]\n", alert.Title, strings.ToUpper(string(alert.Priority))))
	msg.WriteString(fmt.Sprintf("*Type*: %s\n", alert.AlertType))
	msg.WriteString(fmt.Sprintf("*Severity*: %s\n", vuln.Severity))
	if vuln.CVEID != "" {
		msg.WriteString(fmt.Sprintf("*CVE*: %s\n", vuln.CVEID))
	}
	if len(vuln.AffectedTools) > 0 {
		msg.WriteString(fmt.Sprintf("*Affected tools*: %s\n", strings.Join(vuln.AffectedTools, ", ")))
	}
	if vuln.FixedVersion != "" {
		msg.WriteString(fmt.Sprintf("*Fixed in*: %s\n", vuln.FixedVersion))
	}
	if len(vuln.References) > 0 {
		msg.WriteString(fmt.Sprintf("*Reference*: %s\n", vuln.References[0]))
	}

	_, _, err := s.client.PostMessage(
		s.channelID,
		slack.MsgOptionText(msg.String(), false),
	)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	return nil
}
