// Package notify posts committed rate changes to a Discord channel webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/changeset"
	"ratesapi/backend/services/rates-service/internal/clients"
)

// RateChange is the payload handed to the chat collaborator for one field.
type RateChange struct {
	User        string `json:"user"`
	SPL         any    `json:"spl"`
	UtilityName any    `json:"utility_name"`
	RateID      any    `json:"rate_id"`
	Field       string `json:"field"`
	From        any    `json:"from"`
	To          any    `json:"to"`
}

// FromEntry converts an audit entry into a notification payload.
func FromEntry(entry changeset.Entry) RateChange {
	return RateChange{
		User:        entry.User,
		SPL:         entry.SPL,
		UtilityName: entry.UtilityName,
		RateID:      entry.RateID,
		Field:       entry.Field,
		From:        entry.From,
		To:          entry.To,
	}
}

type webhookMessage struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

type webhookEmbed struct {
	Title  string         `json:"title"`
	Color  int            `json:"color"`
	Fields []webhookField `json:"fields"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const (
	embedColor          = 0x2b8a3e
	defaultEntryTimeout = 10 * time.Second
)

// DiscordNotifier sends one webhook message per changed field.
type DiscordNotifier struct {
	client       *clients.BaseClient
	entryTimeout time.Duration
	logger       *zap.Logger
}

// NewDiscordNotifier returns notifier. An empty webhook URL disables it.
func NewDiscordNotifier(webhookURL string, httpClient clients.HTTPDoer, logger *zap.Logger) *DiscordNotifier {
	n := &DiscordNotifier{entryTimeout: defaultEntryTimeout, logger: logger}
	if webhookURL != "" {
		n.client = clients.NewBaseClient(webhookURL, httpClient)
	}
	return n
}

// Enabled reports whether a webhook is configured.
func (n *DiscordNotifier) Enabled() bool {
	return n.client != nil
}

// WithEntryTimeout bounds every webhook post separately.
func (n *DiscordNotifier) WithEntryTimeout(d time.Duration) *DiscordNotifier {
	if d > 0 {
		n.entryTimeout = d
	}
	return n
}

// EntryTimeout is the deadline applied to each post.
func (n *DiscordNotifier) EntryTimeout() time.Duration {
	return n.entryTimeout
}

// NotifyRateChange posts a single change.
func (n *DiscordNotifier) NotifyRateChange(ctx context.Context, change RateChange) error {
	if n.client == nil {
		n.logger.Debug("discord webhook disabled, skip notification")
		return nil
	}
	return n.client.PostJSON(ctx, "", render(change))
}

// Name implements the post-commit hook contract.
func (n *DiscordNotifier) Name() string {
	return "discord"
}

// AfterCommit notifies every entry. One failed post does not stop the rest.
func (n *DiscordNotifier) AfterCommit(ctx context.Context, entries []changeset.Entry) error {
	var errs []error
	for _, entry := range entries {
		if err := n.notifyEntry(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("notify %s on %v: %w", entry.Field, entry.RateID, err))
		}
	}
	return errors.Join(errs...)
}

func (n *DiscordNotifier) notifyEntry(ctx context.Context, entry changeset.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, n.entryTimeout)
	defer cancel()
	return n.NotifyRateChange(ctx, FromEntry(entry))
}

func render(change RateChange) webhookMessage {
	return webhookMessage{
		Content: fmt.Sprintf("**%s** updated `%s` on rate %s", change.User, change.Field, display(change.RateID)),
		Embeds: []webhookEmbed{{
			Title: fmt.Sprintf("%s · %s", display(change.UtilityName), display(change.RateID)),
			Color: embedColor,
			Fields: []webhookField{
				{Name: "SPL", Value: display(change.SPL), Inline: true},
				{Name: "Field", Value: change.Field, Inline: true},
				{Name: "From", Value: display(change.From), Inline: true},
				{Name: "To", Value: display(change.To), Inline: true},
				{Name: "User", Value: change.User},
			},
		}},
	}
}

func display(v any) string {
	if v == nil {
		return "—"
	}
	s := fmt.Sprint(v)
	if s == "" {
		return "(empty)"
	}
	return s
}
