// Package notifier composes and dispatches verification and reminder emails,
// and mints the unsubscribe tokens the reminders carry.
package notifier

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/core/internal/models"
	"github.com/taskflow/core/internal/pkg/mail"
	"github.com/taskflow/core/internal/store"
)

// tokenTTL is the unsubscribe token lifetime.
const tokenTTL = 30 * 24 * time.Hour

// Notifier builds emails against a base URL and hands them to the injected
// transport. Token state is written to the store; email delivery is best
// effort and never rolls that state back.
type Notifier struct {
	store   *store.Store
	sender  mail.Sender
	logger  *zap.Logger
	baseURL string
	now     func() time.Time
}

func New(st *store.Store, sender mail.Sender, logger *zap.Logger, baseURL string) *Notifier {
	return &Notifier{
		store:   st,
		sender:  sender,
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// buildLink attaches query parameters to a path under the base URL. Values
// go through url.Values encoding so they survive the percent-decoding the
// handlers apply on the way back in.
func (n *Notifier) buildLink(path string, params url.Values) (string, error) {
	u, err := url.Parse(n.baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("notifier: invalid base url %q", n.baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// SendVerification emails a verification link carrying the address and code.
// It always reports success to the caller: the user can simply re-request,
// so delivery failures are only logged.
func (n *Notifier) SendVerification(email, code string) {
	link, err := n.buildLink("/api/subscribe/verify", url.Values{
		"email": {email},
		"code":  {code},
	})
	if err != nil {
		n.logger.Error("verification link build failed", zap.Error(err))
		return
	}
	html, err := mail.RenderVerify(mail.VerifyData{VerifyURL: link})
	if err != nil {
		n.logger.Error("verification email render failed", zap.Error(err))
		return
	}
	err = n.sender.Send(mail.Message{
		To:      []string{email},
		Subject: mail.SubjectVerify,
		HTML:    html,
	})
	if err != nil {
		n.logger.Warn("verification email delivery failed",
			zap.String("email", email), zap.Error(err))
		return
	}
	n.logger.Info("verification email sent", zap.String("email", email))
}

// newToken draws an opaque 32-hex-char unsubscribe token.
func newToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// SendReminder issues a fresh unsubscribe token for the address, persists it
// after sweeping tokens already past expiry, and emails the pending task
// list. Earlier unexpired tokens for the same address stay valid; the token
// write is not rolled back when delivery fails, since a dangling token is
// merely an extra usable unsubscribe link.
func (n *Notifier) SendReminder(email string, pendingTasks []models.Task) error {
	tokens := map[string]models.UnsubscribeToken{}
	n.store.Read(store.UnsubscribeTokens, &tokens)

	now := n.now()
	for tok, entry := range tokens {
		if now.Unix() > entry.Expires {
			delete(tokens, tok)
		}
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	tokens[token] = models.UnsubscribeToken{
		Email:   email,
		Created: now.Unix(),
		Expires: now.Add(tokenTTL).Unix(),
	}
	n.store.Write(store.UnsubscribeTokens, tokens)

	link, err := n.buildLink("/api/subscribe/unsubscribe", url.Values{"token": {token}})
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pendingTasks))
	for _, t := range pendingTasks {
		names = append(names, t.Name)
	}
	html, err := mail.RenderReminder(mail.ReminderData{
		TaskNames:      names,
		UnsubscribeURL: link,
	})
	if err != nil {
		return err
	}
	return n.sender.Send(mail.Message{
		To:      []string{email},
		Subject: mail.SubjectReminder,
		HTML:    html,
	})
}

// BroadcastReminders sends one reminder per verified subscriber. Nothing is
// sent when there are no pending tasks or no subscribers; one subscriber's
// delivery failure never blocks the rest.
func (n *Notifier) BroadcastReminders(subscribers []string, pendingTasks []models.Task) (sent, failed int) {
	if len(pendingTasks) == 0 {
		n.logger.Info("no pending tasks, skipping reminders")
		return 0, 0
	}
	if len(subscribers) == 0 {
		n.logger.Info("no verified subscribers, skipping reminders")
		return 0, 0
	}

	for _, email := range subscribers {
		if err := n.SendReminder(email, pendingTasks); err != nil {
			failed++
			n.logger.Warn("reminder delivery failed", zap.String("email", email), zap.Error(err))
			continue
		}
		sent++
	}
	n.logger.Info("reminders dispatched",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("pending_tasks", len(pendingTasks)),
	)
	return sent, failed
}

// SweepExpiredTokens removes unsubscribe tokens past expiry, persisting only
// when something was removed. Runs from the scheduled cleanup phase.
func (n *Notifier) SweepExpiredTokens() int {
	tokens := map[string]models.UnsubscribeToken{}
	n.store.Read(store.UnsubscribeTokens, &tokens)

	now := n.now().Unix()
	removed := 0
	for tok, entry := range tokens {
		if now > entry.Expires {
			delete(tokens, tok)
			removed++
		}
	}
	if removed > 0 {
		n.store.Write(store.UnsubscribeTokens, tokens)
		n.logger.Info("swept expired unsubscribe tokens", zap.Int("removed", removed))
	}
	return removed
}
