package subscription

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/taskflow/core/internal/models"
	"github.com/taskflow/core/internal/store"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrAlreadySubscribed = errors.New("email is already subscribed")
	ErrEmptyInput        = errors.New("email or code is empty")
	ErrNotPending        = errors.New("no pending subscription for this email")
	ErrCodeMismatch      = errors.New("verification code does not match")
	ErrCodeExpired       = errors.New("verification code has expired")
	ErrNotSubscribed     = errors.New("email not found in subscriber list")
	ErrInvalidToken      = errors.New("invalid unsubscribe token")
	ErrTokenExpired      = errors.New("unsubscribe token has expired")
	ErrStorage           = errors.New("failed to persist subscription state")
)

// verificationTTL is how long a pending subscription stays redeemable.
const verificationTTL = 24 * time.Hour

var validate = validator.New()

// VerificationMailer dispatches the double-opt-in email. Delivery problems
// are the mailer's to log; subscription flow never sees them.
type VerificationMailer interface {
	SendVerification(email, code string)
}

// Service is the subscription lifecycle state machine: an address moves from
// unknown to pending on subscribe, pending to verified on a matching
// unexpired code, and back to unknown on unsubscribe or code expiry.
type Service struct {
	store  *store.Store
	mailer VerificationMailer
	logger *zap.Logger
	now    func() time.Time
}

func NewService(st *store.Store, mailer VerificationMailer, logger *zap.Logger) *Service {
	return &Service{store: st, mailer: mailer, logger: logger, now: time.Now}
}

// Normalize lower-cases and trims an address. All documents store addresses
// in this form.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCode draws a uniform 6-digit zero-padded numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Subscribe validates the address, records a pending subscription with a
// fresh code, and sends the verification email. A prior pending entry for
// the same address is overwritten, never duplicated. Expired entries across
// the whole pending document are swept as a side effect.
func (s *Service) Subscribe(email string) error {
	if err := validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		s.logger.Warn("subscribe rejected: invalid email", zap.String("email", email))
		return ErrInvalidEmail
	}
	addr := Normalize(email)

	for _, sub := range s.ListVerified() {
		if Normalize(sub) == addr {
			return ErrAlreadySubscribed
		}
	}

	pending := map[string]models.PendingSubscription{}
	s.store.Read(store.PendingSubscriptions, &pending)
	s.sweepExpired(pending)

	code, err := generateCode()
	if err != nil {
		return err
	}
	now := s.now()
	pending[addr] = models.PendingSubscription{
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(verificationTTL),
	}
	if !s.store.Write(store.PendingSubscriptions, pending) {
		return ErrStorage
	}
	s.logger.Info("pending subscription recorded", zap.String("email", addr))

	s.mailer.SendVerification(addr, code)
	return nil
}

// Verify redeems a pending subscription. On success the pending entry is
// consumed and the address joins the verified set; verifying an already
// verified address again via a second valid code is a no-op success, but a
// consumed entry makes a repeat call fail with ErrNotPending. An expired
// entry is removed before reporting ErrCodeExpired.
func (s *Service) Verify(email, code string) error {
	addr := Normalize(email)
	code = strings.TrimSpace(code)
	if addr == "" || code == "" {
		return ErrEmptyInput
	}

	pending := map[string]models.PendingSubscription{}
	s.store.Read(store.PendingSubscriptions, &pending)

	entry, ok := pending[addr]
	if !ok {
		s.logger.Warn("verify failed: not pending", zap.String("email", addr))
		return ErrNotPending
	}
	if entry.Code != code {
		s.logger.Warn("verify failed: code mismatch", zap.String("email", addr))
		return ErrCodeMismatch
	}
	if s.now().After(entry.ExpiresAt) {
		delete(pending, addr)
		s.store.Write(store.PendingSubscriptions, pending)
		s.logger.Warn("verify failed: code expired", zap.String("email", addr))
		return ErrCodeExpired
	}

	delete(pending, addr)
	if !s.store.Write(store.PendingSubscriptions, pending) {
		return ErrStorage
	}

	subscribers := s.ListVerified()
	for _, sub := range subscribers {
		if sub == addr {
			// already verified; nothing to add
			return nil
		}
	}
	subscribers = append(subscribers, addr)
	if !s.store.Write(store.Subscribers, subscribers) {
		return ErrStorage
	}
	s.logger.Info("subscription verified", zap.String("email", addr))
	return nil
}

// UnsubscribeByAddress removes the first case-insensitive match from the
// verified set.
func (s *Service) UnsubscribeByAddress(email string) error {
	addr := Normalize(email)
	if addr == "" {
		return ErrEmptyInput
	}

	subscribers := s.ListVerified()
	for i, sub := range subscribers {
		if Normalize(sub) == addr {
			subscribers = append(subscribers[:i], subscribers[i+1:]...)
			if !s.store.Write(store.Subscribers, subscribers) {
				return ErrStorage
			}
			s.logger.Info("unsubscribed", zap.String("email", addr))
			return nil
		}
	}
	s.logger.Warn("unsubscribe failed: not subscribed", zap.String("email", addr))
	return ErrNotSubscribed
}

// UnsubscribeByToken resolves a single-use unsubscribe token. A valid token
// is consumed regardless of whether the address removal itself succeeded; an
// expired token is left for the periodic sweep. The address-removal result
// is what the caller sees.
func (s *Service) UnsubscribeByToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	tokens := map[string]models.UnsubscribeToken{}
	s.store.Read(store.UnsubscribeTokens, &tokens)

	entry, ok := tokens[token]
	if !ok {
		s.logger.Warn("unsubscribe failed: unknown token")
		return ErrInvalidToken
	}
	if s.now().Unix() > entry.Expires {
		s.logger.Warn("unsubscribe failed: expired token", zap.String("email", entry.Email))
		return ErrTokenExpired
	}

	err := s.UnsubscribeByAddress(entry.Email)

	delete(tokens, token)
	s.store.Write(store.UnsubscribeTokens, tokens)
	return err
}

// ListVerified returns the verified subscriber set.
func (s *Service) ListVerified() []string {
	subscribers := []string{}
	s.store.Read(store.Subscribers, &subscribers)
	return subscribers
}

// ListPending returns the pending subscriptions after sweeping expired
// entries. The cleaned view is persisted when anything was removed.
func (s *Service) ListPending() map[string]models.PendingSubscription {
	pending := map[string]models.PendingSubscription{}
	s.store.Read(store.PendingSubscriptions, &pending)
	if s.sweepExpired(pending) > 0 {
		s.store.Write(store.PendingSubscriptions, pending)
	}
	return pending
}

// sweepExpired removes entries whose expiry is strictly in the past. An
// entry expiring exactly now is still redeemable.
func (s *Service) sweepExpired(pending map[string]models.PendingSubscription) int {
	now := s.now()
	removed := 0
	for addr, entry := range pending {
		if now.After(entry.ExpiresAt) {
			delete(pending, addr)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("swept expired pending subscriptions", zap.Int("removed", removed))
	}
	return removed
}
