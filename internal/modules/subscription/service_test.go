package subscription

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/core/internal/models"
	"github.com/taskflow/core/internal/store"
)

type stubMailer struct {
	emails []string
	codes  []string
}

func (m *stubMailer) SendVerification(email, code string) {
	m.emails = append(m.emails, email)
	m.codes = append(m.codes, code)
}

func (m *stubMailer) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.codes) == 0 {
		t.Fatal("no verification email was sent")
	}
	return m.codes[len(m.codes)-1]
}

func newTestService(t *testing.T) (*Service, *stubMailer, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	mailer := &stubMailer{}
	return NewService(st, mailer, zap.NewNop()), mailer, st
}

var codePattern = regexp.MustCompile(`^\d{6}$`)

func TestSubscribeNormalizesAndRecordsPending(t *testing.T) {
	svc, mailer, _ := newTestService(t)

	if err := svc.Subscribe("  Alice@Example.COM "); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	pending := svc.ListPending()
	entry, ok := pending["alice@example.com"]
	if !ok {
		t.Fatalf("pending keys = %v, want normalized address", pending)
	}
	if !codePattern.MatchString(entry.Code) {
		t.Errorf("code %q is not 6 digits", entry.Code)
	}
	if got := entry.ExpiresAt.Sub(entry.CreatedAt); got != 24*time.Hour {
		t.Errorf("expiry window = %v, want 24h", got)
	}

	if len(mailer.emails) != 1 || mailer.emails[0] != "alice@example.com" {
		t.Fatalf("verification mail recipients = %v", mailer.emails)
	}
	if mailer.codes[0] != entry.Code {
		t.Error("mailed code differs from stored code")
	}
}

func TestSubscribeInvalidEmail(t *testing.T) {
	svc, mailer, _ := newTestService(t)

	for _, email := range []string{"", "   ", "not-an-email", "a@", "@b.com"} {
		if err := svc.Subscribe(email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Subscribe(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
	if len(mailer.emails) != 0 {
		t.Error("no mail should be sent for rejected addresses")
	}
}

func TestSubscribeAlreadyVerified(t *testing.T) {
	svc, _, st := newTestService(t)
	st.Write(store.Subscribers, []string{"alice@example.com"})

	if err := svc.Subscribe("Alice@example.com"); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("Subscribe = %v, want ErrAlreadySubscribed", err)
	}
}

func TestSubscribeOverwritesPriorPending(t *testing.T) {
	svc, mailer, _ := newTestService(t)

	if err := svc.Subscribe("alice@example.com"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if err := svc.Subscribe("alice@example.com"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	pending := svc.ListPending()
	if len(pending) != 1 {
		t.Fatalf("pending entries = %d, want 1", len(pending))
	}
	if pending["alice@example.com"].Code != mailer.lastCode(t) {
		t.Error("stored code is not the most recently mailed one")
	}
}

func TestVerifyLifecycle(t *testing.T) {
	svc, mailer, _ := newTestService(t)

	if err := svc.Subscribe("alice@example.com"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	code := mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if err := svc.Verify("alice@example.com", wrong); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("Verify with wrong code = %v, want ErrCodeMismatch", err)
	}
	if _, ok := svc.ListPending()["alice@example.com"]; !ok {
		t.Fatal("mismatch must not consume the pending entry")
	}

	if err := svc.Verify(" Alice@Example.com ", code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := svc.ListVerified(); len(got) != 1 || got[0] != "alice@example.com" {
		t.Fatalf("verified = %v", got)
	}
	if len(svc.ListPending()) != 0 {
		t.Fatal("pending entry must be consumed on success")
	}

	// entry is consumed; replaying the same code must fail
	if err := svc.Verify("alice@example.com", code); !errors.Is(err, ErrNotPending) {
		t.Fatalf("replayed Verify = %v, want ErrNotPending", err)
	}
}

func TestVerifyEmptyInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.Verify("", "123456"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Verify with empty email = %v, want ErrEmptyInput", err)
	}
	if err := svc.Verify("alice@example.com", "  "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Verify with empty code = %v, want ErrEmptyInput", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	svc, _, st := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	st.Write(store.PendingSubscriptions, map[string]models.PendingSubscription{
		"exact@example.com": {Code: "111111", CreatedAt: now.Add(-24 * time.Hour), ExpiresAt: now},
		"late@example.com":  {Code: "222222", CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Second)},
	})

	// expiring exactly now is still redeemable
	if err := svc.Verify("exact@example.com", "111111"); err != nil {
		t.Fatalf("Verify at exact expiry = %v, want success", err)
	}

	if err := svc.Verify("late@example.com", "222222"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("Verify past expiry = %v, want ErrCodeExpired", err)
	}
	pending := map[string]models.PendingSubscription{}
	st.Read(store.PendingSubscriptions, &pending)
	if _, ok := pending["late@example.com"]; ok {
		t.Fatal("expired entry must be removed after failed verify")
	}
	if got := svc.ListVerified(); len(got) != 1 || got[0] != "exact@example.com" {
		t.Fatalf("verified = %v, expired address must not join", got)
	}
}

func TestListPendingSweepsAndPersists(t *testing.T) {
	svc, _, st := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	st.Write(store.PendingSubscriptions, map[string]models.PendingSubscription{
		"fresh@example.com": {Code: "111111", ExpiresAt: now.Add(time.Hour)},
		"stale@example.com": {Code: "222222", ExpiresAt: now.Add(-time.Hour)},
	})

	pending := svc.ListPending()
	if len(pending) != 1 {
		t.Fatalf("pending = %v, want only the fresh entry", pending)
	}

	onDisk := map[string]models.PendingSubscription{}
	st.Read(store.PendingSubscriptions, &onDisk)
	if _, ok := onDisk["stale@example.com"]; ok {
		t.Fatal("sweep must be persisted")
	}
}

func TestSubscribeSweepsOtherExpiredEntries(t *testing.T) {
	svc, _, st := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	st.Write(store.PendingSubscriptions, map[string]models.PendingSubscription{
		"stale@example.com": {Code: "222222", ExpiresAt: now.Add(-time.Hour)},
	})

	if err := svc.Subscribe("bob@example.com"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	onDisk := map[string]models.PendingSubscription{}
	st.Read(store.PendingSubscriptions, &onDisk)
	if _, ok := onDisk["stale@example.com"]; ok {
		t.Fatal("expired entry must be swept on subscribe")
	}
	if _, ok := onDisk["bob@example.com"]; !ok {
		t.Fatal("new pending entry missing")
	}
}

func TestUnsubscribeByAddress(t *testing.T) {
	svc, _, st := newTestService(t)
	st.Write(store.Subscribers, []string{"alice@example.com", "bob@example.com"})

	if err := svc.UnsubscribeByAddress(" ALICE@example.com "); err != nil {
		t.Fatalf("UnsubscribeByAddress: %v", err)
	}
	if got := svc.ListVerified(); len(got) != 1 || got[0] != "bob@example.com" {
		t.Fatalf("verified after unsubscribe = %v", got)
	}

	if err := svc.UnsubscribeByAddress("alice@example.com"); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("repeat unsubscribe = %v, want ErrNotSubscribed", err)
	}
	if err := svc.UnsubscribeByAddress("  "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty unsubscribe = %v, want ErrEmptyInput", err)
	}
}

func TestUnsubscribeByTokenSingleUse(t *testing.T) {
	svc, _, st := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	st.Write(store.Subscribers, []string{"alice@example.com"})
	st.Write(store.UnsubscribeTokens, map[string]models.UnsubscribeToken{
		"tok1": {Email: "alice@example.com", Created: now.Unix(), Expires: now.Add(time.Hour).Unix()},
	})

	if err := svc.UnsubscribeByToken("tok1"); err != nil {
		t.Fatalf("UnsubscribeByToken: %v", err)
	}
	if got := svc.ListVerified(); len(got) != 0 {
		t.Fatalf("verified after token unsubscribe = %v", got)
	}

	// token is consumed even though it was valid a moment ago
	if err := svc.UnsubscribeByToken("tok1"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replayed token = %v, want ErrInvalidToken", err)
	}
}

func TestUnsubscribeByTokenConsumedEvenWhenAddressGone(t *testing.T) {
	svc, _, st := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// address already removed by some other path; token still outstanding
	st.Write(store.UnsubscribeTokens, map[string]models.UnsubscribeToken{
		"tok1": {Email: "alice@example.com", Created: now.Unix(), Expires: now.Add(time.Hour).Unix()},
	})

	if err := svc.UnsubscribeByToken("tok1"); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("UnsubscribeByToken = %v, want ErrNotSubscribed", err)
	}

	tokens := map[string]models.UnsubscribeToken{}
	st.Read(store.UnsubscribeTokens, &tokens)
	if len(tokens) != 0 {
		t.Fatal("valid token must be consumed regardless of removal outcome")
	}
}

func TestUnsubscribeByTokenExpired(t *testing.T) {
	svc, _, st := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	st.Write(store.Subscribers, []string{"alice@example.com"})
	st.Write(store.UnsubscribeTokens, map[string]models.UnsubscribeToken{
		"old": {Email: "alice@example.com", Created: now.Add(-31 * 24 * time.Hour).Unix(), Expires: now.Add(-time.Second).Unix()},
	})

	if err := svc.UnsubscribeByToken("old"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("UnsubscribeByToken = %v, want ErrTokenExpired", err)
	}
	if got := svc.ListVerified(); len(got) != 1 {
		t.Fatalf("expired token must not unsubscribe: %v", got)
	}

	// expired entries stay for the periodic sweep
	tokens := map[string]models.UnsubscribeToken{}
	st.Read(store.UnsubscribeTokens, &tokens)
	if _, ok := tokens["old"]; !ok {
		t.Fatal("expired token should be left in place")
	}
}

func TestUnsubscribeByTokenUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.UnsubscribeByToken("missing"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown token = %v, want ErrInvalidToken", err)
	}
	if err := svc.UnsubscribeByToken("  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank token = %v, want ErrInvalidToken", err)
	}
}
