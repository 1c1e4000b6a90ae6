package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/gateway"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func badgeIntent() domain.Intent {
	return domain.Intent{
		Title: badgeTitle,
		Body:  "\"Kaşif\" rozetini kazandınız",
		Type:  domain.TypeBadgeEarned,
		Data:  map[string]string{"badgeId": "b1"},
	}
}

func outcomesByRecipient(outcomes []domain.Outcome) map[string]domain.Outcome {
	out := make(map[string]domain.Outcome, len(outcomes))
	for _, o := range outcomes {
		out[o.Recipient] = o
	}
	return out
}

func TestDispatcherMixedOutcomes(t *testing.T) {
	t.Parallel()

	disabled := activeUser("disabled")
	disabled.Enabled = false
	optedOut := activeUser("opted-out")
	optedOut.Overrides = map[domain.NotificationType]bool{domain.TypeBadgeEarned: false}
	noToken := activeUser("no-token")
	noToken.DeliveryToken = nil

	f := newFixture(activeUser("ok"), activeUser("dead"), activeUser("flaky"), disabled, optedOut, noToken)
	f.gateway.sendFn = func(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
		switch token {
		case "tok-dead":
			return "", &gateway.Error{StatusCode: 404, Code: gateway.CodeTokenNotRegistered}
		case "tok-flaky":
			return "", &gateway.Error{StatusCode: 503, Code: gateway.CodeUnavailable}
		}
		return "msg-" + token, nil
	}

	outcomes := f.dispatch.Dispatch(context.Background(), []string{
		"ok", "dead", "flaky", "disabled", "opted-out", "no-token", "ghost",
	}, badgeIntent())

	if len(outcomes) != 7 {
		t.Fatalf("outcomes = %d, want 7", len(outcomes))
	}

	want := map[string]struct {
		status domain.OutcomeStatus
		reason domain.SkipReason
	}{
		"ok":        {status: domain.OutcomeSent},
		"dead":      {status: domain.OutcomeFailed},
		"flaky":     {status: domain.OutcomeFailed},
		"disabled":  {status: domain.OutcomeSkipped, reason: domain.SkipDisabled},
		"opted-out": {status: domain.OutcomeSkipped, reason: domain.SkipTypeDisabled},
		"no-token":  {status: domain.OutcomeSkipped, reason: domain.SkipNoToken},
		"ghost":     {status: domain.OutcomeSkipped, reason: domain.SkipUserNotFound},
	}

	got := outcomesByRecipient(outcomes)
	for recipient, w := range want {
		o, ok := got[recipient]
		if !ok {
			t.Fatalf("missing outcome for %s", recipient)
		}
		if o.Status != w.status || o.SkipReason != w.reason {
			t.Fatalf("%s outcome = %s/%q, want %s/%q", recipient, o.Status, o.SkipReason, w.status, w.reason)
		}
	}

	if got["ok"].DeliveryID != "msg-tok-ok" {
		t.Fatalf("ok delivery id = %q", got["ok"].DeliveryID)
	}
	if !got["dead"].TokenInvalidated {
		t.Fatal("dead token should be invalidated")
	}
	if got["flaky"].TokenInvalidated {
		t.Fatal("transient failure must not invalidate the token")
	}

	if f.users.token("dead") != nil {
		t.Fatal("dead token should be cleared in the store")
	}
	if f.users.token("flaky") == nil || f.users.token("ok") == nil {
		t.Fatal("sibling tokens must be untouched")
	}

	if len(f.records.forUser("ok")) != 1 {
		t.Fatal("successful send should write one record")
	}
	for _, recipient := range []string{"dead", "flaky", "disabled", "opted-out", "no-token", "ghost"} {
		if n := len(f.records.forUser(recipient)); n != 0 {
			t.Fatalf("%s records = %d, want 0", recipient, n)
		}
	}

	if gotSends := f.gateway.calls(); gotSends != 3 {
		t.Fatalf("gateway sends = %d, want 3", gotSends)
	}

	summary := domain.Summarize(outcomes)
	if summary != (domain.Summary{Total: 7, Sent: 1, Skipped: 4, Failed: 2}) {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestDispatcherDeduplicatesRecipients(t *testing.T) {
	t.Parallel()

	f := newFixture(activeUser("a"), activeUser("b"))

	outcomes := f.dispatch.Dispatch(context.Background(), []string{"a", " ", "b", "a", ""}, badgeIntent())
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Recipient != "a" || outcomes[1].Recipient != "b" {
		t.Fatalf("outcome order = [%s %s], want [a b]", outcomes[0].Recipient, outcomes[1].Recipient)
	}
	if f.gateway.calls() != 2 {
		t.Fatalf("gateway sends = %d, want 2", f.gateway.calls())
	}
}

func TestDispatcherEmptyRecipients(t *testing.T) {
	t.Parallel()

	f := newFixture(activeUser("a"))

	outcomes := f.dispatch.Dispatch(context.Background(), nil, badgeIntent())
	if len(outcomes) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(outcomes))
	}
	if f.gateway.calls() != 0 {
		t.Fatal("no sends expected")
	}
}

func TestDispatcherSendsConcurrently(t *testing.T) {
	t.Parallel()

	const recipients = 4
	users := make([]*domain.User, 0, recipients)
	ids := make([]string, 0, recipients)
	for i := 0; i < recipients; i++ {
		id := fmt.Sprintf("u%d", i)
		users = append(users, activeUser(id))
		ids = append(ids, id)
	}

	f := newFixture(users...)

	var arrived sync.WaitGroup
	arrived.Add(recipients)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	f.gateway.sendFn = func(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
		arrived.Done()
		select {
		case <-allArrived:
			return "msg-" + token, nil
		case <-time.After(2 * time.Second):
			return "", errors.New("sends were not issued concurrently")
		}
	}

	outcomes := f.dispatch.Dispatch(context.Background(), ids, badgeIntent())
	for _, o := range outcomes {
		if o.Status != domain.OutcomeSent {
			t.Fatalf("%s status = %s, err = %v", o.Recipient, o.Status, o.Err)
		}
	}
}

func TestDispatcherConcurrencyLimit(t *testing.T) {
	t.Parallel()

	users := make([]*domain.User, 0, 6)
	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("u%d", i)
		users = append(users, activeUser(id))
		ids = append(ids, id)
	}
	f := newFixture(users...)

	var inFlight, maxInFlight int32
	f.gateway.sendFn = func(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			seen := atomic.LoadInt32(&maxInFlight)
			if current <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "msg-" + token, nil
	}

	recorder, err := NewDeliveryRecorder(f.records, f.users)
	if err != nil {
		t.Fatalf("NewDeliveryRecorder() error = %v", err)
	}
	limited, err := NewDispatcher(f.users, f.gateway, NewPayloadComposer(""), recorder, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	outcomes := limited.Dispatch(context.Background(), ids, badgeIntent())
	if summary := domain.Summarize(outcomes); summary.Sent != 6 {
		t.Fatalf("sent = %d, want 6", summary.Sent)
	}
	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Fatalf("max in-flight sends = %d, want <= 2", got)
	}
}

func TestDispatcherRecordFailureIsFailedOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(activeUser("a"))
	f.records.appendFn = func(ctx context.Context, record *domain.DeliveryRecord) error {
		return errors.New("history unavailable")
	}

	outcomes := f.dispatch.Dispatch(context.Background(), []string{"a"}, badgeIntent())
	if outcomes[0].Status != domain.OutcomeFailed {
		t.Fatalf("status = %s, want failed", outcomes[0].Status)
	}
	if outcomes[0].DeliveryID != "msg-tok-a" {
		t.Fatalf("delivery id = %q, want msg-tok-a", outcomes[0].DeliveryID)
	}
	if f.gateway.calls() != 1 {
		t.Fatalf("gateway sends = %d, want exactly 1", f.gateway.calls())
	}
}

func TestDispatcherProfileLoadErrorIsFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.users.getByIDFn = func(ctx context.Context, id string) (*domain.User, error) {
		return nil, errors.New("connection reset")
	}

	outcomes := f.dispatch.Dispatch(context.Background(), []string{"a"}, badgeIntent())
	if outcomes[0].Status != domain.OutcomeFailed {
		t.Fatalf("status = %s, want failed", outcomes[0].Status)
	}
	if f.gateway.calls() != 0 {
		t.Fatal("no send expected when the profile cannot be loaded")
	}
}

func TestDispatcherRecoversRecipientPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(activeUser("a"), activeUser("b"))
	f.gateway.sendFn = func(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
		if token == "tok-a" {
			panic("gateway client bug")
		}
		return "msg-" + token, nil
	}

	got := outcomesByRecipient(f.dispatch.Dispatch(context.Background(), []string{"a", "b"}, badgeIntent()))
	if got["a"].Status != domain.OutcomeFailed || got["a"].Err == nil {
		t.Fatalf("a outcome = %+v, want failed with error", got["a"])
	}
	if got["b"].Status != domain.OutcomeSent {
		t.Fatalf("b status = %s, want sent", got["b"].Status)
	}
}

func TestDispatcherLogsOutcomes(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(activeUser("ok"), activeUser("dead"))
	f.dispatch.logger = zap.New(core)
	f.gateway.sendFn = func(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
		if token == "tok-dead" {
			return "", &gateway.Error{StatusCode: 400, Code: gateway.CodeInvalidRegistrationToken}
		}
		return "msg-" + token, nil
	}

	f.dispatch.Dispatch(context.Background(), []string{"ok", "dead"}, badgeIntent())

	if n := logs.FilterMessage("notification sent").Len(); n != 1 {
		t.Fatalf("sent logs = %d, want 1", n)
	}
	failed := logs.FilterMessage("notification failed").All()
	if len(failed) != 1 {
		t.Fatalf("failed logs = %d, want 1", len(failed))
	}
	fields := failed[0].ContextMap()
	if fields["reason"] != "invalid_token" {
		t.Fatalf("reason = %v, want invalid_token", fields["reason"])
	}
	if fields["tokenInvalidated"] != true {
		t.Fatalf("tokenInvalidated = %v, want true", fields["tokenInvalidated"])
	}
}

func TestDispatcherRejectsInvalidIntent(t *testing.T) {
	t.Parallel()

	f := newFixture(activeUser("a"), activeUser("b"))

	intent := badgeIntent()
	intent.Body = "  "
	outcomes := f.dispatch.Dispatch(context.Background(), []string{"a", "b"}, intent)

	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != domain.OutcomeFailed || !errors.Is(o.Err, domain.ErrValidation) {
			t.Fatalf("outcome = %+v, want failed with ErrValidation", o)
		}
	}
	if f.gateway.calls() != 0 {
		t.Fatalf("gateway sends = %d, want 0", f.gateway.calls())
	}
	if len(f.records.forUser("a")) != 0 {
		t.Fatal("no records expected for an invalid intent")
	}
}

func TestDispatcherKeepsTokenOnUnclassifiedNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(activeUser("a"))
	f.gateway.sendFn = func(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
		return "", &gateway.Error{StatusCode: 404, Code: gateway.CodeUnknown, Message: "404 page not found"}
	}

	outcomes := f.dispatch.Dispatch(context.Background(), []string{"a"}, badgeIntent())

	if outcomes[0].Status != domain.OutcomeFailed || outcomes[0].TokenInvalidated {
		t.Fatalf("outcome = %+v, want failed without token invalidation", outcomes[0])
	}
	if f.users.token("a") == nil {
		t.Fatal("token must survive a gateway 404 without a token error code")
	}
}

func TestNewDispatcherValidatesDependencies(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	recorder, err := NewDeliveryRecorder(&fakeRecordRepo{}, users)
	if err != nil {
		t.Fatalf("NewDeliveryRecorder() error = %v", err)
	}

	if _, err := NewDispatcher(nil, &fakeGateway{}, nil, recorder, 0, nil); err == nil {
		t.Fatal("expected error for nil users")
	}
	if _, err := NewDispatcher(users, nil, nil, recorder, 0, nil); err == nil {
		t.Fatal("expected error for nil gateway")
	}
	if _, err := NewDispatcher(users, &fakeGateway{}, nil, nil, 0, nil); err == nil {
		t.Fatal("expected error for nil recorder")
	}
}
