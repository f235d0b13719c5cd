package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scmtp/user-service/internal/events"
	"github.com/scmtp/user-service/internal/logging"
	"github.com/scmtp/user-service/internal/token"
)

type capturePublisher struct {
	ch chan events.Envelope
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{ch: make(chan events.Envelope, 16)}
}

func (p *capturePublisher) Publish(_ context.Context, _ string, envelope events.Envelope) error {
	p.ch <- envelope
	return nil
}

func (p *capturePublisher) wait(t *testing.T) events.Envelope {
	t.Helper()
	select {
	case envelope := <-p.ch:
		return envelope
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Envelope{}
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, events.Envelope) error {
	return errors.New("broker unreachable")
}

func newTestService(publisher events.Publisher) (*Service, *token.Codec) {
	codec := token.NewCodec("test-secret", time.Hour)
	svc := NewService(NewMemoryRepository(), NewBcryptHasher(4), codec, publisher, logging.Discard())
	return svc, codec
}

func strPtr(s string) *string { return &s }

func TestRegisterThenLogin(t *testing.T) {
	publisher := newCapturePublisher()
	svc, codec := newTestService(publisher)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{
		Email:    "  Alice@Example.COM ",
		Password: "hunter2",
		Name:     strPtr("Alice"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", reg.User.Email)
	}
	if reg.User.Role != RoleUser {
		t.Fatalf("expected role USER, got %s", reg.User.Role)
	}
	if reg.Token == "" {
		t.Fatal("expected a token")
	}

	envelope := publisher.wait(t)
	if envelope.Type != events.TypeUserRegistered {
		t.Fatalf("expected UserRegistered event, got %s", envelope.Type)
	}

	login, err := svc.Login(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := codec.Verify(login.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Subject != reg.User.ID {
		t.Fatalf("token subject %q does not match account id %q", claims.Subject, reg.User.ID)
	}
	if claims.Email != reg.User.Email || claims.Role != string(RoleUser) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "", Password: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: ""}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "   ", Password: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for whitespace email, got %v", err)
	}
}

func TestRegisterDuplicateEmailIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "foo@bar.com", Password: "first"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "Foo@Bar.com", Password: "second"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "correct"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPass := svc.Login(ctx, "bob@example.com", "incorrect")
	_, unknownUser := svc.Login(ctx, "nobody@example.com", "whatever")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPass)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", unknownUser)
	}
	if wrongPass.Error() != unknownUser.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPass, unknownUser)
	}
}

func decodeUpdate(t *testing.T, body string) ProfileUpdate {
	t.Helper()
	var upd ProfileUpdate
	if err := json.Unmarshal([]byte(body), &upd); err != nil {
		t.Fatalf("decode update %s: %v", body, err)
	}
	return upd
}

func TestUpdateProfileMerge(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{
		Email:    "carol@example.com",
		Password: "pw",
		Name:     strPtr("A"),
		Phone:    strPtr("1"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id := reg.User.ID

	// Empty update keeps everything.
	profile, err := svc.UpdateProfile(ctx, id, decodeUpdate(t, `{}`))
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if profile.Name == nil || *profile.Name != "A" || profile.Phone == nil || *profile.Phone != "1" {
		t.Fatalf("empty update changed profile: %+v", profile)
	}

	// Explicit null clears only the supplied field.
	profile, err = svc.UpdateProfile(ctx, id, decodeUpdate(t, `{"phone":null}`))
	if err != nil {
		t.Fatalf("null phone update: %v", err)
	}
	if profile.Phone != nil {
		t.Fatalf("expected phone cleared, got %q", *profile.Phone)
	}
	if profile.Name == nil || *profile.Name != "A" {
		t.Fatalf("expected name retained, got %+v", profile.Name)
	}

	// Values replace; omitted preferences stay untouched.
	profile, err = svc.UpdateProfile(ctx, id, decodeUpdate(t, `{"name":"B","preferences":{"theme":"dark"}}`))
	if err != nil {
		t.Fatalf("value update: %v", err)
	}
	if profile.Name == nil || *profile.Name != "B" {
		t.Fatalf("expected name B, got %+v", profile.Name)
	}
	if profile.Preferences["theme"] != "dark" {
		t.Fatalf("expected preferences stored, got %+v", profile.Preferences)
	}

	profile, err = svc.UpdateProfile(ctx, id, decodeUpdate(t, `{"phone":"555"}`))
	if err != nil {
		t.Fatalf("phone update: %v", err)
	}
	if profile.Preferences["theme"] != "dark" {
		t.Fatalf("omitted preferences were dropped: %+v", profile.Preferences)
	}
}

func TestUpdateProfileIdempotent(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Email: "dave@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := svc.UpdateProfile(ctx, reg.User.ID, decodeUpdate(t, `{"name":"A"}`))
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	second, err := svc.UpdateProfile(ctx, reg.User.ID, decodeUpdate(t, `{"name":"A"}`))
	if err != nil {
		t.Fatalf("second update: %v", err)
	}

	if *first.Name != *second.Name || first.Phone != nil || second.Phone != nil {
		t.Fatalf("repeated update diverged: %+v vs %+v", first, second)
	}
}

func TestGetProfileAbsenceIsNotAnError(t *testing.T) {
	svc, _ := newTestService(nil)

	profile, err := svc.GetProfile(context.Background(), "no-such-account")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile, got %+v", profile)
	}
}

func TestConcurrentRegisterSameEmail(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, RegisterInput{Email: "race@example.com", Password: "pw"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrEmailTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful registration, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestRegisterSucceedsWhenPublisherFails(t *testing.T) {
	svc, _ := newTestService(failingPublisher{})

	reg, err := svc.Register(context.Background(), RegisterInput{Email: "eve@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register should not fail on publish errors: %v", err)
	}
	if reg.Token == "" {
		t.Fatal("expected a token despite publisher failure")
	}
}
