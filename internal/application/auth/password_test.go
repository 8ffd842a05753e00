package auth

import (
	"context"
	"strings"
	"testing"
)

func TestPasswordChange(t *testing.T) {
	t.Parallel()
	env := newSvcForTest(t)
	env.learner("A1")
	tok, _ := env.sessions.CreateRefreshToken(context.Background(), "u1", 0)

	err := env.svc.PasswordChange(context.Background(), "u1", "wrong", "NewSecret1")
	requireDomainCode(t, err, "invalid_credentials")

	err = env.svc.PasswordChange(context.Background(), "u1", "Secret123", "short")
	requireDomainCode(t, err, "weak_password")

	if err := env.svc.PasswordChange(context.Background(), "u1", "Secret123", "NewSecret1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if env.accounts.byID["u1"].PasswordHash != "hash:NewSecret1" {
		t.Fatalf("hash not updated")
	}
	if _, ok := env.sessions.byToken[tok]; ok {
		t.Fatalf("sessions must be revoked")
	}
}

func TestPasswordForgot_UnknownEmail_Silent(t *testing.T) {
	t.Parallel()
	env := newSvcForTest(t)

	if err := env.svc.PasswordForgot(context.Background(), "ghost@x.com"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(env.pub.resetEvts) != 0 {
		t.Fatalf("no mail for unknown accounts")
	}
}

func TestPasswordForgotAndReset(t *testing.T) {
	t.Parallel()
	env := newSvcForTest(t)
	env.learner("A1")

	if err := env.svc.PasswordForgot(context.Background(), "Learner@x.com"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(env.pub.resetEvts) != 1 {
		t.Fatalf("expected one reset event")
	}
	url := env.pub.resetEvts[0].URL
	token := strings.TrimPrefix(url, "https://lms/reset?token=")
	if token == url || token == "" {
		t.Fatalf("unexpected url %q", url)
	}

	if err := env.svc.PasswordReset(context.Background(), token, "Brand-New-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if env.accounts.byID["u1"].PasswordHash != "hash:Brand-New-1" {
		t.Fatalf("hash not updated")
	}

	err := env.svc.PasswordReset(context.Background(), token, "Brand-New-2")
	requireDomainCode(t, err, "reset_token_not_found")
}

func TestRefreshAndLogout(t *testing.T) {
	t.Parallel()
	env := newSvcForTest(t)
	env.learner("A1")

	res, err := env.svc.Login(context.Background(), "learner@x.com", "Secret123", "A1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	toks, err := env.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if toks.RefreshToken == res.Tokens.RefreshToken {
		t.Fatalf("refresh token must rotate")
	}

	_, err = env.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	requireDomainCode(t, err, "refresh_token_invalid")

	if err := env.svc.Logout(context.Background(), toks.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = env.svc.Refresh(context.Background(), toks.RefreshToken)
	requireDomainCode(t, err, "refresh_token_invalid")
}
