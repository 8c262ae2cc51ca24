package usecase

import (
	"context"
	"errors"
	"testing"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/dto/request"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

func TestRegisterLoginLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repos := newFakeRepos()
	svc := NewAuthService(repos.repository(), &utils.Config{}, zap.NewNop())

	reg, err := svc.Register(ctx, &request.RegisterRequest{
		Username: "sari",
		Email:    "Sari@Example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Role != entity.RoleRider || reg.Email != "sari@example.com" || reg.Token == "" {
		t.Errorf("register response = %+v", reg)
	}

	if _, err := svc.Register(ctx, &request.RegisterRequest{
		Username: "other",
		Email:    "sari@example.com",
		Password: "secret123",
	}); !errors.Is(err, entity.ErrAlreadyExists) {
		t.Errorf("duplicate email: got %v, want ErrAlreadyExists", err)
	}

	for _, identifier := range []string{"sari", "sari@example.com"} {
		resp, err := svc.Login(ctx, &request.LoginRequest{Username: identifier, Password: "secret123"})
		if err != nil {
			t.Fatalf("Login(%s): %v", identifier, err)
		}
		if resp.UserID != reg.UserID {
			t.Errorf("Login(%s) user = %s, want %s", identifier, resp.UserID, reg.UserID)
		}
	}

	if _, err := svc.Login(ctx, &request.LoginRequest{Username: "sari", Password: "wrongpass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}

	if err := svc.Logout(ctx, reg.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s, _ := repos.sessions.FindValidSession(ctx, reg.Token); s != nil {
		t.Error("session still valid after logout")
	}
	if err := svc.Logout(ctx, "not-a-token"); !errors.Is(err, entity.ErrInvalidInput) {
		t.Errorf("malformed token: got %v, want ErrInvalidInput", err)
	}
}
