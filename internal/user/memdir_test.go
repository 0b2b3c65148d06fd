package user

import (
	"context"
	"errors"
	"testing"
)

func TestLoginOrRegisterUpsertsByName(t *testing.T) {
	d := NewMemoryDirectory()
	ctx := context.Background()

	u1, err := d.LoginOrRegister(ctx, "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	u2, err := d.LoginOrRegister(ctx, "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u1.ID != u2.ID {
		t.Fatalf("same name produced two identities: %s vs %s", u1.ID, u2.ID)
	}

	name, err := d.Resolve(ctx, u1.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if name != "alice" {
		t.Fatalf("name = %q", name)
	}
}

func TestResolveUnknown(t *testing.T) {
	d := NewMemoryDirectory()
	if _, err := d.Resolve(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoginRejectsEmptyName(t *testing.T) {
	d := NewMemoryDirectory()
	if _, err := d.LoginOrRegister(context.Background(), "   "); err == nil {
		t.Fatalf("blank name accepted")
	}
}
