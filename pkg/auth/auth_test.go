package auth

import "testing"

func TestAuthenticateRoundTrip(t *testing.T) {
	m := NewManager()
	if err := m.CreateUser("sona", "hunter2", RoleReadWrite); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	role, err := m.Authenticate("sona", "hunter2")
	if err != nil || role != RoleReadWrite {
		t.Fatalf("Authenticate = %v, %v; want readWrite, nil", role, err)
	}
	if _, err := m.Authenticate("sona", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateUserDuplicateFails(t *testing.T) {
	m := NewManager()
	if err := m.CreateUser("admin", "x", RoleRead); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestGuardDeniesReadRoleWrite(t *testing.T) {
	m := NewManager()
	m.CreateUser("viewer", "pw", RoleRead)
	g := NewGuard(m)

	if err := g.Check(Principal{Username: "viewer", Role: RoleRead}, CapInsert); err != ErrPermissionDenied {
		t.Fatalf("expected read role denied INSERT, got %v", err)
	}
	if err := g.Check(Principal{Username: "viewer", Role: RoleRead}, CapRead); err != nil {
		t.Fatalf("expected read role granted READ, got %v", err)
	}
}

func TestRequiredCapabilityMapping(t *testing.T) {
	cap, ok := RequiredCapability("insert")
	if !ok || cap != CapInsert {
		t.Fatalf("RequiredCapability(insert) = %v, %v", cap, ok)
	}
	if _, ok := RequiredCapability("not_a_real_op"); ok {
		t.Fatalf("expected unknown operation to have no required capability")
	}
}
