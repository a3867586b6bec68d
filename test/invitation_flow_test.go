package test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/yourorg/teamtask/internal/domain"
)

// Covers the full onboarding path: a manager issues an invitation, the
// invitee verifies the token, registers, and logs straight in.
func TestInvitationFlowEndToEnd(t *testing.T) {
	helper := NewTestServer(t)
	defer helper.Close()

	mgrID := helper.Employees.SeedEmployee(t, "Morgan", "morgan@example.com", "manager-pass", domain.RoleManager, "")
	mgrToken := helper.Login(t, "morgan@example.com", "manager-pass")

	issued := helper.DoJSON(t, "POST", "/api/team/invitations", mgrToken, map[string]string{
		"email": "New.Hire@Example.com",
		"name":  "New Hire",
	}, http.StatusCreated)
	if issued["expiry"] == nil {
		t.Fatalf("invitation response missing expiry: %v", issued)
	}

	token := helper.Notifier.LastToken(t)
	if len(token) != 64 {
		t.Fatalf("expected a 64-char hex token, got %q", token)
	}

	verified := helper.DoJSON(t, "GET", "/api/invitations/verify?token="+url.QueryEscape(token), "", nil, http.StatusOK)
	if verified["email"] != "new.hire@example.com" {
		t.Errorf("expected lowercased email, got %v", verified["email"])
	}
	if verified["role"] != "employee" {
		t.Errorf("expected employee role, got %v", verified["role"])
	}

	// Registering with a different email than invited is rejected.
	helper.DoJSON(t, "POST", "/api/register", "", map[string]string{
		"token":    token,
		"name":     "New Hire",
		"email":    "someone.else@example.com",
		"password": "hire-password",
	}, http.StatusBadRequest)

	registered := helper.DoJSON(t, "POST", "/api/register", "", map[string]string{
		"token":    token,
		"name":     "New Hire",
		"email":    "NEW.HIRE@example.com",
		"password": "hire-password",
	}, http.StatusCreated)
	if registered["managerId"] != mgrID {
		t.Errorf("expected managerId %s, got %v", mgrID, registered["managerId"])
	}
	if _, leaked := registered["passwordHash"]; leaked {
		t.Error("registration response must not carry password material")
	}

	// The token is single-use.
	helper.DoJSON(t, "POST", "/api/register", "", map[string]string{
		"token":    token,
		"name":     "Impostor",
		"email":    "new.hire@example.com",
		"password": "other-password",
	}, http.StatusBadRequest)

	// The fresh account works against the rest of the API.
	newToken := helper.Login(t, "new.hire@example.com", "hire-password")
	// GET /api/tasks responds with a JSON array (see TestTaskListScoping), so
	// the object-decoding DoJSON helper does not apply here.
	tasksResp := helper.Do(t, "GET", "/api/tasks", newToken, nil)
	tasksResp.Body.Close()
	AssertStatusCode(t, tasksResp, http.StatusOK)
}

func TestInvitationPermissions(t *testing.T) {
	helper := NewTestServer(t)
	defer helper.Close()

	mgrID := helper.Employees.SeedEmployee(t, "Morgan", "morgan@example.com", "manager-pass", domain.RoleManager, "")
	helper.Employees.SeedEmployee(t, "Evan", "evan@example.com", "employee-pass", domain.RoleEmployee, mgrID)

	adminToken := helper.Login(t, AdminEmail, AdminPassword)
	mgrToken := helper.Login(t, "morgan@example.com", "manager-pass")
	empToken := helper.Login(t, "evan@example.com", "employee-pass")

	// Employees cannot invite anyone.
	helper.DoJSON(t, "POST", "/api/team/invitations", empToken, map[string]string{
		"email": "friend@example.com",
		"name":  "Friend",
	}, http.StatusForbidden)

	// Managers cannot invite managers.
	helper.DoJSON(t, "POST", "/api/team/invitations/manager", mgrToken, map[string]string{
		"email": "peer@example.com",
		"name":  "Peer",
	}, http.StatusForbidden)

	// Admins can.
	helper.DoJSON(t, "POST", "/api/team/invitations/manager", adminToken, map[string]string{
		"email": "lead@example.com",
		"name":  "Lead",
	}, http.StatusCreated)

	// Inviting an existing employee conflicts.
	helper.DoJSON(t, "POST", "/api/team/invitations", mgrToken, map[string]string{
		"email": "evan@example.com",
		"name":  "Evan Again",
	}, http.StatusConflict)

	verify := helper.Do(t, "GET", "/api/invitations/verify?token=0000000000000000000000000000000000000000000000000000000000000000", "", nil)
	verify.Body.Close()
	AssertStatusCode(t, verify, http.StatusNotFound)
}
