package policy

import (
	"context"
	"testing"

	"vaultd/internal/domain"
)

func TestDefaultPolicyRoles(t *testing.T) {
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	cases := []struct {
		role    domain.Role
		action  string
		allowed bool
	}{
		{domain.RoleUser, domain.ActionRequestCreate, true},
		{domain.RoleUser, domain.ActionDataView, true},
		{domain.RoleUser, domain.ActionDataDownload, true},
		{domain.RoleUser, domain.ActionRequestProcess, false},
		{domain.RoleUser, domain.ActionAdminDashboard, false},
		{domain.RoleUser, domain.ActionDataUpload, false},
		{domain.RoleUser, domain.ActionDataModify, false},
		{domain.RoleUser, domain.ActionDataDelete, false},
		{domain.RoleAdmin, domain.ActionRequestProcess, true},
		{domain.RoleAdmin, domain.ActionAdminDashboard, true},
		{domain.RoleAdmin, domain.ActionDataUpload, true},
		{domain.RoleAdmin, domain.ActionDataModify, true},
		{domain.RoleAdmin, domain.ActionDataDelete, true},
		{domain.RoleAdmin, domain.ActionRequestCreate, false},
		{"", domain.ActionRequestCreate, false},
		{domain.RoleUser, "unknown:action", false},
	}
	for _, tc := range cases {
		got, err := engine.Allow(context.Background(), domain.PolicyInput{Role: tc.role, Action: tc.action})
		if err != nil {
			t.Fatalf("allow(%s, %s): %v", tc.role, tc.action, err)
		}
		if got != tc.allowed {
			t.Fatalf("allow(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.allowed)
		}
	}
}

func TestCustomPolicySource(t *testing.T) {
	src := `package vaultd.authz

import rego.v1

default allow := false

allow if input.role == "admin"
`
	engine, err := newEngineFromSource(context.Background(), "custom.rego", src)
	if err != nil {
		t.Fatalf("compile custom policy: %v", err)
	}
	allowed, err := engine.Allow(context.Background(), domain.PolicyInput{Role: domain.RoleAdmin, Action: "anything"})
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("expected custom policy to allow admin")
	}
}
