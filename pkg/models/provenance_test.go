package models

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithProvenance_And_GetProvenance(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		ctx       context.Context
		wantOK    bool
		wantUser  uuid.UUID
		wantRole  GlobalRole
		wantIP    string
		wantAgent string
	}{
		{
			name:   "empty context",
			ctx:    context.Background(),
			wantOK: false,
		},
		{
			name: "full provenance",
			ctx: WithProvenance(context.Background(), ProvenanceContext{
				UserID:    userID,
				Role:      RoleAdmin,
				IPAddress: "10.0.0.1",
				UserAgent: "curl/8.0",
			}),
			wantOK:    true,
			wantUser:  userID,
			wantRole:  RoleAdmin,
			wantIP:    "10.0.0.1",
			wantAgent: "curl/8.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := GetProvenance(tt.ctx)
			if ok != tt.wantOK {
				t.Fatalf("GetProvenance() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if p.UserID != tt.wantUser {
				t.Errorf("UserID = %v, want %v", p.UserID, tt.wantUser)
			}
			if p.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", p.Role, tt.wantRole)
			}
			if p.IPAddress != tt.wantIP {
				t.Errorf("IPAddress = %q, want %q", p.IPAddress, tt.wantIP)
			}
			if p.UserAgent != tt.wantAgent {
				t.Errorf("UserAgent = %q, want %q", p.UserAgent, tt.wantAgent)
			}
		})
	}
}

func TestWithRequestOrigin_ThenActor_KeepsBoth(t *testing.T) {
	userID := uuid.New()

	ctx := WithRequestOrigin(context.Background(), "2001:db8::1", "Mozilla/5.0")
	ctx = WithActor(ctx, userID, RoleConsultant)

	p, ok := GetProvenance(ctx)
	if !ok {
		t.Fatal("provenance missing")
	}
	if p.UserID != userID || p.Role != RoleConsultant {
		t.Errorf("actor not set: %+v", p)
	}
	if p.IPAddress != "2001:db8::1" || p.UserAgent != "Mozilla/5.0" {
		t.Errorf("origin lost: %+v", p)
	}
}

func TestGetProvenance_Missing(t *testing.T) {
	if _, ok := GetProvenance(context.Background()); ok {
		t.Error("expected no provenance on a bare context")
	}
}
