package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "id-1", "driver", "jti-1")

	if v, ok := GetIdentityID(ctx); !ok || v != "id-1" {
		t.Errorf("identity_id = %q, %v; want id-1, true", v, ok)
	}
	if v, ok := GetRole(ctx); !ok || v != "driver" {
		t.Errorf("role = %q, %v; want driver, true", v, ok)
	}
	if v, ok := GetTokenID(ctx); !ok || v != "jti-1" {
		t.Errorf("token_id = %q, %v; want jti-1, true", v, ok)
	}
}

func TestGetters_NotSet(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetIdentityID(ctx); ok {
		t.Error("GetIdentityID should return false when unset")
	}
	if _, ok := GetRole(ctx); ok {
		t.Error("GetRole should return false when unset")
	}
	if _, ok := GetTokenID(ctx); ok {
		t.Error("GetTokenID should return false when unset")
	}
}
