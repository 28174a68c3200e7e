package config_test

import (
	"testing"

	"tentatek/internal/config"
)

func TestIsStaff(t *testing.T) {
	c := config.Config{StaffUserIDs: []int64{42, 1337}}

	for _, userID := range []int64{42, 1337} {
		if !c.IsStaff(userID) {
			t.Errorf("expected user %d to be staff", userID)
		}
	}

	if c.IsStaff(1) {
		t.Error("expected user 1 not to be staff")
	}

	empty := config.Config{}
	if empty.IsStaff(42) {
		t.Error("expected no staff on an empty configuration")
	}
}
