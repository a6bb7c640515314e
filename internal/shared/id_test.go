package shared

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("sum_")
	if !strings.HasPrefix(id, "sum_") {
		t.Errorf("expected prefix sum_, got %s", id)
	}
	if len(id) != len("sum_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got %s", id)
	}
	if NewID("sum_") == id {
		t.Error("ids should be unique")
	}
}
