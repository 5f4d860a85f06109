package main

import "testing"

func TestParseParamsCoercesBooleansAndNumbers(t *testing.T) {
	got, err := parseParams([]string{"name=world", "loud=true", "count=3"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if got["name"] != "world" {
		t.Errorf("name = %v, want world", got["name"])
	}
	if got["loud"] != true {
		t.Errorf("loud = %v, want true", got["loud"])
	}
	if got["count"] != float64(3) {
		t.Errorf("count = %v, want 3", got["count"])
	}
}

func TestParseParamsRejectsMissingEquals(t *testing.T) {
	if _, err := parseParams([]string{"nokeyvalue"}); err == nil {
		t.Fatal("expected an error for a malformed --param")
	}
}
