package message

import "testing"

func TestOkResponse(t *testing.T) {
	resp := Ok("1-1000", "hello")
	if !resp.Success {
		t.Error("expected Success=true")
	}
	if resp.Error != "" {
		t.Errorf("expected empty Error, got %q", resp.Error)
	}
	if resp.CorrelationID != "1-1000" {
		t.Errorf("CorrelationID mismatch: got %q", resp.CorrelationID)
	}
	if resp.Result != "hello" {
		t.Errorf("Result mismatch: got %v", resp.Result)
	}
}

func TestFailResponse(t *testing.T) {
	resp := Fail("2-2000", "boom")
	if resp.Success {
		t.Error("expected Success=false")
	}
	if resp.Error != "boom" {
		t.Errorf("Error mismatch: got %q", resp.Error)
	}
	if resp.Result != nil {
		t.Errorf("expected nil Result, got %v", resp.Result)
	}
}
