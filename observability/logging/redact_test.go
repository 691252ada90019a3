package logging

import "testing"

func TestMaskFieldRedactsNonAllowlistedKeys(t *testing.T) {
	attr := MaskField("public_key", "0xdeadbeef")
	if attr.Value.String() != RedactedValue {
		t.Fatalf("expected public_key to be redacted, got %q", attr.Value.String())
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("reason", "admit")
	if attr.Value.String() != "admit" {
		t.Fatalf("expected reason to pass through, got %q", attr.Value.String())
	}
}

func TestMaskFieldLeavesEmptyValuesUnmasked(t *testing.T) {
	attr := MaskField("public_key", "")
	if attr.Value.String() != "" {
		t.Fatalf("expected empty value to remain empty, got %q", attr.Value.String())
	}
}
