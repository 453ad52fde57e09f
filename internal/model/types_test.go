package model

import "testing"

func TestParseMessageType(t *testing.T) {
	cases := []struct {
		in   string
		want MessageType
		ok   bool
	}{
		{"Error", Error, true},
		{"fault", Fault, true},
		{"INFO", Info, true},
		{"Debug", Debug, true},
		{"warning", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseMessageType(c.in)
		if ok != c.ok {
			t.Errorf("ParseMessageType(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ParseMessageType(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMessageTypeIsErrorClass(t *testing.T) {
	if !Error.IsErrorClass() || !Fault.IsErrorClass() {
		t.Error("Error and Fault must be error-class")
	}
	if Info.IsErrorClass() || Debug.IsErrorClass() {
		t.Error("Info and Debug must not be error-class")
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityInfo < SeverityWarning && SeverityWarning < SeverityCritical) {
		t.Error("Severity must order Info < Warning < Critical")
	}
}

func TestParseSeverityUnknownCoercesToInfo(t *testing.T) {
	sev, ok := ParseSeverity("bogus")
	if ok {
		t.Error("expected ok=false for unknown severity")
	}
	if sev != SeverityInfo {
		t.Errorf("unknown severity should coerce to Info, got %v", sev)
	}
}

func TestParseSeverityCaseInsensitive(t *testing.T) {
	sev, ok := ParseSeverity("CRITICAL")
	if !ok || sev != SeverityCritical {
		t.Errorf("ParseSeverity(CRITICAL) = %v, %v, want Critical, true", sev, ok)
	}
}

func TestMemoryPressureOrdering(t *testing.T) {
	if !(MemoryNormal < MemoryWarning && MemoryWarning < MemoryCritical) {
		t.Error("MemoryPressure must order Normal < Warning < Critical")
	}
}
