package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRun_ScenariosSucceeds(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"jamfkit-demo", "scenarios"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Run(scenarios) = %d, stderr: %s", code, stderr.String())
	}

	dec := json.NewDecoder(&stdout)
	count := 0
	for dec.More() {
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			t.Fatalf("decode scenario output: %v", err)
		}
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one JSON record on stdout")
	}
}

func TestRun_NoArgsDefaultsToScenarios(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"jamfkit-demo"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Run() = %d, stderr: %s", code, stderr.String())
	}
	if stdout.Len() == 0 {
		t.Fatal("expected scenario output on stdout")
	}
}

func TestRun_Doctor(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"jamfkit-demo", "doctor"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Run(doctor) = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "adapter_requires_credentials") {
		t.Fatalf("expected doctor output to mention adapter_requires_credentials, got: %s", stdout.String())
	}
}

func TestRun_UnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"jamfkit-demo", "bogus"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("Run(bogus) = %d, want 2", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage message on stderr")
	}
}
