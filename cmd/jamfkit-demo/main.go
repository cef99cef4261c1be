// Command jamfkit-demo wires config, controller, adapter, and audit log
// together and runs a fixed set of scenarios end to end against the stub
// API, printing each ExecutionResult as JSON. Grounded on the teacher's
// cmd/helm main.go: a testable Run(args, stdout, stderr) int entrypoint
// dispatching on a subcommand, with main() itself doing nothing but calling
// Run and os.Exit.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jamfkit/core/pkg/adapter"
	"github.com/jamfkit/core/pkg/approval"
	"github.com/jamfkit/core/pkg/audit"
	"github.com/jamfkit/core/pkg/config"
	"github.com/jamfkit/core/pkg/controller"
	"github.com/jamfkit/core/pkg/proxy"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runScenariosCmd(stdout, stderr)
	}

	switch args[1] {
	case "scenarios", "run":
		return runScenariosCmd(stdout, stderr)
	case "doctor":
		return runDoctorCmd(stdout, stderr)
	default:
		fmt.Fprintf(stderr, "usage: jamfkit-demo [scenarios|doctor]\n")
		return 2
	}
}

// scenario is one named script run against a fixed mode and capability set.
// The demo runs scenarios S1–S5 and S7; S6 (token expiry) is not run here.
type scenario struct {
	name         string
	code         string
	mode         proxy.Mode
	capabilities []string
	approval     string
}

func runScenariosCmd(stdout, stderr io.Writer) int {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	stub := adapter.NewStubAPI()
	creds := adapter.Credentials{Username: "demo", Password: "demo-password"}
	api, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), creds, cfg.AdapterConfig(),
		adapter.WithLogger(logger),
		adapter.WithCursorBroker(adapter.NewCursorBroker()),
	)
	if err != nil {
		fmt.Fprintf(stderr, "jamfkit-demo: construct adapter: %v\n", err)
		return 1
	}

	trail := audit.New()
	ctrl := controller.New(approval.New(), cfg.ControllerConfig(),
		controller.WithLogger(logger),
		controller.WithAuditLog(trail),
	)
	// S4 runs against a read budget of 2 so its third read is refused.
	tightCfg := cfg.ControllerConfig()
	tightCfg.Caps.Reads = 2
	tight := controller.New(approval.New(), tightCfg,
		controller.WithLogger(logger),
		controller.WithAuditLog(trail),
	)

	scenarios := []scenario{
		{
			name:         "S1_read_executes",
			code:         `return await client.getAllComputers()`,
			mode:         proxy.ModePlan,
			capabilities: []string{"read:computers"},
		},
		{
			name:         "S2_plan_blocks_write",
			code:         `return await client.createPolicy({name: "Install Chrome"})`,
			mode:         proxy.ModePlan,
			capabilities: []string{"write:policies"},
		},
		{
			name:         "S3_access_denied",
			code:         `return await client.getAllComputers()`,
			mode:         proxy.ModePlan,
			capabilities: []string{"read:policies"},
		},
		{
			name: "S4_budget_exceeded",
			code: `
				const a = await client.getAllComputers();
				const b = await client.getAllPolicies();
				const c = await client.getAllMobileDevices();
				return [a, b, c];
			`,
			mode:         proxy.ModePlan,
			capabilities: []string{"read:*"},
		},
		{
			name:         "S7_sandbox_isolation",
			code:         `return typeof require + "/" + typeof fetch + "/" + typeof process`,
			mode:         proxy.ModePlan,
			capabilities: nil,
		},
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	for _, sc := range scenarios {
		runner := ctrl
		if sc.name == "S4_budget_exceeded" {
			runner = tight
		}
		res := runner.Execute(context.Background(), api, controller.Input{
			Code:         sc.code,
			Mode:         sc.mode,
			Capabilities: sc.capabilities,
			Approval:     sc.approval,
		})
		if err := enc.Encode(map[string]any{"scenario": sc.name, "result": res}); err != nil {
			fmt.Fprintf(stderr, "jamfkit-demo: encode result: %v\n", err)
			return 1
		}
	}

	// S5 — plan mints an approval token, apply consumes it, reuse fails.
	plan := ctrl.Execute(context.Background(), api, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"command:policies"},
	})
	_ = enc.Encode(map[string]any{"scenario": "S5_plan_mints_token", "result": plan})

	if plan.ApprovalRequired != nil {
		apply := ctrl.Execute(context.Background(), api, controller.Input{
			Code:         `return await client.executePolicy(1)`,
			Mode:         proxy.ModeApply,
			Capabilities: []string{"command:policies"},
			Approval:     plan.ApprovalRequired.Token,
		})
		_ = enc.Encode(map[string]any{"scenario": "S5_apply_with_token", "result": apply})

		reuse := ctrl.Execute(context.Background(), api, controller.Input{
			Code:         `return await client.executePolicy(1)`,
			Mode:         proxy.ModeApply,
			Capabilities: []string{"command:policies"},
			Approval:     plan.ApprovalRequired.Token,
		})
		_ = enc.Encode(map[string]any{"scenario": "S5_reused_token_fails", "result": reuse})
	}

	if err := trail.VerifyChain(); err != nil {
		fmt.Fprintf(stderr, "jamfkit-demo: audit chain verification failed: %v\n", err)
		return 1
	}
	_ = enc.Encode(map[string]any{"scenario": "audit_trail", "entries": trail.Entries()})

	return 0
}

// runDoctorCmd runs a minimal set of self-checks: adapter construction and
// audit chain integrity over a scratch log, mirroring the teacher's
// `helm doctor` machine-readable check list.
func runDoctorCmd(stdout, stderr io.Writer) int {
	type checkResult struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Detail string `json:"detail,omitempty"`
	}

	var results []checkResult
	allOK := true

	cfg := config.Load()
	results = append(results, checkResult{Name: "config_load", Status: "ok", Detail: fmt.Sprintf("tier=%s", cfg.Tier)})

	stub := adapter.NewStubAPI()
	if _, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), adapter.Credentials{}, cfg.AdapterConfig()); err != nil {
		results = append(results, checkResult{Name: "adapter_requires_credentials", Status: "ok", Detail: "construction correctly rejected empty credentials"})
	} else {
		results = append(results, checkResult{Name: "adapter_requires_credentials", Status: "fail", Detail: "adapter.New accepted empty credentials"})
		allOK = false
	}

	log := audit.New()
	log.Append("doctor", "self-check", "audit", "probe")
	if err := log.VerifyChain(); err != nil {
		results = append(results, checkResult{Name: "audit_chain", Status: "fail", Detail: err.Error()})
		allOK = false
	} else {
		results = append(results, checkResult{Name: "audit_chain", Status: "ok"})
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)

	if !allOK {
		fmt.Fprintln(stderr, "jamfkit-demo doctor: one or more checks failed")
		return 1
	}
	return 0
}
