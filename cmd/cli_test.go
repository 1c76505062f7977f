package cmd

import (
	"bytes"
	"strings"
	"testing"
)

// TestCreateRootCmd checks that createRootCmd returns a root command
// with the expected use string, subcommands, and a replaced help command.
func TestCreateRootCmd(t *testing.T) {
	rootCmd := createRootCmd()
	if rootCmd.Use != "oidckit" {
		t.Errorf("expected root command use to be 'oidckit', got: %s", rootCmd.Use)
	}

	subCommands := rootCmd.Commands()
	if len(subCommands) == 0 {
		t.Error("expected root command to have subcommands, got none")
	}

	for _, cmd := range subCommands {
		if cmd.Use == "help" {
			t.Error("expected help command to be replaced, but found a subcommand with use 'help'")
		}
	}
}

func TestVersionCmd_PrintsInfo(t *testing.T) {
	cmd := versionCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "oidckit version:") || !strings.Contains(out, "Go version:") || !strings.Contains(out, "Platform:") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestPrintNavigator_RendersSignals(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := createRootCmd()
	cmd.SetOut(buf)

	nav := &printNavigator{out: cmd}
	nav.Assign("https://idp.example.com/v1/logout")
	nav.Reload()

	out := buf.String()
	if !strings.Contains(out, "https://idp.example.com/v1/logout") {
		t.Fatalf("assign output missing URL: %s", out)
	}
	if !strings.Contains(out, "Signed out") {
		t.Fatalf("reload output missing message: %s", out)
	}
	if nav.CurrentURL() != "" {
		t.Fatalf("CLI navigator has no current URL, got: %s", nav.CurrentURL())
	}
}
