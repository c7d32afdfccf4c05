package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sitescraper <site> <output_dir>" {
			t.Errorf("expected use 'sitescraper <site> <output_dir>', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has crawl flags", func(t *testing.T) {
		t.Parallel()
		defaults := map[string]string{
			"max_depth":       "1",
			"rate_limit":      "0",
			"max_concurrency": "4",
			"timeout":         "10s",
			"proxy":           "",
			"summary":         "",
			"metrics_file":    "",
			"no_history":      "false",
		}
		for name, want := range defaults {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Errorf("expected %s flag", name)
				continue
			}
			if flag.DefValue != want {
				t.Errorf("expected %s default %q, got %q", name, want, flag.DefValue)
			}
		}
		if flag := cmd.Flags().Lookup("config"); flag == nil || flag.Shorthand != "c" {
			t.Error("expected config flag with shorthand 'c'")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"init": false, "history": false, "compare": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

// TestRootCmdArgs tests positional argument validation.
func TestRootCmdArgs(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{}, {"https://docs.example.com"}, {"a", "b", "c"}} {
		cmd := NewRootCmd()
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil {
			t.Errorf("expected error for args %v", args)
		}
	}
}
