package main

import "testing"

func TestCommandsRegistered(t *testing.T) {
	if rootCmd.Use != "zenogate" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "zenogate")
	}

	var haveRun, haveVersion bool
	for _, cmd := range rootCmd.Commands() {
		switch cmd.Use {
		case "run":
			haveRun = true
		case "version":
			haveVersion = true
		}
	}
	if !haveRun {
		t.Error("run command should be registered")
	}
	if !haveVersion {
		t.Error("version command should be registered")
	}
}

func TestConfigFlagDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("config flag should be defined")
	}
	if flag.DefValue != "config.yaml" {
		t.Errorf("config flag default = %q, want config.yaml", flag.DefValue)
	}
}
