package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("WDCLIENT_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_RelativeEnvVarIsMadeAbsolute(t *testing.T) {
	ResetHome()
	t.Setenv("WDCLIENT_HOME", "wd-home")
	defer ResetHome()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := GetHome(), filepath.Join(cwd, "wd-home"); got != want {
		t.Errorf("GetHome() = %q, want %q", got, want)
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("WDCLIENT_HOME", "/first")
	first := GetHome()

	t.Setenv("WDCLIENT_HOME", "/second")
	if got := GetHome(); got != first {
		t.Errorf("GetHome() = %q after env change, want cached %q", got, first)
	}
	ResetHome()
}

func TestGetHome_Fallback(t *testing.T) {
	ResetHome()
	t.Setenv("WDCLIENT_HOME", "")
	defer ResetHome()

	got := GetHome()
	if got == "" {
		t.Error("GetHome() returned empty string")
	}

	cwd, _ := os.Getwd()
	exe, _ := os.Executable()
	binParent := filepath.Dir(filepath.Dir(exe))
	if got != cwd && got != binParent {
		t.Errorf("GetHome() = %q, want cwd %q or binary home", got, cwd)
	}
}

func TestGetLogsDir(t *testing.T) {
	ResetHome()
	t.Setenv("WDCLIENT_HOME", "/test/home")
	defer ResetHome()

	want := filepath.Join("/test/home", "logs")
	if got := GetLogsDir(); got != want {
		t.Errorf("GetLogsDir() = %q, want %q", got, want)
	}
}

func TestGetReportsDir(t *testing.T) {
	ResetHome()
	t.Setenv("WDCLIENT_HOME", "/test/home")
	defer ResetHome()

	want := filepath.Join("/test/home", "reports")
	if got := GetReportsDir(); got != want {
		t.Errorf("GetReportsDir() = %q, want %q", got, want)
	}
}
