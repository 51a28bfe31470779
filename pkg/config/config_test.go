package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadString(t *testing.T) {
	data := `
[chamois]
tcp_address: 192.168.7.20
tcp_port: 5433
number_of_toolhead: 4  # slots
connect_timeout: 2.5

[api]
listen: :7125
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if !cfg.HasSection("chamois") {
		t.Error("expected [chamois] section to exist")
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}

	sec, err := cfg.GetSection("chamois")
	if err != nil {
		t.Fatalf("GetSection(chamois) failed: %v", err)
	}
	if sec.Name() != "chamois" {
		t.Errorf("expected name 'chamois', got '%s'", sec.Name())
	}

	addr, err := sec.Get("tcp_address")
	if err != nil {
		t.Fatalf("Get(tcp_address) failed: %v", err)
	}
	if addr != "192.168.7.20" {
		t.Errorf("expected '192.168.7.20', got '%s'", addr)
	}

	port, err := sec.GetInt("tcp_port")
	if err != nil {
		t.Fatalf("GetInt(tcp_port) failed: %v", err)
	}
	if port != 5433 {
		t.Errorf("expected 5433, got %d", port)
	}

	// Inline comment stripped
	slots, err := sec.GetInt("number_of_toolhead")
	if err != nil {
		t.Fatalf("GetInt(number_of_toolhead) failed: %v", err)
	}
	if slots != 4 {
		t.Errorf("expected 4, got %d", slots)
	}
}

func TestSectionGetters(t *testing.T) {
	data := `
[test]
string_val: hello
int_val = 42
float_val: 3.14
bool_on: on
bool_no: no
timeout: 1.5
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("test")

	if v, _ := sec.Get("missing", "default"); v != "default" {
		t.Errorf("expected 'default', got '%s'", v)
	}
	if _, err := sec.Get("missing"); err == nil {
		t.Error("expected error for missing option without fallback")
	}

	if v, _ := sec.GetInt("int_val"); v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if v, _ := sec.GetFloat("float_val"); v != 3.14 {
		t.Errorf("expected 3.14, got %f", v)
	}
	if v, _ := sec.GetBool("bool_on"); !v {
		t.Error("expected bool_on to be true")
	}
	if v, _ := sec.GetBool("bool_no"); v {
		t.Error("expected bool_no to be false")
	}
	if v, _ := sec.GetSeconds("timeout"); v != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", v)
	}
	if v, _ := sec.GetSeconds("missing_timeout", 5*time.Second); v != 5*time.Second {
		t.Errorf("expected fallback 5s, got %v", v)
	}

	if _, err := sec.GetInt("string_val"); err == nil {
		t.Error("expected error parsing 'hello' as integer")
	}
}

func TestMultiLineOption(t *testing.T) {
	data := `
[chamois_macro CHAMOIS_PARK]
gcode:
    G90
    G1 X0 Y0 F6000
    M400
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, err := cfg.GetSection("chamois_macro CHAMOIS_PARK")
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	script, err := sec.Get("gcode")
	if err != nil {
		t.Fatalf("Get(gcode) failed: %v", err)
	}
	want := "\nG90\nG1 X0 Y0 F6000\nM400"
	if script != want {
		t.Errorf("expected %q, got %q", want, script)
	}
}

func TestGetIntBounded(t *testing.T) {
	data := `
[chamois]
number_of_toolhead: 25
`
	cfg, _ := LoadString(data)
	sec, _ := cfg.GetSection("chamois")

	if _, err := sec.GetIntBounded("number_of_toolhead", 1, 20); err == nil {
		t.Error("expected out-of-range error for 25")
	}
	if v, err := sec.GetIntBounded("missing", 1, 20, 4); err != nil || v != 4 {
		t.Errorf("expected fallback 4, got %d (%v)", v, err)
	}
}

func TestSaveBlockLines(t *testing.T) {
	data := `
#*# [chamois]
#*# tcp_address: 10.0.0.5
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, err := cfg.GetSection("chamois")
	if err != nil {
		t.Fatalf("expected save-block section to parse: %v", err)
	}
	if v, _ := sec.Get("tcp_address"); v != "10.0.0.5" {
		t.Errorf("expected '10.0.0.5', got '%s'", v)
	}
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()

	extra := filepath.Join(dir, "mmu.cfg")
	if err := os.WriteFile(extra, []byte("[chamois]\ntcp_address: 10.1.1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "printer.cfg")
	if err := os.WriteFile(main, []byte("[include mmu.cfg]\n[printer]\nkinematics: cartesian\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.HasSection("chamois") {
		t.Error("expected included [chamois] section")
	}
	if !cfg.HasSection("printer") {
		t.Error("expected [printer] section")
	}
}

func TestUnusedTracking(t *testing.T) {
	data := `
[chamois]
tcp_address: 10.0.0.1
stale_option: 1

[leftover]
x: 1
`
	cfg, _ := LoadString(data)
	sec, _ := cfg.GetSection("chamois")
	sec.Get("tcp_address")

	unusedSections := cfg.UnusedSections()
	if len(unusedSections) != 1 || unusedSections[0] != "leftover" {
		t.Errorf("expected [leftover] unused, got %v", unusedSections)
	}
	unusedOptions := sec.UnusedOptions()
	if len(unusedOptions) != 1 || unusedOptions[0] != "stale_option" {
		t.Errorf("expected stale_option unused, got %v", unusedOptions)
	}
}
