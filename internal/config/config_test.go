package config

import (
	"strings"
	"testing"
	"time"
)

// envMap adapts a map to the getenv signature LoadFrom expects.
func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Render.ModuleSize != 10 {
		t.Errorf("Render.ModuleSize = %d, want %d", cfg.Render.ModuleSize, 10)
	}
	if cfg.Render.Border != 4 {
		t.Errorf("Render.Border = %d, want %d", cfg.Render.Border, 4)
	}
	if cfg.Render.OutputResolution != 0 {
		t.Errorf("Render.OutputResolution = %d, want 0", cfg.Render.OutputResolution)
	}
	if cfg.Render.SampleRows != 5 {
		t.Errorf("Render.SampleRows = %d, want %d", cfg.Render.SampleRows, 5)
	}
	if cfg.Upload.MaxFileSize != 52428800 {
		t.Errorf("Upload.MaxFileSize = %d, want %d", cfg.Upload.MaxFileSize, 52428800)
	}
	if cfg.Storage.Enabled() {
		t.Errorf("Storage.Enabled() = true, want false by default")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SERVER_PORT":    "9090",
		"QR_MODULE_SIZE": "20",
		"QR_BORDER":      "0",
		"LOG_LEVEL":      "DEBUG",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Render.ModuleSize != 20 {
		t.Errorf("Render.ModuleSize = %d, want %d", cfg.Render.ModuleSize, 20)
	}
	if cfg.Render.Border != 0 {
		t.Errorf("Render.Border = %d, want 0", cfg.Render.Border)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("UPLOAD_MAX_CONCURRENT", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Upload.MaxConcurrent != 7 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 7)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"ARCHIVE_STORE":         "s3",
		"ARCHIVE_BUCKET":        "codes",
		"S3_ENDPOINT":           "localhost:9000",
		"AWS_ACCESS_KEY_ID":     "access",
		"AWS_SECRET_ACCESS_KEY": "secret",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Storage.S3AccessKey != "access" {
		t.Errorf("Storage.S3AccessKey = %q, want %q", cfg.Storage.S3AccessKey, "access")
	}
	if !cfg.Storage.Enabled() {
		t.Error("Storage.Enabled() = false, want true")
	}
}

func TestLoad_Duration(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SERVER_READ_TIMEOUT":  "45s",
		"UPLOAD_MAX_WAIT_TIME": "1m30s",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Upload.MaxWaitTime != 90*time.Second {
		t.Errorf("Upload.MaxWaitTime = %v, want %v", cfg.Upload.MaxWaitTime, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"TRUSTED_PROXIES": "10.0.0.0/8, 172.16.0.0/12 , ,192.168.0.0/16",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	want := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies = %v, want %v", cfg.Security.TrustedProxies, want)
	}
	for i := range want {
		if cfg.Security.TrustedProxies[i] != want[i] {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], want[i])
		}
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad integer", map[string]string{"SERVER_PORT": "eighty"}, "SERVER_PORT"},
		{"bad duration", map[string]string{"UPLOAD_TIMEOUT": "soon"}, "UPLOAD_TIMEOUT"},
		{"bad bool", map[string]string{"RATE_LIMIT_ENABLED": "maybe"}, "RATE_LIMIT_ENABLED"},
		{"module size too large", map[string]string{"QR_MODULE_SIZE": "21"}, "QR_MODULE_SIZE"},
		{"module size zero", map[string]string{"QR_MODULE_SIZE": "0"}, "QR_MODULE_SIZE"},
		{"border too large", map[string]string{"QR_BORDER": "11"}, "QR_BORDER"},
		{"negative resolution", map[string]string{"QR_OUTPUT_RESOLUTION": "-1"}, "QR_OUTPUT_RESOLUTION"},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"unknown store", map[string]string{"ARCHIVE_STORE": "ftp"}, "ARCHIVE_STORE"},
		{"gcs without bucket", map[string]string{"ARCHIVE_STORE": "gcs"}, "ARCHIVE_BUCKET"},
		{"api key required but empty", map[string]string{"REQUIRE_API_KEY": "true"}, "API_KEYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(envMap(tt.env))
			if err == nil {
				t.Fatal("LoadFrom() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Upload.MaxConcurrent = 0
	cfg.Render.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "UPLOAD_MAX_CONCURRENT", "QR_WORKERS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestServerConfig_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 9000, ":9000"},
		{"localhost", 80, "localhost:80"},
	}

	for _, tt := range tests {
		c := ServerConfig{Host: tt.host, Port: tt.port}
		if got := c.Addr(); got != tt.want {
			t.Errorf("Addr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestString_MasksCredentials(t *testing.T) {
	cfg := Default()
	cfg.Storage.S3SecretKey = "super-secret"

	if s := cfg.String(); strings.Contains(s, "super-secret") {
		t.Errorf("String() leaked a credential: %s", s)
	}
}
