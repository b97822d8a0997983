package postgres

import "testing"

func TestParseConfig_ApplicationName(t *testing.T) {
	cfg, err := parseConfig("postgres://u:p@localhost:5432/holders")
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Errorf("application_name = %q, want %q", got, applicationName)
	}

	cfg, err = parseConfig("postgres://u:p@localhost:5432/holders?application_name=ops")
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Errorf("application_name = %q, want the DSN value", got)
	}
}
