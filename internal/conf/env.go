// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "VIGIL_DEBUG", validateEnvBool},

		// Detection
		{"detection.confirmthreshold", "VIGIL_CONFIRM_THRESHOLD", validateEnvPositiveInt},
		{"detection.keyframes", "VIGIL_KEYFRAMES", validateEnvPositiveInt},
		{"detection.minconfidence", "VIGIL_MIN_CONFIDENCE", validateEnvUnitInterval},

		// Collaborators
		{"classifier.url", "VIGIL_CLASSIFIER_URL", validateEnvURL},
		{"evidence.path", "VIGIL_EVIDENCE_PATH", nil},
		{"location.override", "VIGIL_LOCATION", nil},

		// Secrets are usually injected through the environment
		{"email.username", "VIGIL_EMAIL_USERNAME", nil},
		{"email.password", "VIGIL_EMAIL_PASSWORD", nil},
		{"sms.accountsid", "VIGIL_SMS_ACCOUNT_SID", nil},
		{"sms.authtoken", "VIGIL_SMS_AUTH_TOKEN", nil},
		{"mqtt.password", "VIGIL_MQTT_PASSWORD", nil},
		{"sentry.dsn", "VIGIL_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvUnitInterval(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("must be between 0.0 and 1.0, got %g", f)
	}
	return nil
}

// validateEnvURL checks for an absolute URL; the value itself is not echoed since it may hold credentials
func validateEnvURL(value string) error {
	return validateAbsoluteURL(value)
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}
