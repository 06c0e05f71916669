// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// maxLocationTimeout caps the lookup made on the frame loop for every confirmed event.
const maxLocationTimeout = 5 * time.Second

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and collects every problem found.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateDetectionSettings,
		validateClassifierSettings,
		validateEvidenceSettings,
		validateLocationSettings,
		validateAlertSettings,
		validateEmailSettings,
		validateSMSSettings,
		validatePushSettings,
		validateMQTTSettings,
		validateLogSettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDetectionSettings(s *Settings) []string {
	var errs []string
	d := &s.Detection

	if d.ConfirmThreshold < 1 {
		errs = append(errs, "detection confirm threshold must be at least 1")
	}
	if d.KeyFrames < 0 {
		errs = append(errs, "detection key frame cap must not be negative")
	}
	if strings.TrimSpace(d.Label) == "" {
		errs = append(errs, "detection label must not be empty")
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		errs = append(errs, "detection min confidence must be between 0 and 1")
	}
	return errs
}

func validateClassifierSettings(s *Settings) []string {
	var errs []string
	c := &s.Classifier

	if err := validateAbsoluteURL(c.URL); err != nil {
		errs = append(errs, fmt.Sprintf("classifier url: %v", err))
	}
	if c.Timeout <= 0 {
		errs = append(errs, "classifier timeout must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, "classifier jpeg quality must be between 1 and 100")
	}
	if len(c.Classes) == 0 {
		errs = append(errs, "classifier classes must not be empty")
	}
	return errs
}

func validateEvidenceSettings(s *Settings) []string {
	var errs []string
	e := &s.Evidence

	if strings.TrimSpace(e.Path) == "" {
		errs = append(errs, "evidence path must not be empty")
	}
	if e.MaxClipFrames < s.Detection.ConfirmThreshold {
		errs = append(errs, "evidence max clip frames must be at least the confirm threshold")
	}
	if e.JPEGQuality < 1 || e.JPEGQuality > 100 {
		errs = append(errs, "evidence jpeg quality must be between 1 and 100")
	}
	if s.Media.DefaultFPS <= 0 {
		errs = append(errs, "media default fps must be positive")
	}
	return errs
}

func validateLocationSettings(s *Settings) []string {
	l := &s.Location
	if !l.Enabled || l.Override != "" {
		return nil
	}

	var errs []string
	if err := validateAbsoluteURL(l.URL); err != nil {
		errs = append(errs, fmt.Sprintf("location url: %v", err))
	}
	if l.Timeout <= 0 {
		errs = append(errs, "location timeout must be positive")
	}
	if l.Timeout > maxLocationTimeout {
		errs = append(errs, fmt.Sprintf("location timeout must not exceed %s", maxLocationTimeout))
	}
	return errs
}

func validateAlertSettings(s *Settings) []string {
	var errs []string
	a := &s.Alert

	if a.QueueSize < 1 {
		errs = append(errs, "alert queue size must be at least 1")
	}
	if a.Workers < 1 {
		errs = append(errs, "alert workers must be at least 1")
	}
	if a.ChannelTimeout <= 0 {
		errs = append(errs, "alert channel timeout must be positive")
	}
	return errs
}

func validateEmailSettings(s *Settings) []string {
	e := &s.Email
	if !e.Enabled {
		return nil
	}

	var errs []string
	if e.Host == "" {
		errs = append(errs, "email host is required when email is enabled")
	}
	if e.Port < 1 || e.Port > 65535 {
		errs = append(errs, "email port must be between 1 and 65535")
	}
	if e.From == "" {
		errs = append(errs, "email sender is required when email is enabled")
	}
	if len(e.To) == 0 {
		errs = append(errs, "at least one email recipient is required when email is enabled")
	}
	return errs
}

func validateSMSSettings(s *Settings) []string {
	m := &s.SMS
	if !m.Enabled {
		return nil
	}

	var errs []string
	if err := validateAbsoluteURL(m.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("sms base url: %v", err))
	}
	if m.AccountSID == "" || m.AuthToken == "" {
		errs = append(errs, "sms account sid and auth token are required when sms is enabled")
	}
	if m.From == "" {
		errs = append(errs, "sms sender number is required when sms is enabled")
	}
	if len(m.To) == 0 {
		errs = append(errs, "at least one sms recipient is required when sms is enabled")
	}
	if m.Rate <= 0 {
		errs = append(errs, "sms rate must be positive")
	}
	return errs
}

func validatePushSettings(s *Settings) []string {
	if s.Push.Enabled && len(s.Push.URLs) == 0 {
		return []string{"at least one push url is required when push is enabled"}
	}
	return nil
}

func validateMQTTSettings(s *Settings) []string {
	m := &s.MQTT
	if !m.Enabled {
		return nil
	}

	var errs []string
	if m.Broker == "" {
		errs = append(errs, "mqtt broker is required when mqtt is enabled")
	}
	if m.Topic == "" {
		errs = append(errs, "mqtt topic is required when mqtt is enabled")
	}
	if m.QoS < 0 || m.QoS > 2 {
		errs = append(errs, "mqtt qos must be 0, 1 or 2")
	}
	return errs
}

func validateLogSettings(s *Settings) []string {
	switch s.Main.Log.Rotation {
	case RotationDaily, RotationWeekly, RotationSize, "":
		return nil
	default:
		return []string{fmt.Sprintf("unknown log rotation %q", s.Main.Log.Rotation)}
	}
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host")
	}
	return nil
}
