package conf

import (
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/secrets"
)

// resolveCredentials replaces channel credentials with their resolved values.
// Only enabled channels are resolved so unset references on idle channels do not fail startup.
func resolveCredentials(s *Settings) error {
	var errs []error

	resolve := func(field, file string, value *string) {
		resolved, err := secrets.Resolve(field, file, *value)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*value = resolved
	}

	if s.Email.Enabled {
		resolve("email.password", s.Email.PasswordFile, &s.Email.Password)
	}
	if s.SMS.Enabled {
		resolve("sms.accountsid", "", &s.SMS.AccountSID)
		resolve("sms.authtoken", s.SMS.AuthTokenFile, &s.SMS.AuthToken)
	}
	if s.Push.Enabled {
		for i := range s.Push.URLs {
			resolve("push.urls", "", &s.Push.URLs[i])
		}
	}
	if s.MQTT.Enabled {
		resolve("mqtt.password", s.MQTT.PasswordFile, &s.MQTT.Password)
	}

	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "resolve_credentials").
			Build()
	}
	return nil
}
