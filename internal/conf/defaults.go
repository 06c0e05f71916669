// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "Vigil")
	v.SetDefault("main.log.enabled", false)
	v.SetDefault("main.log.path", "logs/vigil.log")
	v.SetDefault("main.log.rotation", RotationDaily)
	v.SetDefault("main.log.maxsize", 10485760)
	v.SetDefault("main.log.level", "info")

	v.SetDefault("detection.confirmthreshold", 5)
	v.SetDefault("detection.keyframes", 5)
	v.SetDefault("detection.label", ViolenceLabel)
	v.SetDefault("detection.minconfidence", 0.5)

	v.SetDefault("classifier.url", "http://localhost:8000")
	v.SetDefault("classifier.timeout", 5*time.Second)
	v.SetDefault("classifier.healthcachettl", 30*time.Second)
	v.SetDefault("classifier.jpegquality", 85)
	v.SetDefault("classifier.classes", []string{"NON_VIOLENCE", ViolenceLabel})

	v.SetDefault("evidence.path", "evidence/")
	v.SetDefault("evidence.maxclipframes", 300)
	v.SetDefault("evidence.jpegquality", 90)
	v.SetDefault("evidence.keep", true)

	v.SetDefault("media.ffmpegpath", "")
	v.SetDefault("media.ffprobepath", "")
	v.SetDefault("media.defaultfps", 25.0)
	v.SetDefault("media.videocodec", "libx264")
	v.SetDefault("media.rtsptransport", "tcp")

	v.SetDefault("location.enabled", true)
	v.SetDefault("location.override", "")
	v.SetDefault("location.url", "http://ip-api.com/json/")
	v.SetDefault("location.timeout", time.Second)

	v.SetDefault("alert.queuesize", 32)
	v.SetDefault("alert.workers", 2)
	v.SetDefault("alert.channeltimeout", 30*time.Second)
	v.SetDefault("alert.shutdowntimeout", 60*time.Second)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "smtp.gmail.com")
	v.SetDefault("email.port", 465)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.passwordfile", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", []string{})

	v.SetDefault("sms.enabled", false)
	v.SetDefault("sms.baseurl", "https://api.twilio.com")
	v.SetDefault("sms.accountsid", "")
	v.SetDefault("sms.authtoken", "")
	v.SetDefault("sms.authtokenfile", "")
	v.SetDefault("sms.from", "")
	v.SetDefault("sms.to", []string{})
	v.SetDefault("sms.rate", 1.0)

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.urls", []string{})

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "vigil/alerts")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.passwordfile", "")
	v.SetDefault("mqtt.clientid", "vigil")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
