// conf/consts.go hard coded constants
package conf

const (
	// ViolenceLabel is the detection label that marks a frame positive.
	ViolenceLabel = "VIOLENCE"

	// UnknownLocation is reported when geolocation fails.
	UnknownLocation = "Unknown location"

	// AlertSubject is the subject line of every alert.
	AlertSubject = "Violence Detected Alert"

	// TimestampLayout is the sortable wall clock format used in alerts.
	TimestampLayout = "2006-01-02 15:04:05"

	ClipFileName = "violence_clip.mp4"

	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)
