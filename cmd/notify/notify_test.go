package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/notification"
)

func TestFilterChannels(t *testing.T) {
	t.Parallel()

	all := []notification.Notifier{
		notification.NotifierFunc{ChannelName: "email"},
		notification.NotifierFunc{ChannelName: "sms"},
		notification.NotifierFunc{ChannelName: "push"},
	}

	assert.Len(t, filterChannels(all, nil), 3)

	got := filterChannels(all, []string{"sms", "mqtt"})
	require.Len(t, got, 1)
	assert.Equal(t, "sms", got[0].Name())
}

func TestCommandWithoutChannels(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Location.Override = "Test site"

	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enabled alert channel")
}
