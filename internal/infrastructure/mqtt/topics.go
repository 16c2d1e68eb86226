package mqtt

import (
	"strings"

	"github.com/nerrad567/appaccess/internal/events"
)

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "appaccess"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus is where online/offline status is retained.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AccessEvent is the topic for one event type, e.g. appaccess/access/user.deleted.
func (t Topics) AccessEvent(typ events.Type) string {
	return t.prefix() + "/access/" + string(typ)
}

// AllAccessEvents matches every access event topic.
func (t Topics) AllAccessEvents() string {
	return t.prefix() + "/access/#"
}
