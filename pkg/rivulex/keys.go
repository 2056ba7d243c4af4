package rivulex

import (
	"fmt"
	"time"
)

// DefaultDeadLetterStream is where rejected events land unless overridden.
const DefaultDeadLetterStream = "dead_letter"

// TrimmerKey returns the trim coordination key: "rivulex:trimmer:{stream}"
func TrimmerKey(stream string) string {
	return "rivulex:trimmer:" + stream
}

// SubscriberClientID returns the default subscriber client ID:
// "rivulex:{group}:sub:{unix-ms}"
func SubscriberClientID(group string) string {
	return fmt.Sprintf("rivulex:%s:sub:%d", group, time.Now().UnixMilli())
}

// TrimmerClientID returns the default trimmer client ID:
// "rivulex:{group}:trimmer:{unix-ms}"
func TrimmerClientID(group string) string {
	return fmt.Sprintf("rivulex:%s:trimmer:%d", group, time.Now().UnixMilli())
}
