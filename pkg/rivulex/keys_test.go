package rivulex

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitKeys_TrimmerKey(t *testing.T) {
	assert.Equal(t, "rivulex:trimmer:users", TrimmerKey("users"))
}

func TestUnitKeys_SubscriberClientID(t *testing.T) {
	id := SubscriberClientID("billing")
	assert.Regexp(t, regexp.MustCompile(`^rivulex:billing:sub:\d+$`), id)
}

func TestUnitKeys_TrimmerClientID(t *testing.T) {
	id := TrimmerClientID("billing")
	assert.Regexp(t, regexp.MustCompile(`^rivulex:billing:trimmer:\d+$`), id)
}
