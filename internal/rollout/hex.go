package rollout

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// tokenAttempts is how many 4-char candidates are tried before widening the
// token. With 65536 values the 4-char space can fill up under heavy churn.
const tokenAttempts = 64

// newTokenSource returns random lowercase hex. Swapped out in tests.
var newTokenSource = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// generationToken picks a short hex token so that new instance names under
// {service}_{group}_{token}_ cannot collide with any existing instance name.
func generationToken(service, group string, existingNames []string) string {
	width := 4
	for attempt := 0; ; attempt++ {
		if attempt >= tokenAttempts {
			width = 6
		}
		token := newTokenSource()[:width]
		prefix := fmt.Sprintf("%s_%s_%s_", service, group, token)
		if !anyHasPrefix(existingNames, prefix) {
			return token
		}
	}
}

func anyHasPrefix(names []string, prefix string) bool {
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
