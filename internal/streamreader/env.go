package streamreader

import (
	"os"
	"strings"
)

// safeEnvVars are the only variables forwarded to a spawned collector
// process, preventing environment injection into an externally
// configured command (grounded on the teacher's SanitizeEnv).
var safeEnvVars = map[string]bool{
	"PATH":   true,
	"HOME":   true,
	"LANG":   true,
	"LC_ALL": true,
	"TERM":   true,
	"TMPDIR": true,
}

// SanitizeEnv returns a minimal subprocess environment containing only
// the safe variables above, plus a sane PATH default if none is set.
func SanitizeEnv() []string {
	var env []string
	hasPath := false
	for _, e := range os.Environ() {
		k, _, ok := strings.Cut(e, "=")
		if ok && safeEnvVars[k] {
			env = append(env, e)
			if k == "PATH" {
				hasPath = true
			}
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	return env
}
