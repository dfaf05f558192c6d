package featureflags

import (
	"log/slog"
	"os"
	"sort"
	"strings"
)

// StrictTokenDecode makes undecodable tokens count as expiring
const StrictTokenDecode = "strict_token_decode"

// Known lists every flag the console reads
var Known = []string{StrictTokenDecode}

// Set is a snapshot of flag values taken once at startup
type Set map[string]bool

// FromEnv reads every known flag from FLAG_<NAME>
func FromEnv() Set {
	return Load(os.LookupEnv)
}

// Load reads every known flag through lookup
func Load(lookup func(string) (string, bool)) Set {
	s := make(Set, len(Known))
	for _, name := range Known {
		v, _ := lookup(envKey(name))
		s[name] = truthy(v)
	}
	return s
}

// Enabled reports whether name is on in the snapshot
func (s Set) Enabled(name string) bool {
	return s[name]
}

// LogValue lists the enabled flags
func (s Set) LogValue() slog.Value {
	on := make([]string, 0, len(s))
	for name, v := range s {
		if v {
			on = append(on, name)
		}
	}
	sort.Strings(on)
	return slog.StringValue(strings.Join(on, ","))
}

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes/on (case-insensitive)
func Enabled(name string) bool {
	return truthy(os.Getenv(envKey(name)))
}

func envKey(name string) string {
	return "FLAG_" + strings.ToUpper(name)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
