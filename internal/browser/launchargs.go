package browser

import (
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// accessibilityFeature exposes Element.computedName to page scripts.
const accessibilityFeature = "ComputedAccessibilityInfo"

const blinkFeaturesFlag = "--enable-blink-features="

// LaunchArgs returns args with ComputedAccessibilityInfo enabled. An
// existing --enable-blink-features value is extended, otherwise the flag is
// appended. args is never modified.
func LaunchArgs(args []string) []string {
	for i, a := range args {
		if !strings.HasPrefix(a, blinkFeaturesFlag) {
			continue
		}
		if strings.Contains(a, accessibilityFeature) {
			return args
		}
		out := append([]string(nil), args...)
		out[i] += "," + accessibilityFeature
		return out
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args...)
	return append(out, blinkFeaturesFlag+accessibilityFeature)
}

// applyArgs sets command line switches on l. Each arg is "--name" or
// "--name=value".
func applyArgs(l *launcher.Launcher, args []string) *launcher.Launcher {
	for _, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}
