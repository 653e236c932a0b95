package policy

import (
	"regexp"
	"strings"
	"sync"
)

// patternCache memoizes compiled glob patterns. Policies are long-lived
// and patterns repeat across rules, so the cache is unbounded.
var patternCache = struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

// MatchPattern reports whether subject matches the glob pattern.
// '*' matches any run of characters (including none); everything else is
// literal. The entire subject must match: "task:*" matches "task:123"
// but not "xtask:1" or "task".
func MatchPattern(pattern, subject string) bool {
	if pattern == "*" {
		return true
	}
	re := compilePattern(pattern)
	return re.MatchString(subject)
}

// compilePattern translates a glob into an anchored regexp, escaping all
// regexp metacharacters except '*'.
func compilePattern(pattern string) *regexp.Regexp {
	patternCache.mu.RLock()
	re, ok := patternCache.m[pattern]
	patternCache.mu.RUnlock()
	if ok {
		return re
	}

	segments := strings.Split(pattern, "*")
	for i, seg := range segments {
		segments[i] = regexp.QuoteMeta(seg)
	}
	re = regexp.MustCompile("^" + strings.Join(segments, ".*") + "$")

	patternCache.mu.Lock()
	patternCache.m[pattern] = re
	patternCache.mu.Unlock()
	return re
}
