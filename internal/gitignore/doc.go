// Package gitignore compiles gitignore-style patterns used to keep paths
// out of repository scans and watches.
//
// Supported syntax: "*", "?", "**", character classes, rooted patterns
// ("/org/acme"), directory-only patterns ("target/"), negation
// ("!keep.jar") and "#" comments. The last matching pattern wins.
//
//	m := gitignore.Compile(".index/", "*-tests.jar", "!org/acme/**")
//	if m.Match("org/acme/core/1.0/core-1.0-tests.jar", false) {
//		// skipped
//	}
package gitignore
