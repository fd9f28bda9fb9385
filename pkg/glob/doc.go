// Package glob implements shell-style wildcard matching for key names.
//
// Supported syntax:
//
//   - `*` matches any run of characters, including the empty run
//   - `?` matches exactly one character
//   - `[seq]` matches one character in seq; ranges such as `a-z` are allowed
//   - `[!seq]` (or `[^seq]`) matches one character not in seq
//
// Matching is case-sensitive and works on runes. There is no escape
// character: a `[` without a closing `]` matches a literal `[`.
//
// Usage:
//
//	p := glob.Compile("user:*")
//	p.Match("user:42") // true
package glob
