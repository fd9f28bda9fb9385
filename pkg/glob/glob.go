package glob

// Pattern is a compiled glob pattern. The zero value matches only the empty string.
type Pattern struct {
	src   string
	runes []rune
	all   bool
}

// Compile prepares pattern for repeated matching.
func Compile(pattern string) *Pattern {
	p := &Pattern{src: pattern, runes: []rune(pattern)}
	p.all = len(p.runes) > 0
	for _, r := range p.runes {
		if r != '*' {
			p.all = false
			break
		}
	}
	return p
}

// Match reports whether s matches pattern.
func Match(pattern, s string) bool {
	return Compile(pattern).Match(s)
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.src
}

// Match reports whether s matches the compiled pattern.
func (p *Pattern) Match(s string) bool {
	if p.all {
		return true
	}

	pat := p.runes
	str := []rune(s)

	// Position of the last `*` seen and the input index it is currently
	// absorbing up to; used to backtrack on mismatch.
	starP, starS := -1, 0
	pi, si := 0, 0

	for si < len(str) {
		if pi < len(pat) && p.step(pat, &pi, str[si]) {
			si++
			continue
		}
		if pi < len(pat) && pat[pi] == '*' {
			starP, starS = pi, si
			pi++
			continue
		}
		if starP < 0 {
			return false
		}
		starS++
		pi, si = starP+1, starS
	}

	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}

// step tries to consume one input rune c at pattern position *pi.
// On success it advances *pi past the consumed pattern element.
func (p *Pattern) step(pat []rune, pi *int, c rune) bool {
	switch pat[*pi] {
	case '*':
		return false
	case '?':
		*pi++
		return true
	case '[':
		matched, next, ok := matchClass(pat, *pi, c)
		if !ok {
			// Unterminated class: treat `[` literally.
			if c == '[' {
				*pi++
				return true
			}
			return false
		}
		if matched {
			*pi = next
		}
		return matched
	default:
		if pat[*pi] == c {
			*pi++
			return true
		}
		return false
	}
}

// matchClass evaluates the character class starting at pat[start] == '['.
// It returns whether c is matched, the index just past the closing `]`,
// and ok=false if the class is not terminated.
func matchClass(pat []rune, start int, c rune) (matched bool, next int, ok bool) {
	i := start + 1
	negate := false
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		negate = true
		i++
	}

	first := true
	for i < len(pat) {
		if pat[i] == ']' && !first {
			return matched != negate, i + 1, true
		}
		first = false

		lo := pat[i]
		if i+2 < len(pat) && pat[i+1] == '-' && pat[i+2] != ']' {
			hi := pat[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 3
			continue
		}
		if lo == c {
			matched = true
		}
		i++
	}
	return false, 0, false
}
