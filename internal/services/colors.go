package services

import "strings"

// colorCodes are the formatting codes recognized after an '&' marker.
const colorCodes = "0123456789AaBbCcDdEeFfKkLlMmNnOoRr"

// TranslateColorCodes rewrites alternate color codes (&x) into section
// markers (§x) the way host render surfaces expect. Only characters in
// colorCodes are translated; any other '&' passes through unchanged.
func TranslateColorCodes(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}

	b := []rune(s)
	for i := 0; i < len(b)-1; i++ {
		if b[i] == '&' && strings.ContainsRune(colorCodes, b[i+1]) {
			b[i] = '§'
		}
	}
	return string(b)
}
