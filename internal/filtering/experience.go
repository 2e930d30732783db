package filtering

import (
	"regexp"
	"strconv"
)

// MaxPlausibleExperience is the largest requirement taken at face value.
const MaxPlausibleExperience = 12

// experiencePattern matches "5 years", "3-5 years", "(5+) years" and
// "5 to 7 years", capturing the lower bound.
var experiencePattern = regexp.MustCompile(`(?i)[(]?\s*(\d+)\s*[)]?\s*(?:(?:-|to)\s*\d+\s*)?[+]?\s*[)]?\s*years?`)

// ExtractExperience returns the largest plausible years-of-experience
// requirement mentioned in text.
func ExtractExperience(text string) (int, bool) {
	best := -1
	for _, m := range experiencePattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > MaxPlausibleExperience {
			continue
		}
		if n > best {
			best = n
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}
