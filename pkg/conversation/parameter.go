package conversation

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// ValidationRuleKind tags the concrete variant of a ValidationRule.
type ValidationRuleKind string

const (
	RuleIntRange        ValidationRuleKind = "IntRange"
	RuleFloatRange       ValidationRuleKind = "FloatRange"
	RuleStringLength     ValidationRuleKind = "StringLength"
	RuleRegex            ValidationRuleKind = "Regex"
	RulePathExists       ValidationRuleKind = "PathExists"
	RuleDirectoryExists  ValidationRuleKind = "DirectoryExists"
	RuleFileExists       ValidationRuleKind = "FileExists"
	RuleCustom           ValidationRuleKind = "Custom"
)

// ValidationRule checks one constraint against a raw string value (§4.12).
type ValidationRule struct {
	Kind ValidationRuleKind

	// IntRange / FloatRange
	Min float64
	Max float64

	// StringLength
	MinLen int
	MaxLen int

	// Regex
	Pattern *regexp.Regexp

	// Custom
	Check func(value string) error
}

// Validate applies the rule to value, returning a human-readable error on
// failure.
func (r ValidationRule) Validate(value string) error {
	switch r.Kind {
	case RuleIntRange:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not an integer", value)
		}
		if float64(n) < r.Min || float64(n) > r.Max {
			return fmt.Errorf("%d is out of range [%g, %g]", n, r.Min, r.Max)
		}
	case RuleFloatRange:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", value)
		}
		if f < r.Min || f > r.Max {
			return fmt.Errorf("%g is out of range [%g, %g]", f, r.Min, r.Max)
		}
	case RuleStringLength:
		n := len(value)
		if n < r.MinLen || (r.MaxLen > 0 && n > r.MaxLen) {
			return fmt.Errorf("length %d is out of range [%d, %d]", n, r.MinLen, r.MaxLen)
		}
	case RuleRegex:
		if r.Pattern != nil && !r.Pattern.MatchString(value) {
			return fmt.Errorf("%q does not match required pattern %s", value, r.Pattern.String())
		}
	case RulePathExists:
		if _, err := os.Stat(value); err != nil {
			return fmt.Errorf("path %q does not exist", value)
		}
	case RuleDirectoryExists:
		info, err := os.Stat(value)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("directory %q does not exist", value)
		}
	case RuleFileExists:
		info, err := os.Stat(value)
		if err != nil || info.IsDir() {
			return fmt.Errorf("file %q does not exist", value)
		}
	case RuleCustom:
		if r.Check != nil {
			return r.Check(value)
		}
	}
	return nil
}

// ParameterSpec describes one parameter a conversation needs collected and
// how to validate it, per §4.12.
type ParameterSpec struct {
	Name        string
	Description string
	Hint        string
	Default     string
	Required    bool
	Rules       []ValidationRule
}

// Validate runs every rule in order, returning the first failure.
func (s ParameterSpec) Validate(value string) error {
	for _, rule := range s.Rules {
		if err := rule.Validate(value); err != nil {
			return err
		}
	}
	return nil
}

// ParameterValue is a collected, raw-string parameter value.
type ParameterValue struct {
	Name  string
	Value string
}

// AskForParameter is what the manager hands back to the caller when it needs
// the next parameter collected interactively.
type AskForParameter struct {
	Name        string
	Description string
	Hint        string
	Default     string
}
