// Package pipeline implements the Pipeline DSL (C6) and the LLM→Pipeline
// Bridge (C7): a small set of composable shell-fragment operations plus the
// safety validation every assembled command passes through before running.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// OpKind tags a BaseOperation's concrete type.
type OpKind string

const (
	OpFindFiles   OpKind = "FindFiles"
	OpListFiles   OpKind = "ListFiles"
	OpDiskUsage   OpKind = "DiskUsage"
	OpSortFiles   OpKind = "SortFiles"
	OpLimitFiles  OpKind = "LimitFiles"
	OpFilterFiles OpKind = "FilterFiles"
)

// sourceOps are the operations valid as the first element of a plan.
var sourceOps = map[OpKind]bool{
	OpFindFiles: true,
	OpListFiles: true,
	OpDiskUsage: true,
}

// BaseOperation is one stage of a pipeline. Fields not relevant to Kind are
// left zero.
type BaseOperation struct {
	Kind OpKind

	// FindFiles / ListFiles / DiskUsage
	Path    string
	Pattern string // FindFiles only

	// SortFiles
	Field     string // "size" | "time" | "name" | "" (default)
	Direction string // "asc" | "desc" ("" defaults to desc)

	// LimitFiles
	Count int

	// FilterFiles
	Condition string
}

// ToShellFragment renders one operation's shell-fragment per §4.5's mapping.
func (op BaseOperation) ToShellFragment() string {
	switch op.Kind {
	case OpFindFiles:
		return fmt.Sprintf("find %s -name '%s' -type f -exec ls -lh {} +", op.Path, op.Pattern)
	case OpListFiles:
		return fmt.Sprintf("ls -lh %s", op.Path)
	case OpDiskUsage:
		return fmt.Sprintf("du -sh %s/*", op.Path)
	case OpSortFiles:
		col := ""
		switch op.Field {
		case "size":
			col = "5"
		case "time":
			col = "6"
		case "name":
			col = "9"
		}
		flag := "-hr"
		if op.Direction == "asc" {
			flag = "-h"
		}
		if col != "" {
			return fmt.Sprintf("sort -k%s %s", col, flag)
		}
		return fmt.Sprintf("sort %s", flag)
	case OpLimitFiles:
		return fmt.Sprintf("head -n %d", op.Count)
	case OpFilterFiles:
		return fmt.Sprintf("grep '%s'", op.Condition)
	default:
		return ""
	}
}

// ExecutionPlan is an ordered list of operations (C6).
type ExecutionPlan struct {
	Operations []BaseOperation
}

// ToShellCommand joins every operation's fragment with " | ", in order.
func (p ExecutionPlan) ToShellCommand() string {
	fragments := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		fragments[i] = op.ToShellFragment()
	}
	return strings.Join(fragments, " | ")
}

// Validate requires at least one operation, and that the first is a source.
func (p ExecutionPlan) Validate() error {
	if len(p.Operations) == 0 {
		return fmt.Errorf("execution plan has no operations")
	}
	if !sourceOps[p.Operations[0].Kind] {
		return fmt.Errorf("first operation %s is not a valid source (must be FindFiles, ListFiles, or DiskUsage)", p.Operations[0].Kind)
	}
	return nil
}

var controlCharRe = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)

const unsafePathChars = "$`;|&><\n\r"

var dangerousCommands = []string{
	"rm -rf /",
	":(){ :|:& };:",
	"> /dev/sda",
	"mkfs",
	"dd if=",
}

// ValidateSafety rejects: any path containing "..", a path equal to "/", a
// path containing a shell metacharacter, a resulting command over 1000
// chars, or a command containing any of the known-dangerous substrings.
func (p ExecutionPlan) ValidateSafety() error {
	for _, op := range p.Operations {
		if op.Path == "" {
			continue
		}
		if strings.Contains(op.Path, "..") {
			return fmt.Errorf("path %q contains '..'", op.Path)
		}
		if op.Path == "/" {
			return fmt.Errorf("path must not be '/'")
		}
		if strings.ContainsAny(op.Path, unsafePathChars) {
			return fmt.Errorf("path %q contains a shell metacharacter", op.Path)
		}
		if controlCharRe.MatchString(op.Path) || controlCharRe.MatchString(op.Pattern) ||
			controlCharRe.MatchString(op.Condition) {
			return fmt.Errorf("operation contains a control character in a string parameter")
		}
	}

	cmd := p.ToShellCommand()
	if len(cmd) > 1000 {
		return fmt.Errorf("resulting command exceeds 1000 characters")
	}
	for _, bad := range dangerousCommands {
		if strings.Contains(cmd, bad) {
			return fmt.Errorf("command contains dangerous fragment %q", bad)
		}
	}
	return nil
}
