// Package validator loads and checks test script files before execution.
// Every file is compiled up front so that no browser is started for a run
// that contains an invalid script.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/keyword-runner/pkg/script"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of script files in execution order.
	Files []string
	// Scripts holds the compiled scripts of every valid file, in order.
	Scripts []*script.Script
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates script files.
type Validator struct {
	locators   script.LocatorMap
	opts       script.Options
	includeIDs []string
	excludeIDs []string
	skip       map[string]bool
}

// New creates a new Validator. includeIDs and excludeIDs are glob
// patterns matched against test-case IDs.
func New(locators script.LocatorMap, opts script.Options, includeIDs, excludeIDs []string) *Validator {
	return &Validator{
		locators:   locators,
		opts:       opts,
		includeIDs: includeIDs,
		excludeIDs: excludeIDs,
		skip:       make(map[string]bool),
	}
}

// Skip excludes files from directory scans (the locator map, the config).
func (v *Validator) Skip(paths ...string) {
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			v.skip[abs] = true
		}
	}
}

// Validate validates files and directories. Directories are scanned
// recursively for workbooks and YAML scripts.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = v.collectScriptFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			v.validateFile(file, result)
		}
	}

	return result
}

// IsScriptFile reports whether path has a script extension.
func IsScriptFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(path), "~$") // Excel lock files
	}
	return false
}

// collectScriptFiles finds all script files in a directory, sorted by path.
func (v *Validator) collectScriptFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsScriptFile(path) {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && v.skip[abs] {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, err
}

// validateFile compiles every script in a file. A single invalid script
// rejects the whole file.
func (v *Validator) validateFile(file string, result *Result) {
	scripts, err := script.LoadFile(file, v.locators, v.opts)
	if err != nil {
		result.Errors = append(result.Errors, flatten(err)...)
		return
	}

	result.Files = append(result.Files, file)
	for _, s := range scripts {
		if v.included(s.TestCaseID) {
			result.Scripts = append(result.Scripts, s)
		}
	}
}

// included applies the test-case ID filters.
func (v *Validator) included(id string) bool {
	for _, pattern := range v.excludeIDs {
		if match(pattern, id) {
			return false
		}
	}
	if len(v.includeIDs) == 0 {
		return true
	}
	for _, pattern := range v.includeIDs {
		if match(pattern, id) {
			return true
		}
	}
	return false
}

func match(pattern, id string) bool {
	ok, err := filepath.Match(pattern, id)
	return err == nil && ok || pattern == id
}

// flatten splits errors joined with errors.Join into their parts.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
