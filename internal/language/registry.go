// Package language holds the static table of supported languages: the
// source filename each expects, how to compile and run it, and the
// resource-limit ceilings request validation consults.
//
// This mirrors the registration style of apex-build's
// internal/execution/runner.go (a package-level map built at init, looked
// up by a normalized key) but holds data, not polymorphic Runner
// implementations — the judge core has no per-language behavior beyond
// argv shape and limits.
package language

import (
	"fmt"
	"strings"
)

// Descriptor describes how to compile (optionally) and run one language
// inside a sandbox box. Argv templates use {source} for the materialized
// source file and {binary} for a compiled artifact; both are resolved
// relative to the box's working directory.
type Descriptor struct {
	Key               string
	SourceFilename    string
	CompileCmd        []string // nil for interpreted languages
	RunCmd            []string
	DefaultTimeLimit  float64 // seconds
	DefaultMemLimit   int     // MB
	MaxTimeLimit      float64 // seconds
	MaxMemLimit       int     // MB
	CompileTimeLimit  float64 // seconds
}

// Limits is a (time, memory) ceiling pair.
type Limits struct {
	TimeLimit float64 // seconds
	MemLimit  int     // MB
}

// MaxLimits is the hard ceiling any request may ever ask for, regardless
// of language. DefaultLimits is a generic (time, memory) pair; a request
// that omits a limit gets its Descriptor's DefaultTimeLimit/DefaultMemLimit
// instead, not DefaultLimits.
var (
	MaxLimits = Limits{TimeLimit: 20, MemLimit: 1024}
	DefaultLimits = Limits{TimeLimit: 2, MemLimit: 256}
)

// UnsupportedLanguage is returned by Get for an unknown key.
type UnsupportedLanguage struct {
	Key string
}

func (e *UnsupportedLanguage) Error() string {
	return fmt.Sprintf("unsupported language: %s", e.Key)
}

var registry = make(map[string]Descriptor)

func register(d Descriptor) {
	registry[d.Key] = d
}

// aliases maps loose user-facing spellings onto registry keys, following
// apex-build's GetRunner alias table.
var aliases = map[string]string{
	"js":        "javascript",
	"node":      "javascript",
	"nodejs":    "javascript",
	"py":        "python",
	"python3":   "python",
	"golang":    "go",
	"rs":        "rust",
	"c++":       "cpp",
	"cplusplus": "cpp",
	"rb":        "ruby",
}

// Get looks up a language descriptor by key, resolving common aliases.
func Get(key string) (Descriptor, error) {
	key = strings.ToLower(strings.TrimSpace(key))

	if d, ok := registry[key]; ok {
		return d, nil
	}
	if alias, ok := aliases[key]; ok {
		if d, ok := registry[alias]; ok {
			return d, nil
		}
	}
	return Descriptor{}, &UnsupportedLanguage{Key: key}
}

// Keys returns the registered language keys (aliases excluded), for
// surfacing in /submissions validation errors or CLI help.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	return keys
}

func init() {
	register(Descriptor{
		Key:              "python",
		SourceFilename:   "main.py",
		RunCmd:           []string{"/usr/bin/python3", "-u", "{source}"},
		DefaultTimeLimit: 2, DefaultMemLimit: 256,
		MaxTimeLimit: 10, MaxMemLimit: 512,
		CompileTimeLimit: 0,
	})
	register(Descriptor{
		Key:              "javascript",
		SourceFilename:   "main.js",
		RunCmd:           []string{"/usr/bin/node", "{source}"},
		DefaultTimeLimit: 2, DefaultMemLimit: 256,
		MaxTimeLimit: 10, MaxMemLimit: 512,
	})
	register(Descriptor{
		Key:              "ruby",
		SourceFilename:   "main.rb",
		RunCmd:           []string{"/usr/bin/ruby", "{source}"},
		DefaultTimeLimit: 2, DefaultMemLimit: 256,
		MaxTimeLimit: 10, MaxMemLimit: 512,
	})
	register(Descriptor{
		Key:              "php",
		SourceFilename:   "main.php",
		RunCmd:           []string{"/usr/bin/php", "{source}"},
		DefaultTimeLimit: 2, DefaultMemLimit: 256,
		MaxTimeLimit: 10, MaxMemLimit: 512,
	})
	register(Descriptor{
		Key:            "c",
		SourceFilename: "main.c",
		CompileCmd:     []string{"/usr/bin/gcc", "-o", "{binary}", "-O2", "-Wall", "{source}", "-lm"},
		RunCmd:         []string{"{binary}"},
		DefaultTimeLimit: 1, DefaultMemLimit: 128,
		MaxTimeLimit: 10, MaxMemLimit: 512,
		CompileTimeLimit: 30,
	})
	register(Descriptor{
		Key:            "cpp",
		SourceFilename: "main.cpp",
		CompileCmd:     []string{"/usr/bin/g++", "-o", "{binary}", "-O2", "-std=c++17", "-Wall", "{source}"},
		RunCmd:         []string{"{binary}"},
		DefaultTimeLimit: 1, DefaultMemLimit: 128,
		MaxTimeLimit: 10, MaxMemLimit: 512,
		CompileTimeLimit: 30,
	})
	register(Descriptor{
		Key:            "go",
		SourceFilename: "main.go",
		CompileCmd:     []string{"/usr/bin/go", "build", "-o", "{binary}", "{source}"},
		RunCmd:         []string{"{binary}"},
		DefaultTimeLimit: 2, DefaultMemLimit: 256,
		MaxTimeLimit: 10, MaxMemLimit: 512,
		CompileTimeLimit: 30,
	})
	register(Descriptor{
		Key:            "rust",
		SourceFilename: "main.rs",
		CompileCmd:     []string{"/usr/bin/rustc", "-O", "-o", "{binary}", "{source}"},
		RunCmd:         []string{"{binary}"},
		DefaultTimeLimit: 2, DefaultMemLimit: 256,
		MaxTimeLimit: 10, MaxMemLimit: 512,
		CompileTimeLimit: 30,
	})
	register(Descriptor{
		Key:            "java",
		SourceFilename: "Main.java",
		CompileCmd:     []string{"/usr/bin/javac", "-d", ".", "{source}"},
		RunCmd:         []string{"/usr/bin/java", "-cp", ".", "Main"},
		DefaultTimeLimit: 3, DefaultMemLimit: 256,
		MaxTimeLimit: 15, MaxMemLimit: 768,
		CompileTimeLimit: 30,
	})
}
