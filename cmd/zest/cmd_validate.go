package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/serdar/zest/internal/core/collection"
	"github.com/serdar/zest/internal/core/environment"
)

func validateCmd() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: zest validate <file.zest.yaml> [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Validate collection and environment YAML files.\n\n")
		fmt.Fprintf(os.Stderr, "If an environments.yaml exists next to the collection, it is also validated.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  zest validate api.zest.yaml\n")
		fmt.Fprintf(os.Stderr, "  zest validate *.zest.yaml\n")
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: at least one file path is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	hasErrors := false
	for _, path := range fs.Args() {
		if err := validateFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			hasErrors = true
		} else {
			fmt.Printf("OK   %s\n", path)
		}
	}

	if hasErrors {
		os.Exit(1)
	}
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	if len(data) == 0 {
		return fmt.Errorf("file is empty")
	}

	if filepath.Base(path) == "environments.yaml" {
		return validateEnvironments(path)
	}

	col, err := collection.LoadFromBytes(data)
	if err != nil {
		return err
	}

	var warnings []string

	if col.Name == "" {
		warnings = append(warnings, "missing collection name")
	}

	if countRequests(col.Items) == 0 {
		warnings = append(warnings, "collection contains no requests")
	}

	ids := make(map[string]string)
	for _, dup := range checkDuplicateIDs(col.Items, ids) {
		warnings = append(warnings, fmt.Sprintf("duplicate request ID: %s", dup))
	}

	for _, name := range checkEmptyURLs(col.Items) {
		warnings = append(warnings, fmt.Sprintf("request %q has empty URL", name))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("validation warnings:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	// Also validate environments.yaml if present
	envPath := filepath.Join(filepath.Dir(path), "environments.yaml")
	if _, err := os.Stat(envPath); err == nil {
		if err := validateEnvironments(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "WARN %s: %v\n", envPath, err)
		} else {
			fmt.Printf("OK   %s\n", envPath)
		}
	}

	return nil
}

func validateEnvironments(path string) error {
	ef, err := environment.LoadFile(path)
	if err != nil {
		return err
	}

	if len(ef.Environments) == 0 {
		return fmt.Errorf("no environments defined")
	}

	names := make(map[string]bool)
	for _, env := range ef.Environments {
		if env.Name == "" {
			return fmt.Errorf("environment has empty name")
		}
		if names[env.Name] {
			return fmt.Errorf("duplicate environment name: %s", env.Name)
		}
		names[env.Name] = true
	}

	return nil
}

func countRequests(items []collection.Item) int {
	count := 0
	for _, item := range items {
		if item.Request != nil {
			count++
		}
		if item.Folder != nil {
			count += countRequests(item.Folder.Items)
		}
	}
	return count
}

func checkDuplicateIDs(items []collection.Item, seen map[string]string) []string {
	var duplicates []string
	for _, item := range items {
		if item.Request != nil && item.Request.ID != "" {
			if prevName, exists := seen[item.Request.ID]; exists {
				duplicates = append(duplicates, fmt.Sprintf("%s (in %q and %q)", item.Request.ID, prevName, item.Request.Name))
			}
			seen[item.Request.ID] = item.Request.Name
		}
		if item.Folder != nil {
			duplicates = append(duplicates, checkDuplicateIDs(item.Folder.Items, seen)...)
		}
	}
	return duplicates
}

func checkEmptyURLs(items []collection.Item) []string {
	var empty []string
	for _, item := range items {
		if item.Request != nil && item.Request.URL == "" {
			empty = append(empty, item.Request.Name)
		}
		if item.Folder != nil {
			empty = append(empty, checkEmptyURLs(item.Folder.Items)...)
		}
	}
	return empty
}
