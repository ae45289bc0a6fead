// Package source discovers message files and picks the codec for each one.
package source

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MessageExtensions are always taken; a corrupt file among them is reported
// as a failure rather than silently skipped.
var MessageExtensions = map[string]bool{
	".hl7":   true,
	".dcm":   true,
	".dicom": true,
}

// SniffedExtensions are taken only when their content looks like a message.
// Extensionless files are sniffed too.
var SniffedExtensions = map[string]bool{
	".txt":  true,
	".json": true,
	".msg":  true,
	"":      true,
}

// ExcludedNames are filenames to skip. Hidden files are always skipped.
var ExcludedNames = map[string]bool{
	"DICOMDIR":                true,
	"Thumbs.db":               true,
	"desktop.ini":             true,
	"package.json":            true,
	"package-lock.json":       true,
	"tsconfig.json":           true,
	"composer.json":           true,
	"README":                  true,
	"LICENSE":                 true,
	"Makefile":                true,
	"deidentify-report.json":  true,
	"deidentify-preview.json": true,
	"deidentify-metrics.prom": true,
	"deidentify-errors.log":   true,
}

// ProgressFileName is the resume state file kept in the output directory.
const ProgressFileName = ".deidentify-progress.json"

// ExcludedDirs are directory names to skip entirely
var ExcludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
}

// sniffLength bounds how much of a file is read to recognise it.
const sniffLength = 4096

// FindMessageFiles returns the message files under inputPath in sorted
// order. skipDir (typically the output directory) is never entered.
func FindMessageFiles(inputPath string, recursive bool, skipDir string) ([]string, error) {
	var files []string
	skip := ""
	if skipDir != "" {
		if abs, err := filepath.Abs(skipDir); err == nil {
			skip = abs
		}
	}

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			if path == inputPath {
				return nil
			}
			if ExcludedDirs[info.Name()] || !recursive {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil && abs == skip {
				return filepath.SkipDir
			}
			return nil
		}

		name := info.Name()
		// hidden files include in-flight temp outputs
		if ExcludedNames[name] || strings.HasPrefix(name, ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case MessageExtensions[ext]:
			files = append(files, path)
		case SniffedExtensions[ext]:
			if head, err := readHead(path); err == nil && Sniff(head) != "" {
				files = append(files, path)
			}
		}
		return nil
	}

	if err := filepath.Walk(inputPath, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func readHead(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return head[:n], nil
}
