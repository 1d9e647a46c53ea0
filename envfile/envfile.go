// Copyright (c) 2025 BVK Chaitanya

// Package envfile loads environment variables from a KEY=VALUE file.
//
// Blank lines and lines starting with # are ignored. An optional "export "
// prefix is accepted. Values in double quotes may use \n, \t, \" and \\
// escapes so that multi-line values, like PEM keys, fit on one line. Values in
// single quotes are taken literally. No shell expansion is performed.
package envfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
)

var nameRe = regexp.MustCompile("^[a-zA-Z][0-9a-zA-Z_]*$")

type options struct {
	searchCurrentDirectory bool

	scanParentDirectories bool

	overwriteIfExists bool
}

// Variable is a name and value pair read from an env file.
type Variable struct {
	Name  string
	Value string
}

// Parse reads all variable assignments from the input in the file order.
func Parse(r io.Reader) ([]Variable, error) {
	var vars []Variable
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 1; scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid/unrecognized variable assignment on line %d: %w", i, os.ErrInvalid)
		}
		key = strings.TrimSpace(key)
		if !nameRe.MatchString(key) {
			return nil, fmt.Errorf("invalid environment variable name %q on line %d: %w", key, i, os.ErrInvalid)
		}
		v, err := unquote(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q on line %d: %w", key, i, err)
		}
		vars = append(vars, Variable{Name: key, Value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read env file: %w", err)
	}
	return vars, nil
}

func unquote(s string) (string, error) {
	if len(s) < 2 {
		return s, nil
	}
	switch q := s[0]; {
	case q == '\'' && s[len(s)-1] == '\'':
		return s[1 : len(s)-1], nil
	case q == '"' && s[len(s)-1] == '"':
		var sb strings.Builder
		body := s[1 : len(s)-1]
		for i := 0; i < len(body); i++ {
			if body[i] != '\\' {
				sb.WriteByte(body[i])
				continue
			}
			if i++; i == len(body) {
				return "", fmt.Errorf("trailing backslash in quoted value: %w", os.ErrInvalid)
			}
			switch body[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteByte(body[i])
			default:
				return "", fmt.Errorf("unsupported escape sequence \\%c: %w", body[i], os.ErrInvalid)
			}
		}
		return sb.String(), nil
	}
	return s, nil
}

func (o *options) searchPaths(filename string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	var fpaths []string
	if o.searchCurrentDirectory {
		fpaths = []string{filepath.Join(cwd, filename)}
	}
	if o.scanParentDirectories {
		last, dir := "", filepath.Dir(cwd)
		for dir != last {
			fpaths = append(fpaths, filepath.Join(dir, filename))
			last, dir = dir, filepath.Dir(dir)
		}
	}
	if len(fpaths) == 0 {
		user, err := user.Current()
		if err != nil {
			return nil, err
		}
		if len(user.HomeDir) == 0 {
			return nil, fmt.Errorf("could not determine current user's home directory")
		}
		fpaths = []string{filepath.Join(user.HomeDir, filename)}
	}
	return fpaths, nil
}

// UpdateEnv updates current process's environment with the values read from
// the first env file found in the search path. The search path is the user's
// home directory unless changed by the input options. Returns the path of
// the file used, or empty string if no env file was found.
func UpdateEnv(filename string, opts ...Option) (string, error) {
	if strings.ContainsRune(filename, os.PathSeparator) {
		return "", fmt.Errorf("file name contains path separator: %w", os.ErrInvalid)
	}
	var fopts options
	for _, v := range opts {
		if err := v.apply(&fopts); err != nil {
			return "", err
		}
	}
	fpaths, err := fopts.searchPaths(filename)
	if err != nil {
		return "", err
	}
	for _, fpath := range fpaths {
		data, err := os.ReadFile(fpath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
			continue
		}
		vars, err := Parse(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("could not parse env file %q: %w", fpath, err)
		}
		for _, v := range vars {
			if len(os.Getenv(v.Name)) != 0 && !fopts.overwriteIfExists {
				continue
			}
			if err := os.Setenv(v.Name, v.Value); err != nil {
				return "", fmt.Errorf("could not set environment variable %q: %w", v.Name, err)
			}
		}
		return fpath, nil
	}
	return "", nil
}
