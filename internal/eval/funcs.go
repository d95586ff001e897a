package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"golang.org/x/crypto/ssh"

	"github.com/groundplan-io/groundplan/internal/decl"
)

// FileErrorLog collects typed file-access failures raised inside
// interpolation functions. HCL diagnostics flatten wrapped errors to
// text, so the typed values are kept here for the caller to inspect
// after evaluation.
type FileErrorLog struct {
	errs []*decl.FileNotFoundError
}

// Record stores a failed read and returns the typed error for the
// function implementation to raise.
func (l *FileErrorLog) Record(path string, err error) error {
	fnf := &decl.FileNotFoundError{Path: path, Err: err}
	l.errs = append(l.errs, fnf)
	return fnf
}

// First returns the earliest recorded failure, or nil.
func (l *FileErrorLog) First() *decl.FileNotFoundError {
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs[0]
}

// Reset clears recorded failures between evaluations.
func (l *FileErrorLog) Reset() {
	l.errs = nil
}

// Functions builds the interpolation function table. Relative paths
// passed to file-reading functions resolve against baseDir, the
// directory holding the declaration files.
func Functions(baseDir string, errlog *FileErrorLog) map[string]function.Function {
	return map[string]function.Function{
		"file":         fileFunc(baseDir, errlog),
		"pathexpand":   pathExpandFunc(),
		"sshpublickey": sshPublicKeyFunc(baseDir, errlog),

		"upper":     stdlib.UpperFunc,
		"lower":     stdlib.LowerFunc,
		"join":      stdlib.JoinFunc,
		"split":     stdlib.SplitFunc,
		"replace":   stdlib.ReplaceFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"format":    stdlib.FormatFunc,
		"concat":    stdlib.ConcatFunc,
		"length":    stdlib.LengthFunc,
		"coalesce":  stdlib.CoalesceFunc,
	}
}

func fileFunc(baseDir string, errlog *FileErrorLog) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			path, err := expandPath(baseDir, args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return cty.NilVal, errlog.Record(path, err)
			}
			return cty.StringVal(string(data)), nil
		},
	})
}

func pathExpandFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			expanded, err := expandTilde(args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(expanded), nil
		},
	})
}

// sshPublicKeyFunc reads and validates an OpenSSH authorized_keys line,
// returning it in canonical single-line form with the comment kept.
func sshPublicKeyFunc(baseDir string, errlog *FileErrorLog) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			path, err := expandPath(baseDir, args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return cty.NilVal, errlog.Record(path, err)
			}
			key, comment, _, _, err := ssh.ParseAuthorizedKey(data)
			if err != nil {
				return cty.NilVal, fmt.Errorf("%s is not a valid OpenSSH public key: %w", path, err)
			}
			line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
			if comment != "" {
				line = line + " " + comment
			}
			return cty.StringVal(line), nil
		},
	})
}

func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand %q: %w", path, err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

func expandPath(baseDir, path string) (string, error) {
	expanded, err := expandTilde(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Join(baseDir, expanded), nil
}
