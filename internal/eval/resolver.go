package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/groundplan-io/groundplan/internal/decl"
	"github.com/groundplan-io/groundplan/internal/logging"
)

// EnvVarPrefix is the environment namespace scanned for variable values.
const EnvVarPrefix = "GP_VAR_"

// Overrides carries variable values from outside the declaration set.
// Precedence is FileValues < EnvValues < FlagValues; declared defaults
// sit below all three.
type Overrides struct {
	FileValues map[string]cty.Value
	EnvValues  map[string]string
	FlagValues map[string]string
}

// EnvOverrides extracts GP_VAR_-prefixed values from an environment
// list of KEY=value entries.
func EnvOverrides(environ []string) map[string]string {
	vals := map[string]string{}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvVarPrefix) {
			continue
		}
		rest := strings.TrimPrefix(kv, EnvVarPrefix)
		eq := strings.Index(rest, "=")
		if eq < 1 {
			continue
		}
		vals[rest[:eq]] = rest[eq+1:]
	}
	return vals
}

type valueSource string

const (
	sourceDefault valueSource = "default"
	sourceVarFile valueSource = "var-file"
	sourceEnv     valueSource = "env"
	sourceFlag    valueSource = "flag"
)

// Resolver binds a concrete value to every declared variable.
type Resolver struct {
	// Strict promotes resolve-time warnings to errors.
	Strict bool
}

// Resolve applies the override precedence and type-checks each value
// against its declared constraint. Returned diagnostics carry warnings
// such as sensitive variables falling back to their defaults; in strict
// mode those warnings become the error.
func (r *Resolver) Resolve(set *decl.Set, ov Overrides) (map[string]cty.Value, hcl.Diagnostics, error) {
	if err := rejectUndeclared(set, ov); err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(set.Variables))
	for name := range set.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]cty.Value, len(names))
	var warns hcl.Diagnostics

	for _, name := range names {
		v := set.Variables[name]
		val, source, err := resolveOne(v, ov)
		if err != nil {
			return nil, nil, err
		}
		values[name] = val

		if v.Sensitive && source == sourceDefault {
			warns = append(warns, &hcl.Diagnostic{
				Severity: hcl.DiagWarning,
				Summary:  "Sensitive variable uses its declared default",
				Detail: fmt.Sprintf("Variable %q is marked sensitive but no value was supplied, so the default written in the declaration will be emitted. Supply a value with --var, a var-file, or GP_VAR_%s.",
					name, name),
				Subject: v.DeclRange.Ptr(),
			})
		}
		logging.Debug("variable resolved", "name", name, "source", string(source))
	}

	if r.Strict && len(warns) > 0 {
		for _, w := range warns {
			w.Severity = hcl.DiagError
		}
		return nil, warns, fmt.Errorf("strict mode rejects %d warning(s): %s", len(warns), warns.Error())
	}

	return values, warns, nil
}

// rejectUndeclared fails on -var or var-file entries that name no
// declared variable. Environment values are skipped with a debug log:
// the process environment may carry GP_VAR_ entries meant for other
// declaration sets.
func rejectUndeclared(set *decl.Set, ov Overrides) error {
	for _, name := range sortedKeys(ov.FlagValues) {
		if _, ok := set.Variables[name]; !ok {
			return decl.ParseErrorf("value supplied with --var for undeclared variable %q", name)
		}
	}
	fileNames := make([]string, 0, len(ov.FileValues))
	for name := range ov.FileValues {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)
	for _, name := range fileNames {
		if _, ok := set.Variables[name]; !ok {
			return decl.ParseErrorf("var-file supplies a value for undeclared variable %q", name)
		}
	}
	for _, name := range sortedKeys(ov.EnvValues) {
		if _, ok := set.Variables[name]; !ok {
			logging.Debug("ignoring environment value for undeclared variable", "name", name)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolveOne(v *decl.Variable, ov Overrides) (cty.Value, valueSource, error) {
	if raw, ok := ov.FlagValues[v.Name]; ok {
		val, err := convertRaw(v, raw)
		return val, sourceFlag, err
	}
	if raw, ok := ov.EnvValues[v.Name]; ok {
		val, err := convertRaw(v, raw)
		return val, sourceEnv, err
	}
	if val, ok := ov.FileValues[v.Name]; ok {
		converted, err := convertValue(v, val)
		return converted, sourceVarFile, err
	}
	if !v.Required() {
		return v.Default, sourceDefault, nil
	}
	return cty.NilVal, "", &decl.UnresolvedVariableError{Name: v.Name}
}

// convertRaw turns a raw CLI or environment string into the variable's
// declared type; cty's conversions handle "true" and "42" style input.
func convertRaw(v *decl.Variable, raw string) (cty.Value, error) {
	return convertValue(v, cty.StringVal(raw))
}

func convertValue(v *decl.Variable, val cty.Value) (cty.Value, error) {
	if v.Type.Equals(cty.DynamicPseudoType) {
		return val, nil
	}
	converted, err := convert.Convert(val, v.Type)
	if err != nil {
		return cty.NilVal, decl.ParseErrorf("invalid value for variable %q: %s", v.Name, err)
	}
	return converted, nil
}
