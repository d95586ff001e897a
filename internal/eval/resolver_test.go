package eval

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/groundplan-io/groundplan/internal/decl"
)

func testSet(t *testing.T, vars ...*decl.Variable) *decl.Set {
	t.Helper()
	set, err := decl.BuildSet([]*decl.File{{Variables: vars}})
	require.NoError(t, err)
	return set
}

func TestResolve_Defaults(t *testing.T) {
	set := testSet(t,
		&decl.Variable{Name: "region", Type: cty.String, Default: cty.StringVal("us-central1")},
		&decl.Variable{Name: "storage_class", Type: cty.String, Default: cty.StringVal("STANDARD")},
	)

	values, warns, err := (&Resolver{}).Resolve(set, Overrides{})
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, "us-central1", values["region"].AsString())
	assert.Equal(t, "STANDARD", values["storage_class"].AsString())
}

func TestResolve_MissingRequired(t *testing.T) {
	set := testSet(t, &decl.Variable{Name: "project", Type: cty.String})

	_, _, err := (&Resolver{}).Resolve(set, Overrides{})

	var unresolved *decl.UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "project", unresolved.Name)
	assert.Contains(t, err.Error(), "GP_VAR_project")
}

func TestResolve_Precedence(t *testing.T) {
	set := testSet(t, &decl.Variable{Name: "region", Type: cty.String, Default: cty.StringVal("us-central1")})

	ov := Overrides{
		FileValues: map[string]cty.Value{"region": cty.StringVal("from-file")},
		EnvValues:  map[string]string{"region": "from-env"},
		FlagValues: map[string]string{"region": "from-flag"},
	}

	values, _, err := (&Resolver{}).Resolve(set, ov)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", values["region"].AsString())

	delete(ov.FlagValues, "region")
	values, _, err = (&Resolver{}).Resolve(set, ov)
	require.NoError(t, err)
	assert.Equal(t, "from-env", values["region"].AsString())

	delete(ov.EnvValues, "region")
	values, _, err = (&Resolver{}).Resolve(set, ov)
	require.NoError(t, err)
	assert.Equal(t, "from-file", values["region"].AsString())

	delete(ov.FileValues, "region")
	values, _, err = (&Resolver{}).Resolve(set, ov)
	require.NoError(t, err)
	assert.Equal(t, "us-central1", values["region"].AsString())
}

func TestResolve_ConvertsRawStrings(t *testing.T) {
	set := testSet(t,
		&decl.Variable{Name: "node_count", Type: cty.Number},
		&decl.Variable{Name: "versioned", Type: cty.Bool},
	)

	values, _, err := (&Resolver{}).Resolve(set, Overrides{
		FlagValues: map[string]string{"node_count": "3", "versioned": "true"},
	})
	require.NoError(t, err)

	count, _ := values["node_count"].AsBigFloat().Int64()
	assert.Equal(t, int64(3), count)
	assert.True(t, values["versioned"].True())
}

func TestResolve_BadConversion(t *testing.T) {
	set := testSet(t, &decl.Variable{Name: "node_count", Type: cty.Number})

	_, _, err := (&Resolver{}).Resolve(set, Overrides{
		FlagValues: map[string]string{"node_count": "many"},
	})

	var parseErr *decl.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "node_count")
}

func TestResolve_SensitiveDefaultWarns(t *testing.T) {
	set := testSet(t,
		&decl.Variable{Name: "user_password", Type: cty.String, Default: cty.StringVal("mlflow-pass"), Sensitive: true},
	)

	values, warns, err := (&Resolver{}).Resolve(set, Overrides{})
	require.NoError(t, err)

	// The default still resolves; the warning only flags it.
	assert.Equal(t, "mlflow-pass", values["user_password"].AsString())
	require.Len(t, warns, 1)
	assert.Equal(t, hcl.DiagWarning, warns[0].Severity)
	assert.Contains(t, warns[0].Detail, "user_password")
}

func TestResolve_SensitiveOverrideSilent(t *testing.T) {
	set := testSet(t,
		&decl.Variable{Name: "user_password", Type: cty.String, Default: cty.StringVal("mlflow-pass"), Sensitive: true},
	)

	_, warns, err := (&Resolver{}).Resolve(set, Overrides{
		EnvValues: map[string]string{"user_password": "injected"},
	})
	require.NoError(t, err)
	assert.Empty(t, warns)
}

func TestResolve_StrictPromotesWarnings(t *testing.T) {
	set := testSet(t,
		&decl.Variable{Name: "user_password", Type: cty.String, Default: cty.StringVal("mlflow-pass"), Sensitive: true},
	)

	_, diags, err := (&Resolver{Strict: true}).Resolve(set, Overrides{})
	require.Error(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, hcl.DiagError, diags[0].Severity)
}

func TestResolve_UndeclaredFlagRejected(t *testing.T) {
	set := testSet(t, &decl.Variable{Name: "region", Type: cty.String, Default: cty.StringVal("us-central1")})

	_, _, err := (&Resolver{}).Resolve(set, Overrides{
		FlagValues: map[string]string{"regoin": "typo"},
	})

	var parseErr *decl.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "regoin")
}

func TestResolve_UndeclaredEnvIgnored(t *testing.T) {
	set := testSet(t, &decl.Variable{Name: "region", Type: cty.String, Default: cty.StringVal("us-central1")})

	values, _, err := (&Resolver{}).Resolve(set, Overrides{
		EnvValues: map[string]string{"unrelated": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "us-central1", values["region"].AsString())
}

func TestEnvOverrides(t *testing.T) {
	environ := []string{
		"PATH=/usr/bin",
		"GP_VAR_project=acme",
		"GP_VAR_db_name=mlflow",
		"GP_VAR_=no-name",
		"GP_VAR_broken",
	}

	vals := EnvOverrides(environ)
	assert.Equal(t, map[string]string{
		"project": "acme",
		"db_name": "mlflow",
	}, vals)
}

func TestParseVarFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"prod.hclvars.hcl": `
project = "acme-prod"
region  = "europe-west1"
`,
	})

	vals, err := ParseVarFile(dir + "/prod.hclvars.hcl")
	require.NoError(t, err)
	assert.Equal(t, "acme-prod", vals["project"].AsString())
	assert.Equal(t, "europe-west1", vals["region"].AsString())
}

func TestParseVarFile_Missing(t *testing.T) {
	_, err := ParseVarFile(t.TempDir() + "/absent.hcl")

	var fnf *decl.FileNotFoundError
	require.ErrorAs(t, err, &fnf)
}

func TestParseVarFile_RejectsReferences(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"vars.hcl": `project = var.other`,
	})

	_, err := ParseVarFile(dir + "/vars.hcl")
	var parseErr *decl.ParseError
	require.ErrorAs(t, err, &parseErr)
}
