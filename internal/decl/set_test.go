package decl

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func declRange(filename string, line int) hcl.Range {
	pos := hcl.Pos{Line: line, Column: 1, Byte: 0}
	return hcl.Range{Filename: filename, Start: pos, End: pos}
}

func TestBuildSet_MergesFiles(t *testing.T) {
	files := []*File{
		{
			Variables: []*Variable{
				{Name: "project", Type: cty.String, DeclRange: declRange("variables.hcl", 1)},
				{Name: "region", Type: cty.String, Default: cty.StringVal("us-central1"), DeclRange: declRange("variables.hcl", 6)},
			},
		},
		{
			Locals: []*Local{
				{Name: "data_lake_bucket", DeclRange: declRange("main.hcl", 1)},
			},
			Resources: []*Resource{
				{Type: "google_storage_bucket", Name: "data_lake_bucket", DeclRange: declRange("main.hcl", 5)},
				{Type: "google_bigquery_dataset", Name: "dataset", DeclRange: declRange("main.hcl", 20)},
			},
			Backends: []*Backend{
				{Type: "local", Settings: map[string]string{"path": ".groundplan/state"}, DeclRange: declRange("main.hcl", 30)},
			},
		},
	}

	set, err := BuildSet(files)
	require.NoError(t, err)

	assert.Len(t, set.Variables, 2)
	assert.Len(t, set.Locals, 1)
	require.Len(t, set.Resources, 2)
	assert.Equal(t, "google_storage_bucket.data_lake_bucket", set.Resources[0].Address())

	r, ok := set.Resource("google_bigquery_dataset.dataset")
	require.True(t, ok)
	assert.Equal(t, "dataset", r.Name)

	require.NotNil(t, set.Backend)
	assert.Equal(t, "local", set.Backend.Type)

	assert.True(t, set.HasResourceType("google_storage_bucket"))
	assert.False(t, set.HasResourceType("google_sql_database_instance"))
}

func TestBuildSet_DuplicateVariable(t *testing.T) {
	files := []*File{
		{Variables: []*Variable{{Name: "project", DeclRange: declRange("a.hcl", 1)}}},
		{Variables: []*Variable{{Name: "project", DeclRange: declRange("b.hcl", 1)}}},
	}

	_, err := BuildSet(files)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), `variable "project" already declared`)
	assert.Contains(t, parseErr.Error(), "a.hcl")
}

func TestBuildSet_DuplicateResourceAddress(t *testing.T) {
	files := []*File{
		{Resources: []*Resource{
			{Type: "google_storage_bucket", Name: "data", DeclRange: declRange("a.hcl", 1)},
			{Type: "google_storage_bucket", Name: "data", DeclRange: declRange("a.hcl", 9)},
		}},
	}

	_, err := BuildSet(files)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), `resource "google_storage_bucket.data" already declared`)
}

func TestBuildSet_SameNameDifferentTypeAllowed(t *testing.T) {
	files := []*File{
		{Resources: []*Resource{
			{Type: "google_storage_bucket", Name: "primary", DeclRange: declRange("a.hcl", 1)},
			{Type: "google_bigquery_dataset", Name: "primary", DeclRange: declRange("a.hcl", 9)},
		}},
	}

	set, err := BuildSet(files)
	require.NoError(t, err)
	assert.Len(t, set.Resources, 2)
}

func TestBuildSet_DuplicateLocal(t *testing.T) {
	files := []*File{
		{Locals: []*Local{{Name: "bucket", DeclRange: declRange("a.hcl", 2)}}},
		{Locals: []*Local{{Name: "bucket", DeclRange: declRange("b.hcl", 3)}}},
	}

	_, err := BuildSet(files)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), `local "bucket" already declared`)
}

func TestBuildSet_SecondBackendRejected(t *testing.T) {
	files := []*File{
		{Backends: []*Backend{{Type: "local", DeclRange: declRange("a.hcl", 1)}}},
		{Backends: []*Backend{{Type: "s3", DeclRange: declRange("b.hcl", 1)}}},
	}

	_, err := BuildSet(files)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "duplicate backend block")
}

func TestVariable_Required(t *testing.T) {
	withDefault := &Variable{Name: "region", Default: cty.StringVal("us-central1")}
	withoutDefault := &Variable{Name: "project"}

	assert.False(t, withDefault.Required())
	assert.True(t, withoutDefault.Required())
}
