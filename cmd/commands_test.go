//go:build !integration

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/schemaproof/internal/corpus"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/solver"
	"github.com/sells-group/schemaproof/internal/store"
)

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "jan.csv", "id,amount\n1,10.5\n")
	writeTestFile(t, dir, "feb.csv", "amount,id\n2.5,2\n")
	writeTestFile(t, dir, "empty.csv", "")

	out, err := execute(t, "scan", dir)
	require.NoError(t, err)

	var rep corpus.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Files, 3)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Groups, 1)
	assert.Len(t, rep.Groups[0].Files, 2)
}

func TestScanCommand_YAML(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.csv", "id\n1\n")

	out, err := execute(t, "scan", "-o", "yaml", dir)
	require.NoError(t, err)

	var rep struct {
		Files []struct {
			Path string `yaml:"path"`
		} `yaml:"files"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Files, 1)
	assert.Equal(t, "a.csv", filepath.Base(rep.Files[0].Path))
}

func TestGroupCommand(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.csv", "Amount\n1\n2\n")
	writeTestFile(t, dir, "b.csv", "amount\n1.5\n")

	decodeGroups := func(out string) []corpus.Group {
		var res struct {
			Groups []corpus.Group `json:"groups"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		return res.Groups
	}

	out, err := execute(t, "group", dir)
	require.NoError(t, err)
	assert.Len(t, decodeGroups(out), 2)

	out, err = execute(t, "group", "--relaxed", dir)
	require.NoError(t, err)
	groups := decodeGroups(out)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Files, 2)
}

func TestOutliersCommand(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,amount\n")
	for i := range 40 {
		if i == 12 {
			b.WriteString("VOID,2\n")
			continue
		}
		fmt.Fprintf(&b, "%d,2\n", i+10)
	}
	path := writeTestFile(t, t.TempDir(), "ledger.csv", b.String())

	out, err := execute(t, "outliers", path)
	require.NoError(t, err)

	var res struct {
		Outliers struct {
			Total    int64                 `json:"total"`
			Outliers []model.OutlierReport `json:"outliers"`
		} `json:"outliers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.EqualValues(t, 1, res.Outliers.Total)
	require.Len(t, res.Outliers.Outliers, 1)
	assert.Equal(t, "id", res.Outliers.Outliers[0].Column)
	assert.Equal(t, "VOID", res.Outliers.Outliers[0].Value)
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	jan := writeTestFile(t, dir, "jan.csv", "booked\n03/04/2024\n")
	mar := writeTestFile(t, dir, "mar.csv", "booked\n25/03/2024\n")

	out, err := execute(t, "solve", jan, mar)
	require.NoError(t, err)

	var res solver.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Columns, 1)
	assert.Equal(t, model.TypeDateSlashEU, res.Columns[0].Type)
	assert.Equal(t, 2, res.FilesConsumed)
}

func TestSolveCommand_Strict(t *testing.T) {
	dir := t.TempDir()
	us := writeTestFile(t, dir, "us.csv", "d\n04/13/2024\n")
	eu := writeTestFile(t, dir, "eu.csv", "d\n13/04/2024\n")

	_, err := execute(t, "solve", "--no-early-stop", us, eu)
	require.NoError(t, err)

	_, err = execute(t, "solve", "--no-early-stop", "--strict", us, eu)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not every column resolved")
}

func TestDriftCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCHEMAPROOF_STORE_DATABASE_URL", filepath.Join(dir, "drift.db"))
	v1 := writeTestFile(t, dir, "v1.csv", "id,amount\n1,100\n")
	v2 := writeTestFile(t, dir, "v2.csv", "id,amount,region\n1,100,west\n")

	out, err := execute(t, "drift", "vendor", v1)
	require.NoError(t, err)
	var first model.DriftResult
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.False(t, first.Drift)

	out, err = execute(t, "drift", "--fail-on-drift", "vendor", v2)
	require.Error(t, err)
	var second model.DriftResult
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.True(t, second.Drift)
	assert.Equal(t, []string{"region"}, second.Alert.Diff.AddedHeaders)

	out, err = execute(t, "drift", "--history", "vendor")
	require.NoError(t, err)
	var hist struct {
		Records []model.DriftRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	require.Len(t, hist.Records, 2)
	assert.Equal(t, second.Record.ID, hist.Records[0].ID)

	_, err = execute(t, "drift", "vendor")
	require.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drift.db")
	t.Setenv("SCHEMAPROOF_STORE_DATABASE_URL", path)

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	recs, err := st.Records(t.Context())
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = execute(t, "migrate", "--from-sqlite", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs the postgres driver")
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("SCHEMAPROOF_STORE_DRIVER", "oracle")
	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
