package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tsls"
)

const fixture = `int counter = 0;

int add(int a, int b) {
	int sum = a + b;
	return sum;
}

int main(void) {
	int x = add(1, 2);
	counter = x;
	return x;
}
`

type envelope struct {
	Command    string          `json:"command"`
	Results    json.RawMessage `json:"results"`
	TotalCount *int            `json:"total_count"`
	Error      string          `json:"error"`
}

// resetFlags restores every package-level flag to its default, since the
// command tree is shared between tests.
func resetFlags() {
	flagConfig, flagLogLevel, flagQueriesDir, flagFormat = "", "error", "", "json"
	flagTCP = ""
	flagLimit, flagOffset, flagSort, flagOrder = 50, 0, "", "asc"
	flagTag, flagLanguage, flagGlobal, flagTop = "", "", false, 10
	flagDB, flagWorkers, flagForce, flagRunDB = "", 0, false, ""
	flagNoDeclaration = false
	errorHandled = false
}

// execute runs the root command in-process. --log-level defaults to error
// to keep stderr quiet.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func decode(t *testing.T, stdout string, results any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(stdout), &env), "invalid JSON output: %s", stdout)
	if results != nil && len(env.Results) > 0 {
		require.NoError(t, json.Unmarshal(env.Results, results))
	}
	return env
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// --- Helpers ---

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	sub := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))

	assert.Equal(t, filepath.Join(root, "tsls.db"), resolveDBPath("tsls.db", sub))
	abs := filepath.Join(t.TempDir(), "x.db")
	assert.Equal(t, abs, resolveDBPath(abs, sub))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("xml"), `invalid format "xml"`)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tsls.toml": "[log]\nlevel = \"warn\"\n\n[queries]\ndir = \"from-file\"\n",
	})
	resetFlags()
	flagConfig = filepath.Join(dir, "tsls.toml")

	flagLogLevel = ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "from-file", cfg.Queries.Dir)

	flagLogLevel, flagQueriesDir = "debug", "from-flag"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-flag", cfg.Queries.Dir)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	resetFlags()
	flagLogLevel = "loud"
	_, err := loadConfig()
	require.Error(t, err)
}

// --- Commands ---

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "keywords", "c")
	require.ErrorContains(t, err, "invalid format")
}

func TestCheck_ReportsDiagnostics(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"good.c": "int x = 1;\n",
		"bad.c":  "int x = @;\n",
	})

	stdout, _, err := execute(t, "check", dir)
	require.ErrorIs(t, err, errDiagnosticsFound)

	var diags []CLIDiagnostic
	env := decode(t, stdout, &diags)
	assert.Equal(t, "check", env.Command)
	require.Len(t, diags, 1)
	assert.Equal(t, "bad.c", filepath.Base(diags[0].File))
	assert.Equal(t, 0, diags[0].StartLine)
	assert.Equal(t, "error", diags[0].Severity)
}

func TestCheck_Clean(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "check", dir)
	require.NoError(t, err)

	var diags []CLIDiagnostic
	decode(t, stdout, &diags)
	assert.Empty(t, diags)
}

func TestCheck_TextFormat(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.c": "int x = @;\n"})

	stdout, _, err := execute(t, "--format", "text", "check", filepath.Join(dir, "bad.c"))
	require.Error(t, err)
	assert.Contains(t, stdout, "bad.c:0:")
	assert.Contains(t, stdout, ": error: ")
}

func TestCheck_MissingPath(t *testing.T) {
	stdout, _, err := execute(t, "check", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	env := decode(t, stdout, nil)
	assert.Contains(t, env.Error, "path not found")
}

func TestSymbols(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "symbols", filepath.Join(dir, "main.c"))
	require.NoError(t, err)

	var syms []CLISymbol
	decode(t, stdout, &syms)
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"counter", "add", "a", "b", "sum", "main", "x"}, names)
	assert.Equal(t, "function", syms[1].Kind)
	assert.Equal(t, 2, syms[1].StartLine)
	assert.Equal(t, 4, syms[1].StartCol)
}

func TestSymbols_TextFormatIndentsChildren(t *testing.T) {
	dir := writeFiles(t, map[string]string{"point.c": "struct point {\n\tint x;\n\tint y;\n};\n"})

	stdout, _, err := execute(t, "--format", "text", "symbols", filepath.Join(dir, "point.c"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "point"))
	assert.True(t, strings.HasPrefix(lines[2], "  x"))
	assert.True(t, strings.HasPrefix(lines[3], "  y"))
}

func TestSymbols_UnsupportedFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"notes.txt": "hello"})

	stdout, _, err := execute(t, "symbols", filepath.Join(dir, "notes.txt"))
	require.ErrorIs(t, err, tsls.ErrUnsupportedLanguage)
	env := decode(t, stdout, nil)
	assert.Equal(t, "symbols", env.Command)
	assert.NotEmpty(t, env.Error)
}

func TestDefinition(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "definition", filepath.Join(dir, "main.c"), "8", "10")
	require.NoError(t, err)

	var locs []CLILocation
	decode(t, stdout, &locs)
	require.Len(t, locs, 1)
	assert.Equal(t, 2, locs[0].StartLine)
	assert.Equal(t, 4, locs[0].StartCol)
	assert.Equal(t, "main.c", filepath.Base(locs[0].File))
}

func TestDefinition_ByteColumns(t *testing.T) {
	// "é" is two bytes but one UTF-16 unit, so n starts at byte 20.
	src := "char *s = \"é\"; int n = 1;\nint m = n;\n"
	dir := writeFiles(t, map[string]string{"wide.c": src})

	stdout, _, err := execute(t, "definition", filepath.Join(dir, "wide.c"), "1", "8")
	require.NoError(t, err)

	var locs []CLILocation
	decode(t, stdout, &locs)
	require.Len(t, locs, 1)
	assert.Equal(t, 0, locs[0].StartLine)
	assert.Equal(t, 20, locs[0].StartCol)
	assert.Equal(t, 21, locs[0].EndCol)
}

func TestReferences(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})
	file := filepath.Join(dir, "main.c")

	stdout, _, err := execute(t, "references", file, "10", "8")
	require.NoError(t, err)
	var locs []CLILocation
	env := decode(t, stdout, &locs)
	assert.Len(t, locs, 3)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 3, *env.TotalCount)

	stdout, _, err = execute(t, "references", "--no-declaration", file, "10", "8")
	require.NoError(t, err)
	decode(t, stdout, &locs)
	assert.Len(t, locs, 2)
}

func TestPositionCommands_InvalidPosition(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	tests := []struct {
		name string
		line string
		col  string
		want string
	}{
		{"non-numeric line", "x", "0", `invalid line "x"`},
		{"non-numeric col", "0", "1.5", `invalid col "1.5"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, "definition", filepath.Join(dir, "main.c"), tt.line, tt.col)
			require.Error(t, err)
			env := decode(t, stdout, nil)
			assert.Contains(t, env.Error, tt.want)
		})
	}
}

func TestDetail(t *testing.T) {
	dir := writeFiles(t, map[string]string{"point.c": "struct point {\n\tint x;\n\tint y;\n};\n"})

	stdout, _, err := execute(t, "detail", filepath.Join(dir, "point.c"), "0", "8")
	require.NoError(t, err)

	var detail CLIDetail
	decode(t, stdout, &detail)
	assert.Equal(t, "point", detail.Symbol.Name)
	require.Len(t, detail.Children, 2)
	assert.Equal(t, "x", detail.Children[0].Name)
	assert.Equal(t, "y", detail.Children[1].Name)
	assert.Empty(t, detail.Scopes)
}

func TestDetail_Unresolved(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "detail", filepath.Join(dir, "main.c"), "8", "0")
	require.NoError(t, err)
	var detail *CLIDetail
	env := decode(t, stdout, &detail)
	assert.Equal(t, "detail", env.Command)
	assert.Nil(t, detail)
}

func TestScopeAt(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "--format", "text", "scope-at", filepath.Join(dir, "main.c"), "4", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "2:"), "outermost scope starts on line 2: %q", lines)
}

func TestSearch(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "search", "a*", dir)
	require.NoError(t, err)

	var results []CLISearchResult
	env := decode(t, stdout, &results)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 2, *env.TotalCount)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "add", results[1].Name)
	assert.True(t, results[1].Global)
	assert.Equal(t, "c", results[1].Language)
}

func TestSearch_GlobalAndPagination(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "search", "*", dir, "--global", "--limit", "1", "--offset", "1")
	require.NoError(t, err)

	var results []CLISearchResult
	env := decode(t, stdout, &results)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 3, *env.TotalCount)
	require.Len(t, results, 1)
	assert.Equal(t, "counter", results[0].Name)
}

func TestSearch_InvalidSort(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "search", "*", dir, "--sort", "size")
	require.Error(t, err)
	env := decode(t, stdout, nil)
	assert.Contains(t, env.Error, "invalid sort field")
}

func TestUnused(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})

	stdout, _, err := execute(t, "unused", dir)
	require.NoError(t, err)

	var results []CLISearchResult
	env := decode(t, stdout, &results)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 1, *env.TotalCount)
	require.Len(t, results, 1)
	assert.Equal(t, "main", results[0].Name)
	assert.Equal(t, 0, results[0].RefCount)
}

func TestSummary(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture, "bad.c": "int x = @;\n"})

	stdout, _, err := execute(t, "summary", dir, "--top", "1")
	require.NoError(t, err)

	var summary CLISummary
	decode(t, stdout, &summary)
	require.Len(t, summary.Languages, 1)
	assert.Equal(t, "c", summary.Languages[0].Language)
	assert.Equal(t, 2, summary.Languages[0].DocumentCount)
	assert.Equal(t, 1, summary.Languages[0].DiagnosticCount)
	assert.Len(t, summary.TopSymbols, 1)
}

func TestKeywords(t *testing.T) {
	stdout, _, err := execute(t, "keywords", "c")
	require.NoError(t, err)

	var keywords []string
	decode(t, stdout, &keywords)
	assert.Contains(t, keywords, "return")
	assert.Contains(t, keywords, "struct")
}

func TestKeywords_UnknownLanguage(t *testing.T) {
	_, _, err := execute(t, "keywords", "cobol")
	require.ErrorIs(t, err, tsls.ErrUnsupportedLanguage)
}

func TestValidate_BundledAssets(t *testing.T) {
	stdout, _, err := execute(t, "validate")
	require.NoError(t, err)

	var results []CLIValidation
	decode(t, stdout, &results)
	require.NotEmpty(t, results)
	for _, v := range results {
		assert.True(t, v.OK, "%s: %s", v.Language, v.Error)
	}
}

func TestValidate_BrokenOverride(t *testing.T) {
	dir := writeFiles(t, map[string]string{"c/locals.scm": "(no_such_node) @scope\n"})

	stdout, _, err := execute(t, "--queries-dir", dir, "validate", "c")
	require.ErrorIs(t, err, tsls.ErrQueryCompile)

	var results []CLIValidation
	decode(t, stdout, &results)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.NotEmpty(t, results[0].Error)
}

func TestDump_SkipsUnchangedOnSecondRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.c": fixture})
	db := filepath.Join(t.TempDir(), "out", "tsls.db")

	stdout, _, err := execute(t, "dump", dir, "--db", db)
	require.NoError(t, err)
	var stats CLIDumpStats
	decode(t, stdout, &stats)
	assert.Equal(t, db, stats.Database)
	assert.Equal(t, 1, stats.Exported)
	require.FileExists(t, db)

	stdout, _, err = execute(t, "dump", dir, "--db", db)
	require.NoError(t, err)
	stats = CLIDumpStats{}
	decode(t, stdout, &stats)
	assert.Equal(t, 0, stats.Exported)
	assert.Equal(t, 1, stats.Skipped)

	stdout, _, err = execute(t, "dump", dir, "--db", db, "--force")
	require.NoError(t, err)
	stats = CLIDumpStats{}
	decode(t, stdout, &stats)
	assert.Equal(t, 1, stats.Exported)
}

func TestRun_Script(t *testing.T) {
	src := writeFiles(t, map[string]string{"main.c": fixture})
	scripts := writeFiles(t, map[string]string{
		"check.risor": `
docs := documents()
assert(len(docs) == 1, 'expected 1 document, got {len(docs)}')
defs := definition(docs[0]["uri"], 10, 8)
assert(len(defs) == 1, "expected a definition")
assert(defs[0]["start_line"] == 8, "expected line 8")
`,
	})

	_, _, err := execute(t, "run", filepath.Join(scripts, "check.risor"), src)
	require.NoError(t, err)
}

func TestRun_FailingScript(t *testing.T) {
	scripts := writeFiles(t, map[string]string{"fail.risor": `assert(false, "boom")`})

	stdout, _, err := execute(t, "run", filepath.Join(scripts, "fail.risor"))
	require.Error(t, err)
	env := decode(t, stdout, nil)
	assert.Equal(t, "run", env.Command)
	assert.Contains(t, env.Error, "boom")
}

func TestRun_WithDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "run.db")
	scripts := writeFiles(t, map[string]string{
		"export.risor": `
open_src("file:///a.c", "c", "int a;\n")
export()
rows := db_query("SELECT uri FROM documents")
assert(len(rows) == 1, 'expected 1 row, got {len(rows)}')
`,
	})

	_, _, err := execute(t, "run", filepath.Join(scripts, "export.risor"), "--db", db)
	require.NoError(t, err)
}

func TestRun_BundledScript(t *testing.T) {
	src := writeFiles(t, map[string]string{"main.c": fixture})

	_, _, err := execute(t, "run", "roundtrip.risor", src)
	require.NoError(t, err)
}

func TestRun_MissingScript(t *testing.T) {
	stdout, _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.risor"))
	require.Error(t, err)
	env := decode(t, stdout, nil)
	assert.Contains(t, env.Error, "script not found")
}
