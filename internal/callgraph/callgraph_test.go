package callgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codelens/internal/defindex"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

const diSample = `
public interface IDataModelService
{
    void LoadModel();
}

public class DataModelWebService : IDataModelService
{
    public void LoadModel() { }
}

public class Caller
{
    private IDataModelService svc;
    public void Handle()
    {
        svc.LoadModel();
    }
}

public class UnrelatedRunner
{
    private IService svc;
    public void Run()
    {
        svc.Run();
    }
}
`

func buildDI(t *testing.T) *defindex.Index {
	root := t.TempDir()
	writeFile(t, root, "model.cs", diSample)
	idx := defindex.New(root, []string{".cs"})
	require.NoError(t, idx.Build(context.Background()))
	return idx
}

func TestFind_Up_DIFuzzyMatch(t *testing.T) {
	idx := buildDI(t)
	res, err := Find(idx, Query{Method: "LoadModel", Class: "DataModelWebService", Direction: Up, Depth: 1})
	require.NoError(t, err)
	require.Len(t, res.Tree, 1)
	var methods []string
	for _, c := range res.Tree[0].Children {
		methods = append(methods, c.Method)
	}
	assert.Contains(t, methods, "Handle")
}

// diSampleNoInterfaceDecl mirrors spec.md's scenario 4: DataModelWebService
// implements LoadModel without ever declaring ": IDataModelService", so the
// only way callers of it via the interface-typed field get found is the
// fuzzy DI stem match.
const diSampleNoInterfaceDecl = `
public interface IDataModelService
{
    void LoadModel();
}

public class DataModelWebService
{
    public void LoadModel() { }
}

public class Caller
{
    private IDataModelService svc;
    public void Handle()
    {
        svc.LoadModel();
    }
}
`

func TestFind_Up_DIFuzzyMatch_NoExplicitInterface(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "model.cs", diSampleNoInterfaceDecl)
	idx := defindex.New(root, []string{".cs"})
	require.NoError(t, idx.Build(context.Background()))

	res, err := Find(idx, Query{Method: "LoadModel", Class: "DataModelWebService", Direction: Up, Depth: 1})
	require.NoError(t, err)
	require.Len(t, res.Tree, 1)
	var methods []string
	for _, c := range res.Tree[0].Children {
		methods = append(methods, c.Method)
	}
	assert.Contains(t, methods, "Handle")
}

// diCrossContaminationSample reproduces the bug where a fuzzy stem test that
// merely checks substring containment anywhere in the implementation class
// name spuriously matches an unrelated class: "formService" (the stem of
// IFormService) is literally contained inside "PlatformService", but the two
// types are unrelated.
const diCrossContaminationSample = `
public interface IFormService
{
    void Load();
}

public class PlatformService
{
    public void Load() { }
}

public class FormHandler : IFormService
{
    public void Load() { }
}

public class Caller
{
    private IFormService svc;
    public void Handle()
    {
        svc.Load();
    }
}
`

func TestFind_Up_DIFuzzyMatch_DoesNotCrossContaminate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "model.cs", diCrossContaminationSample)
	idx := defindex.New(root, []string{".cs"})
	require.NoError(t, idx.Build(context.Background()))

	res, err := Find(idx, Query{Method: "Load", Class: "PlatformService", Direction: Up, Depth: 1})
	require.NoError(t, err)
	require.Len(t, res.Tree, 1)
	assert.Empty(t, res.Tree[0].Children, "Caller.Handle uses IFormService, unrelated to PlatformService")
}

const overloadSample = `
public class Processor
{
    public void Process(int x) { Validator.Validate(x); }
    public void Process(string x) { Validator.Validate(x); }
}

public class Validator
{
    public static void Validate(object x) { }
}
`

func TestFind_Up_OverloadDedup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc.cs", overloadSample)
	idx := defindex.New(root, []string{".cs"})
	require.NoError(t, idx.Build(context.Background()))

	res, err := Find(idx, Query{Method: "Validate", Class: "Validator", Direction: Up, Depth: 1})
	require.NoError(t, err)
	require.Len(t, res.Tree, 1)
	var lines []int
	for _, c := range res.Tree[0].Children {
		assert.Equal(t, "Process", c.Method)
		lines = append(lines, c.LineStart)
	}
	assert.Len(t, lines, 2)
	assert.NotEqual(t, lines[0], lines[1])
}

func TestDIMatch_StemLengthFloor(t *testing.T) {
	assert.True(t, diMatch("IFooService", "FooServiceImpl"))
	assert.False(t, diMatch("IFoo", "FooImpl")) // stem "Foo" is only 3 chars
}

func TestIsBuiltinReceiver(t *testing.T) {
	assert.True(t, isBuiltinReceiver("Promise"))
	assert.True(t, isBuiltinReceiver("Dictionary"))
	assert.False(t, isBuiltinReceiver("DataModelWebService"))
}
