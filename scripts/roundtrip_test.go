package scripts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/runtime"
	"github.com/jward/tsls/scripts"
)

const cSource = `int counter = 0;

int add(int a, int b) {
	int sum = a + b;
	return sum;
}

int main(void) {
	int x = add(1, 2);
	counter = x;
	{
		int x = counter;
		return x;
	}
}
`

func newTestRuntime(t *testing.T) (*runtime.Runtime, *tsls.Engine) {
	t.Helper()
	e, err := tsls.New()
	require.NoError(t, err)
	return runtime.NewRuntime(e, "", runtime.WithRuntimeFS(scripts.FS)), e
}

func TestRoundtrip_C(t *testing.T) {
	rt, e := newTestRuntime(t)
	_, err := e.Open(context.Background(), "file:///main.c", "c", 1, []byte(cSource))
	require.NoError(t, err)

	require.NoError(t, rt.RunScript(context.Background(), "roundtrip.risor", nil))
}

func TestRoundtrip_NoDocuments(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.NoError(t, rt.RunScript(context.Background(), "roundtrip.risor", nil))
}

func TestLocationsModule(t *testing.T) {
	rt, _ := newTestRuntime(t)
	src := `
import locations

a := {"uri": "file:///a.c", "start_line": 1, "start_col": 2}
b := {"uri": "file:///a.c", "start_line": 1, "start_col": 3}
assert(locations.same(a, a), "a is a")
assert(!locations.same(a, b), "a is not b")
assert(locations.describe(a) == "file:///a.c:1:2", locations.describe(a))
`
	require.NoError(t, rt.RunSource(context.Background(), src, nil))
}
