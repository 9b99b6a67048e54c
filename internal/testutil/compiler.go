package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCompiler ignores its sources and writes an executable shell script to
// the -o target. The script prints its name and arguments. A source file
// containing FAIL_COMPILE makes the compilation fail.
const fakeCompiler = `#!/bin/sh
out=a.out
for arg in "$@"; do
  case "$prev" in
    -o) out="$arg" ;;
  esac
  case "$arg" in
    *.c|*.cc|*.f90)
      if grep -q FAIL_COMPILE "$arg" 2>/dev/null; then
        echo "error: cannot compile $arg" >&2
        exit 1
      fi ;;
  esac
  prev="$arg"
done
cat > "$out" <<'SCRIPT'
#!/bin/sh
echo "hello from $0 $*"
SCRIPT
chmod +x "$out"
`

// FakeCompiler installs the fake compiler in a temporary directory and
// returns its path.
func FakeCompiler(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakecc")
	require.NoError(t, os.WriteFile(path, []byte(fakeCompiler), 0o755))
	return path
}
