package builtins

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"kuroko/pkg/compiler"
	"kuroko/pkg/vm"
)

func run(t *testing.T, source string) string {
	t.Helper()
	code, err := compiler.CompileSource(source, "<test>")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := vm.New()
	Install(v)
	var out bytes.Buffer
	v.Stdout = &out
	if _, err := v.MainThread().Execute(code, v.MainModule()); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

func TestMathConstantsAndFunctions(t *testing.T) {
	src := "import math\nprint(math.sqrt(16), math.floor(3.7), math.ceil(3.2))\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "4 3 4" {
		t.Errorf("got %q, want %q", out, "4 3 4")
	}
}

func TestMathPow(t *testing.T) {
	out := run(t, "import math\nprint(math.pow(2, 10))\n")
	if strings.TrimSpace(out) != "1024" {
		t.Errorf("got %q, want %q", out, "1024")
	}
}

func TestOsGetenvWithDefault(t *testing.T) {
	os.Unsetenv("KUROKO_TEST_VAR_UNSET")
	out := run(t, "import os\nprint(os.getenv('KUROKO_TEST_VAR_UNSET', 'fallback'))\n")
	if strings.TrimSpace(out) != "fallback" {
		t.Errorf("got %q, want %q", out, "fallback")
	}
}

func TestOsSetenvThenGetenv(t *testing.T) {
	src := "import os\nos.setenv('KUROKO_TEST_VAR_SET', 'hi')\nprint(os.getenv('KUROKO_TEST_VAR_SET'))\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "hi" {
		t.Errorf("got %q, want %q", out, "hi")
	}
	os.Unsetenv("KUROKO_TEST_VAR_SET")
}

func TestIoPrintJoinsArgsWithSpace(t *testing.T) {
	out := run(t, "import io\nio.print(1, 'a', True)\n")
	if strings.TrimSpace(out) != "1 a True" {
		t.Errorf("got %q, want %q", out, "1 a True")
	}
}
