package vm

import (
	"bytes"
	"strings"
	"testing"

	"kuroko/pkg/compiler"
)

// run compiles and executes source against a fresh Vm, returning whatever
// was written to its captured Stdout.
func run(t *testing.T, source string) string {
	t.Helper()
	code, err := compiler.CompileSource(source, "<test>")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := New()
	var out bytes.Buffer
	v.Stdout = &out
	if _, err := v.MainThread().Execute(code, v.MainModule()); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

func TestDictSubscriptAssignAndLen(t *testing.T) {
	out := run(t, "d = {1:'a', 2:'b'}\nd[1] = 'c'\nprint(d[1], len(d))\n")
	if strings.TrimSpace(out) != "c 2" {
		t.Errorf("got %q, want %q", out, "c 2")
	}
}

func TestRecursiveFactorial(t *testing.T) {
	src := "def f(n):\n" +
		"    if n < 2:\n" +
		"        return 1\n" +
		"    return n * f(n-1)\n" +
		"print(f(10))\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "3628800" {
		t.Errorf("got %q, want %q", out, "3628800")
	}
}

func TestIsinstanceAcrossInheritance(t *testing.T) {
	src := "class A:\n    pass\n" +
		"class B(A):\n    pass\n" +
		"print(isinstance(B(), A))\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "True" {
		t.Errorf("got %q, want %q", out, "True")
	}
}

func TestExceptionUnwindWithAlias(t *testing.T) {
	src := "try:\n" +
		"    raise ValueError('x')\n" +
		"except ValueError as e:\n" +
		"    print(e)\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "x" {
		t.Errorf("got %q, want %q", out, "x")
	}
}

func TestClosureCapturesLoopVariableByReference(t *testing.T) {
	src := "def mk():\n" +
		"    fns = []\n" +
		"    i = 0\n" +
		"    while i < 3:\n" +
		"        append(fns, lambda: i)\n" +
		"        i = i + 1\n" +
		"    return fns\n" +
		"fns = mk()\n" +
		"print(fns[0](), fns[1](), fns[2]())\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "3 3 3" {
		t.Errorf("got %q, want %q", out, "3 3 3")
	}
}

func TestLambdaCall(t *testing.T) {
	out := run(t, "square = lambda x: x * x\nprint(square(5))\n")
	if strings.TrimSpace(out) != "25" {
		t.Errorf("got %q, want %q", out, "25")
	}
}

func TestForLoopOverList(t *testing.T) {
	src := "total = 0\nfor x in [1, 2, 3, 4]:\n    total = total + x\nprint(total)\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "10" {
		t.Errorf("got %q, want %q", out, "10")
	}
}

func TestStringSliceAndNegativeIndex(t *testing.T) {
	src := "s = 'hello world'\nprint(s[0:5], s[-5:])\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "hello world" {
		t.Errorf("got %q, want %q", out, "hello world")
	}
}

func TestListSlice(t *testing.T) {
	src := "xs = [1, 2, 3, 4, 5]\nprint(xs[1:3], xs[:2], xs[3:])\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "[2, 3] [1, 2] [4, 5]" {
		t.Errorf("got %q, want %q", out, "[2, 3] [1, 2] [4, 5]")
	}
}

func TestInOperator(t *testing.T) {
	src := "xs = [1, 2, 3]\nprint(2 in xs, 9 in xs)\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "True False" {
		t.Errorf("got %q, want %q", out, "True False")
	}
}

func TestFinallyRunsOnSuccessPath(t *testing.T) {
	src := "try:\n" +
		"    print('body')\n" +
		"finally:\n" +
		"    print('cleanup')\n"
	out := run(t, src)
	want := "body\ncleanup\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestDunderStrOverride(t *testing.T) {
	src := "class Point:\n" +
		"    def __init__(self, x, y):\n" +
		"        self.x = x\n" +
		"        self.y = y\n" +
		"    def __str__(self):\n" +
		"        return 'Point'\n" +
		"print(Point(1, 2))\n"
	out := run(t, src)
	if strings.TrimSpace(out) != "Point" {
		t.Errorf("got %q, want %q", out, "Point")
	}
}

func TestBuiltinTypeErrorOnBadAdd(t *testing.T) {
	code, err := compiler.CompileSource("1 + 'a'\n", "<test>")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := New()
	_, err = v.MainThread().Execute(code, v.MainModule())
	if err == nil {
		t.Fatalf("expected a TypeError, got nil")
	}
	if !strings.Contains(FormatError(err), "TypeError") {
		t.Errorf("expected TypeError in message, got %q", FormatError(err))
	}
}
