package failfast

import (
	"os"
	"os/exec"
	"strings"
	"testing"
)

const subprocessEnvVar = "FAILFAST_TEST_SUBPROCESS"

func TestImmediateExits(t *testing.T) {
	if os.Getenv(subprocessEnvVar) == "1" {
		Immediate("stopped %d times", 2)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^"+t.Name()+"$")
	cmd.Env = append(os.Environ(), subprocessEnvVar+"=1")
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected subprocess to exit with an error; output:\n%s", out)
	}
	if !strings.Contains(string(out), "stopped 2 times") {
		t.Fatalf("output does not contain fail-fast message:\n%s", out)
	}
}

func TestSetHandler(t *testing.T) {
	var got string
	prev := SetHandler(func(msg string) { got = msg })
	t.Cleanup(func() { SetHandler(prev) })

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected Immediate to panic after a returning handler")
			}
		}()
		If(true, "bad %s", "state")
	}()

	if got != "bad state" {
		t.Fatalf("got message %q, wanted %q", got, "bad state")
	}

	If(false, "should not fire")
}
