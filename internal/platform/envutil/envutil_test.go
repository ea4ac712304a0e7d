package envutil

import (
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("X_TIMEOUT", "750ms")
	if got := Duration("X_TIMEOUT", time.Second); got != 750*time.Millisecond {
		t.Fatalf("go syntax: want=750ms got=%s", got)
	}
	t.Setenv("X_TIMEOUT", "12")
	if got := Duration("X_TIMEOUT", time.Second); got != 12*time.Second {
		t.Fatalf("seconds: want=12s got=%s", got)
	}
	t.Setenv("X_TIMEOUT", "soon")
	if got := Duration("X_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("invalid: want default got=%s", got)
	}
}

func TestListDropsBlanks(t *testing.T) {
	t.Setenv("X_ORIGINS", " http://a , ,http://b ")
	got := List("X_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("List: unexpected %v", got)
	}
}

func TestBoolAndIntFallbacks(t *testing.T) {
	t.Setenv("X_FLAG", "maybe")
	if got := Bool("X_FLAG", true); !got {
		t.Fatalf("Bool: want default true")
	}
	t.Setenv("X_N", "nope")
	if got := Int("X_N", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
}

func TestFloatFallsBackOnGarbage(t *testing.T) {
	t.Setenv("X_RATIO", "0.25")
	if got := Float("X_RATIO", 1); got != 0.25 {
		t.Fatalf("Float: want=0.25 got=%v", got)
	}
	t.Setenv("X_RATIO", "quarter")
	if got := Float("X_RATIO", 1); got != 1 {
		t.Fatalf("Float invalid: want=1 got=%v", got)
	}
}
