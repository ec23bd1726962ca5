package transcript

import "testing"

func TestPartialReplacesWholesale(t *testing.T) {
	r := NewReconciler()

	r.ApplyPartial("hel")
	r.ApplyPartial("hello")
	r.ApplyPartial("hello wor")

	snapshot := r.Snapshot()
	if snapshot.Partial != "hello wor" {
		t.Errorf("Expected partial %q, got %q", "hello wor", snapshot.Partial)
	}
	if snapshot.Final != "" {
		t.Errorf("Expected empty final, got %q", snapshot.Final)
	}
	if snapshot.Composed != "hello wor" {
		t.Errorf("Expected composed %q, got %q", "hello wor", snapshot.Composed)
	}
}

func TestFinalAppendsWithSpacing(t *testing.T) {
	r := NewReconciler()

	r.ApplyFinal("hello world")
	r.ApplyFinal("how are you")

	snapshot := r.Snapshot()
	want := "hello world how are you"
	if snapshot.Final != want {
		t.Errorf("Expected final %q, got %q", want, snapshot.Final)
	}
}

func TestFinalClearsPartial(t *testing.T) {
	r := NewReconciler()

	r.ApplyPartial("hello wor")
	r.ApplyFinal("hello world")

	snapshot := r.Snapshot()
	if snapshot.Partial != "" {
		t.Errorf("Expected empty partial after final, got %q", snapshot.Partial)
	}
	if snapshot.Final != "hello world" {
		t.Errorf("Expected final %q, got %q", "hello world", snapshot.Final)
	}
}

func TestEmptyFinalIgnored(t *testing.T) {
	r := NewReconciler()

	r.ApplyFinal("hello")
	r.ApplyFinal("")
	r.ApplyFinal("   ")

	if got := r.Composed(); got != "hello" {
		t.Errorf("Expected %q, got %q", "hello", got)
	}
}

func TestEndOfUtterancePromotesPartial(t *testing.T) {
	r := NewReconciler()

	r.ApplyFinal("first utterance")
	r.ApplyPartial("second utter")
	r.ApplyEndOfUtterance()

	snapshot := r.Snapshot()
	want := "first utterance second utter"
	if snapshot.Final != want {
		t.Errorf("Expected final %q, got %q", want, snapshot.Final)
	}
	if snapshot.Partial != "" {
		t.Errorf("Expected partial cleared, got %q", snapshot.Partial)
	}
}

func TestEndOfUtteranceWithoutPartialIsNoop(t *testing.T) {
	r := NewReconciler()

	r.ApplyFinal("hello")
	r.ApplyEndOfUtterance()
	r.ApplyEndOfUtterance()

	if got := r.Composed(); got != "hello" {
		t.Errorf("Expected %q, got %q", "hello", got)
	}
}

func TestComposedJoinsFinalAndPartial(t *testing.T) {
	r := NewReconciler()

	r.ApplyFinal("hola")
	r.ApplyPartial("mundo")

	if got := r.Composed(); got != "hola mundo" {
		t.Errorf("Expected %q, got %q", "hola mundo", got)
	}
}

func TestFinalTextOnlyGrows(t *testing.T) {
	r := NewReconciler()

	inputs := []string{"one", "two", "three", "four"}
	prev := 0
	for _, text := range inputs {
		r.ApplyFinal(text)
		cur := len(r.Snapshot().Final)
		if cur <= prev {
			t.Errorf("Final text did not grow after appending %q", text)
		}
		prev = cur
	}
}
