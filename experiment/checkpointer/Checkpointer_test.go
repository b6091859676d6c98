package checkpointer

import (
	"errors"
	"strings"
	"testing"

	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
)

type recordingSaver struct {
	saved []string
	err   error
}

func (r *recordingSaver) Save(filename string) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, filename)
	return nil
}

func (r *recordingSaver) Load(string) error { return nil }

func step(stepType ts.StepType, number int) ts.TimeStep {
	return ts.New(stepType, 0, 1, mat.NewVecDense(1, nil), number)
}

func TestNStep(t *testing.T) {
	s := &recordingSaver{}
	c, err := NewNStep(3, s, FilenameEnumerator(0, "agent", ".bin"))
	if err != nil {
		t.Fatal(err)
	}

	// Two episodes of 4 steps each
	for episode := 0; episode < 2; episode++ {
		if err := c.Checkpoint(step(ts.First, 0)); err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= 4; i++ {
			stepType := ts.Mid
			if i == 4 {
				stepType = ts.Last
			}
			if err := c.Checkpoint(step(stepType, i)); err != nil {
				t.Fatal(err)
			}
		}
	}

	want := []string{"agent1.bin", "agent2.bin"}
	if strings.Join(s.saved, ",") != strings.Join(want, ",") {
		t.Errorf("saved %v, want %v", s.saved, want)
	}
}

func TestNStepError(t *testing.T) {
	s := &recordingSaver{err: errors.New("disk full")}
	c, err := NewNStep(1, s, Overwrite("agent.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Checkpoint(step(ts.Mid, 1)); err == nil {
		t.Error("expected save error to be returned")
	}
}

func TestNewNStepInvalid(t *testing.T) {
	if _, err := NewNStep(0, &recordingSaver{}, Overwrite("a")); err == nil {
		t.Error("expected error for non-positive interval")
	}
	if _, err := NewNStep(1, nil, Overwrite("a")); err == nil {
		t.Error("expected error for nil object")
	}
}

func TestFilenameEnumerator(t *testing.T) {
	f := FilenameEnumerator(4, "/tmp/net", ".gob")
	for _, want := range []string{"/tmp/net5.gob", "/tmp/net6.gob"} {
		if got := f(); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	timed := FileTimer("/tmp/net", ".gob")()
	if !strings.HasPrefix(timed, "/tmp/net-") ||
		!strings.HasSuffix(timed, ".gob") {
		t.Errorf("unexpected timed filename %v", timed)
	}
}
