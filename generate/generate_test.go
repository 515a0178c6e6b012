package generate

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStreamDeliversFragmentsThenTerminal(t *testing.T) {
	s := NewStream(4)
	go func() {
		ctx := context.Background()
		for _, f := range []string{"Hel", "lo ", "world"} {
			s.Send(ctx, f)
		}
		s.Finish(Result{Text: "Hello world"})
	}()

	var got []string
	for f := range s.Fragments() {
		got = append(got, f)
	}
	r := <-s.Done()

	if r.Err != nil {
		t.Fatalf("terminal err: %v", r.Err)
	}
	if joined := strings.Join(got, ""); joined != r.Text {
		t.Errorf("fragments %q != terminal text %q", joined, r.Text)
	}
}

func TestStreamSendHonorsCancellation(t *testing.T) {
	s := NewStream(0) // unbuffered: Send blocks without a consumer
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		done <- s.Send(ctx, "fragment nobody reads")
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Error("Send reported delivery after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return after cancellation")
	}
}

func TestCollect(t *testing.T) {
	s := NewStream(2)
	go func() {
		s.Send(context.Background(), "a")
		s.Send(context.Background(), "b")
		s.Finish(Result{Text: "ab"})
	}()

	r := Collect(s)
	if r.Err != nil || r.Text != "ab" {
		t.Errorf("Collect = %+v", r)
	}
}
