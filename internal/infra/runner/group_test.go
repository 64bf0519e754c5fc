package runner

import (
	"context"
	"errors"
	"testing"
)

func TestGroupFirstError(t *testing.T) {
	var g Group
	boom := errors.New("boom")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failed := g.Go(ctx, func(context.Context) error { return boom })
	g.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	if err := <-failed; !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	cancel()
	if err := g.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait should report the first error, got %v", err)
	}
}

func TestGroupNoError(t *testing.T) {
	var g Group
	g.Go(context.Background(), func(context.Context) error { return nil })
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
