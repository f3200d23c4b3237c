package worker

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

func TestSubmitRunsCaptureAndDeliversResult(t *testing.T) {
	p := New(1)
	defer p.Close()

	want := image.NewRGBA(image.Rect(0, 0, 4, 4))
	done := make(chan struct{})
	ok := p.Submit(context.Background(), func() (*image.RGBA, error) {
		return want, nil
	}, func(img *image.RGBA, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if img != want {
			t.Error("callback received a different image")
		}
		close(done)
	})
	if !ok {
		t.Fatal("submit refused on an idle pool")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestSubmitRefusedWhileBusy(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(context.Background(), func() (*image.RGBA, error) {
		<-block
		return nil, errors.New("done")
	}, func(*image.RGBA, error) { wg.Done() })

	// Fill the single queue slot, then the next submit must be refused.
	deadline := time.After(2 * time.Second)
	for {
		if !p.Submit(context.Background(), func() (*image.RGBA, error) { return nil, nil }, func(*image.RGBA, error) {}) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pool never exerted back-pressure")
		default:
		}
	}
	close(block)
	wg.Wait()
}

func TestContextCancellationAbandonsCapture(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	errCh := make(chan error, 1)
	p.Submit(ctx, func() (*image.RGBA, error) {
		<-block
		return nil, nil
	}, func(_ *image.RGBA, err error) {
		errCh <- err
	})
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not release the job")
	}
}
