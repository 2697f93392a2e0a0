package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/maildispatch/dispatch"
	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/provider"
)

func ExampleDispatcher_Submit() {
	primary := provider.Func("Primary", func(context.Context, email.Message) (email.Result, error) {
		return email.Result{}, errors.New("connection refused")
	})
	backup := provider.Func("Backup", func(context.Context, email.Message) (email.Result, error) {
		return email.NewResult("Backup", time.Now()), nil
	})

	pool, _ := provider.NewPool([]provider.Provider{primary, backup}, provider.PoolConfig{})
	defer pool.Close()

	d, _ := dispatch.New(pool, dispatch.WithPollInterval(time.Millisecond))
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	msg := email.Message{To: "alice@example.com", Subject: "Welcome"}
	future, err := d.Submit(ctx, msg)
	if err != nil {
		fmt.Println("rejected:", err)
		return
	}
	result, err := future.Wait(ctx)
	if err != nil {
		fmt.Println("failed:", err)
		return
	}
	fmt.Println(result.Provider, result.Status)

	// An identical message replays the stored result.
	again, _ := d.Submit(ctx, msg)
	replayed, _ := again.Wait(ctx)
	fmt.Println(replayed.ID == result.ID)
	// Output:
	// Backup sent
	// true
}
