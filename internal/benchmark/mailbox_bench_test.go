package benchmark

import (
	"testing"

	"github.com/vnykmshr/taskpool/pkg/mailbox"
)

// BenchmarkMailboxSend measures send performance with a draining consumer.
func BenchmarkMailboxSend(b *testing.B) {
	for _, capacity := range []int{0, 10, 100, 1000} {
		b.Run(sizeLabel(capacity), func(b *testing.B) {
			tx, rx := mailbox.NewWithConfig[int](mailbox.Config{Capacity: capacity})

			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					if _, err := rx.Receive(); err != nil {
						return
					}
				}
			}()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = tx.Send(i)
			}
			b.StopTimer()

			tx.Close()
			<-done
		})
	}
}

// BenchmarkMailboxReceive measures receive performance from a pre-filled mailbox.
func BenchmarkMailboxReceive(b *testing.B) {
	tx, rx := mailbox.New[int]()
	for i := 0; i < b.N; i++ {
		_ = tx.Send(i)
	}
	tx.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = rx.Receive()
	}
}

// BenchmarkMailboxParallelSend measures contention between many senders.
func BenchmarkMailboxParallelSend(b *testing.B) {
	tx, rx := mailbox.New[int]()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := rx.Receive(); err != nil {
				return
			}
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		sender := tx.Clone()
		defer sender.Close()
		for pb.Next() {
			_ = sender.Send(1)
		}
	})
	b.StopTimer()

	tx.Close()
	<-done
}

// BenchmarkChannelBaseline is a buffered Go channel for comparison.
func BenchmarkChannelBaseline(b *testing.B) {
	ch := make(chan int, 1000)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ch <- i
	}
	b.StopTimer()

	close(ch)
	<-done
}
