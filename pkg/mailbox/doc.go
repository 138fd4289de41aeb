/*
Package mailbox provides a generic multi-producer, single-consumer queue with
a detectable terminal state on both ends.

A mailbox is created as a Sender/Receiver pair:

	tx, rx := mailbox.New[string]()

	go func() {
		for {
			msg, err := rx.Receive()
			if err != nil {
				return // every Sender closed and the buffer is drained
			}
			handle(msg)
		}
	}()

	tx2 := tx.Clone() // a second producer
	_ = tx.Send("a")
	_ = tx2.Send("b")
	tx.Close()
	tx2.Close() // the receiver drains "a", "b" and then sees ErrClosed

Lifecycle:

The receiving side closes once every Sender has been closed: Receive keeps
returning buffered values in FIFO order and then reports ErrClosed.

The sending side fails once the Receiver is closed: Receiver.Close discards
anything still buffered and every later Send returns ErrDisconnected, leaving
the value with the caller.

Capacity:

By default a mailbox is unbounded; its ring buffer doubles as needed and Send
never blocks. Setting Config.Capacity makes it bounded: Send blocks while the
buffer is full and SendContext abandons the wait when its context is done.

	tx, rx := mailbox.NewWithConfig[int](mailbox.Config{Capacity: 64})
*/
package mailbox
