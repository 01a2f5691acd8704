package api

import "testing"

func TestBrokerFanout(t *testing.T) {
    b := NewBroker()
    a := b.Subscribe("s1")
    c := b.Subscribe("s1")
    other := b.Subscribe("s2")

    b.Publish("s1", SSEEvent{Type: "status.updated", Data: map[string]any{"status": "red"}})

    for _, ch := range []chan SSEEvent{a, c} {
        select {
        case evt := <-ch:
            if evt.Type != "status.updated" { t.Fatalf("type = %q", evt.Type) }
        default:
            t.Fatal("subscriber missed event")
        }
    }
    select {
    case <-other:
        t.Fatal("event leaked to another session")
    default:
    }

    b.Unsubscribe("s1", a)
    b.Unsubscribe("s1", c)
    b.Unsubscribe("s2", other)
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("s1")
    for i := 0; i < 20; i++ {
        b.Publish("s1", SSEEvent{Type: "status.updated"})
    }
    if n := len(ch); n != cap(ch) {
        t.Fatalf("buffered %d events, want %d", n, cap(ch))
    }
    b.Unsubscribe("s1", ch)
}
