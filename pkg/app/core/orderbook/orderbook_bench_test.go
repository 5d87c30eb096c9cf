package orderbook

import (
	"math/rand"
	"testing"
)

// prefill rests n bids and n asks that do not cross.
func prefill(ob *OrderBook, n int) OrderID {
	id := OrderID(0)
	for i := 0; i < n; i++ {
		id++
		ob.Add(NewOrder(id, "maker", 100, float64(1000-i), Bid))
		id++
		ob.Add(NewOrder(id, "maker", 100, float64(1100+i), Ask))
	}
	return id
}

// BenchmarkOrderbookAdd measures insertion of crossing orders into a deep book
func BenchmarkOrderbookAdd(b *testing.B) {
	ob := NewOrderBook()
	id := prefill(ob, 100)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		side := Bid
		if i%2 == 0 {
			side = Ask
		}
		id++
		ob.Add(NewOrder(id, "taker", 10, 1050, side))
	}
}

// BenchmarkOrderbookRemove measures cancellation from a book of 1000 resting orders
func BenchmarkOrderbookRemove(b *testing.B) {
	ob := NewOrderBook()
	ids := make([]OrderID, 1000)
	for i := range ids {
		ids[i] = OrderID(i + 1)
		ob.Add(NewOrder(ids[i], "maker", 100, float64(1000+i), Bid))
	}
	next := OrderID(len(ids))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		j := i % len(ids)
		ob.Remove(ids[j])
		next++
		ids[j] = next
		ob.Add(NewOrder(next, "maker", 100, float64(1000+j), Bid))
	}
}

// BenchmarkMatchOrders measures clearing a round of random shouts
func BenchmarkMatchOrders(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	id := OrderID(0)
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		ob := NewOrderBook()
		for j := 0; j < 200; j++ {
			id++
			side := Bid
			if j%2 == 1 {
				side = Ask
			}
			ob.Add(NewOrder(id, "t", int64(rng.Intn(10)+1), float64(rng.Intn(200)+1), side))
		}
		b.StartTimer()
		ob.MatchOrders()
	}
}
