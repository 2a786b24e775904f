/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"context"
	"fmt"
	stdlog "log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func Example() {
	type Room struct {
		Number int
		Free   bool
	}

	metricsCollector := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{
		Namespace:   "hotel",
		ConstLabels: prometheus.Labels{"cache": "rooms"},
	})
	metricsCollector.MustRegister()
	defer metricsCollector.Unregister()

	// Keep at most 1000 rooms, every entry lives 30 seconds unless another TTL is passed.
	cache, err := New[int, Room](Options{MaxEntries: 1000, DefaultTTL: 30 * time.Second, MetricsCollector: metricsCollector})
	if err != nil {
		stdlog.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.RunPeriodicCleanup(ctx, time.Minute)

	cache.Add(101, Room{Number: 101, Free: true})
	cache.Set(102, Room{Number: 102}, time.Hour)

	if room, found := cache.Get(101); found {
		fmt.Printf("%d, free: %t\n", room.Number, room.Free)
	}
	if _, found := cache.Get(103); !found {
		fmt.Println("103 is not cached")
	}

	// Output:
	// 101, free: true
	// 103 is not cached
}
