// Command meshcorectl is a diagnostics CLI: connect to a device,
// drive a sync, and fire N test direct messages at a contact to
// report a delivery success rate (SPEC_FULL §1.5/§3). Concurrency is
// bounded by a semaphore and results are tallied with atomic
// counters, the same shape as the teacher's ping tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/log"

	"github.com/meshcore-dev/meshclient/delivery"
	"github.com/meshcore-dev/meshclient/event"
	"github.com/meshcore-dev/meshclient/frame"
	"github.com/meshcore-dev/meshclient/session"
	"github.com/meshcore-dev/meshclient/store"
	"github.com/meshcore-dev/meshclient/store/boltstore"
	syncpkg "github.com/meshcore-dev/meshclient/sync"
)

func main() {
	configPath := flag.String("config", "", "path to meshclient TOML config")
	contactName := flag.String("contact", "", "contact name to ping (required)")
	count := flag.Int("count", 10, "number of test messages to send")
	concurrency := flag.Int("concurrency", 4, "max in-flight test sends")
	versioninfo.AddFlag(flag.CommandLine)
	flag.Parse()

	if *contactName == "" {
		fmt.Fprintln(os.Stderr, "meshcorectl: -contact is required")
		os.Exit(2)
	}

	if err := run(*configPath, *contactName, *count, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "meshcorectl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, contactName string, count, concurrency int) error {
	cfg, err := session.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: cfg.Log.ReportTimestamp,
	})
	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}

	st, err := boltstore.Open(cfg.Store.Path, logger.WithPrefix("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	disp := event.NewDispatcher(logger.WithPrefix("event"))

	transport := frame.NewTCPTransport(cfg.Transport.Addr, logger.WithPrefix("transport"))
	sess := session.New(transport, disp, cfg, logger.WithPrefix("session"))

	// coord and arq subscribe to connection_state themselves (spec.md
	// §4.6, §4.5), so both must exist before Connect fires ready —
	// otherwise the very first transition is missed.
	coord := syncpkg.New(sess, st, disp, logger.WithPrefix("sync"))
	deliveryMetrics := delivery.NewMetrics(nil)
	coord.WithDeliveryMetrics(deliveryMetrics)

	deliveryCfg := delivery.Config{
		DirectAttempts: cfg.Delivery.DirectAttempts,
		FloodAttempts:  cfg.Delivery.FloodAttempts,
		MinTimeout:     cfg.Delivery.MinTimeout,
		Margin:         cfg.Delivery.Margin,
		AckRetention:   cfg.Delivery.AckRetention,
	}
	arq := delivery.NewARQ(sess, st, disp, deliveryMetrics, deliveryCfg, logger.WithPrefix("delivery"))
	arq.Start()
	defer arq.Stop()

	syncDone := make(chan struct{}, 1)
	disp.Subscribe(strPtr(syncpkg.EventSyncEnded), map[string]string{"phase": syncpkg.PhaseMessages}, func(ev event.Event) {
		select {
		case syncDone <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sess.Disconnect()

	device, err := st.FetchActiveDevice(ctx)
	if err != nil {
		return fmt.Errorf("fetch active device: %w", err)
	}

	select {
	case <-syncDone:
	case <-time.After(10 * time.Second):
		logger.Warnf("sync did not complete before timeout, proceeding anyway")
	case <-ctx.Done():
	}

	contact, err := findContactByName(ctx, st, device.ID, contactName)
	if err != nil {
		return err
	}

	sendTestMessages(ctx, arq, st, device.ID, contact, count, concurrency, logger)
	return nil
}

func strPtr(s string) *string { return &s }

func findContactByName(ctx context.Context, st store.Store, deviceID, name string) (*store.Contact, error) {
	contacts, err := st.ListContacts(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	for _, c := range contacts {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no contact named %q", name)
}

// sendTestMessages fans count test sends out across a bounded
// semaphore, polling the store for each message's terminal status and
// reporting a pass/fail tally (grounded on ping/ping.go's
// sem-plus-waitgroup-plus-atomic-counters shape).
func sendTestMessages(ctx context.Context, arq *delivery.ARQ, st store.Store, deviceID string, contact *store.Contact, count, concurrency int, logger *log.Logger) {
	var passed, failed uint64
	sem := make(chan struct{}, concurrency)
	wg := new(sync.WaitGroup)

	for i := 0; i < count; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			defer func() { <-sem }()
			ok := sendOneTestMessage(ctx, arq, st, deviceID, contact, n)
			if ok {
				fmt.Print("!")
				atomic.AddUint64(&passed, 1)
			} else {
				fmt.Print("~")
				atomic.AddUint64(&failed, 1)
			}
		}(i)
	}
	fmt.Println()
	wg.Wait()

	total := passed + failed
	percent := 0.0
	if total > 0 {
		percent = float64(passed) * 100 / float64(total)
	}
	fmt.Printf("Success rate is %.1f%% (%d/%d)\n", percent, passed, total)
}

func sendOneTestMessage(ctx context.Context, arq *delivery.ARQ, st store.Store, deviceID string, contact *store.Contact, n int) bool {
	msg, err := arq.Send(ctx, deviceID, contact, fmt.Sprintf("meshcorectl test ping #%d", n))
	if err != nil {
		return false
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.FetchMessage(ctx, msg.ID)
		if err == nil {
			switch got.Status {
			case store.StatusDelivered:
				return true
			case store.StatusFailed:
				return false
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
