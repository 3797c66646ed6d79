package llm

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const (
	// DefaultPollInterval is how often a running batch is checked.
	DefaultPollInterval = 30 * time.Second

	// After this many polls without a state change we remind the operator
	// that the batch id can be resumed later.
	stuckPolls = 10

	// Consecutive poll failures tolerated before giving up. The batch
	// itself survives; polling can be resumed with the same id.
	maxPollFailures = 5
)

// PollUntilEnded polls a batch until it reaches its terminal status,
// logging progress each interval. Transient poll errors are retried
// without abandoning the batch. The passed interval of 0 selects the
// default.
func (c *BatchClient) PollUntilEnded(ctx context.Context, batchID string, interval time.Duration) (*Batch, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	lastDone := -1
	stuck := 0
	failures := 0
	for {
		batch, err := c.Get(ctx, batchID)
		if err != nil {
			failures++
			if failures >= maxPollFailures {
				return nil, fmt.Errorf("polling batch %s: %w", batchID, err)
			}
			log.Printf("Poll failed (%d/%d), retrying: %v", failures, maxPollFailures, err)
			if err := sleep(ctx, interval); err != nil {
				return nil, err
			}
			continue
		}
		failures = 0

		counts := batch.RequestCounts
		log.Printf("Batch %s: %s (%d/%d done, %d succeeded, %d errored)",
			batch.ID, batch.ProcessingStatus, counts.Done(), counts.Total(),
			counts.Succeeded, counts.Errored)

		if batch.Ended() {
			return batch, nil
		}

		if counts.Done() == lastDone {
			stuck++
			if stuck == stuckPolls {
				log.Printf("Batch %s has not progressed in %d polls; safe to interrupt and resume later with this batch id", batch.ID, stuck)
			}
		} else {
			stuck = 0
			lastDone = counts.Done()
		}

		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ConfirmStdin asks the operator a yes/no question on the terminal.
// Batch submissions above the configured size threshold go through this
// before money is spent.
func ConfirmStdin(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
