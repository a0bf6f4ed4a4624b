package errors

import (
	"fmt"
	"time"

	"github.com/go-lark/lark"

	"crowdfund.io/crowdfund-dapp/pkg/log"
)

const maxLarkFrames = 12

type larkReporter struct {
	bot   *lark.Bot
	title string
	delay *rateLimiter
}

// NewLarkReporter posts reported errors to a Lark group webhook. Errors raised from
// the same place are posted at most once per silent window; the next post carries
// how many were held back.
func NewLarkReporter(webhook string, silent time.Duration) {
	if webhook == "" {
		log.Warn("empty lark webhook found, skipping lark reporter initialization.")
		return
	}
	Register(&larkReporter{
		bot:   lark.NewNotificationBot(webhook),
		title: "crowdfund-dapp alarm",
		delay: newRateLimiter(silent),
	})
	log.Info("Lark error reporter initialized.")
}

func (r *larkReporter) Report(err error) {
	if err == nil {
		return
	}
	stacks := callers().fullStack()
	limited, stats := r.delay.StackBasedRateLimited(origin(stacks))
	if limited {
		return
	}
	pb := lark.NewPostBuilder()
	pb.Title(r.title)
	for _, line := range alarmLines(err, stats, stacks) {
		pb.TextTag(line, 1, true)
	}
	if _, err := r.bot.PostNotificationV2(lark.OutcomingMessage{
		MsgType: "post",
		Content: lark.MessageContent{Post: pb.Render()},
	}); err != nil {
		log.Errorf("post lark alarm: %v", err)
	}
}

// alarmLines is the body of an alarm post, one text tag per line.
func alarmLines(err error, stats *errorStats, stacks []string) []string {
	lines := []string{
		fmt.Sprintf("Error: %v", err),
		fmt.Sprintf("\nCause: %T", Cause(err)),
		fmt.Sprintf("\nPrevious alarm: %s", formatReportTime(stats.lastReportTime)),
		fmt.Sprintf("\nHeld back since then: %d (total %d)", stats.occurCountSinceLastReport, stats.totalOccurCount+1),
		"\nStack:",
	}
	if len(stacks) > maxLarkFrames {
		stacks = stacks[:maxLarkFrames]
	}
	for _, s := range stacks {
		lines = append(lines, "\n    "+s)
	}
	return lines
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}
