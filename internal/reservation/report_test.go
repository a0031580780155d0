package reservation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"slotbot/internal/browser/browsertest"
	"slotbot/internal/notify"
	"slotbot/pkg/logx"
)

type recordingNotifier struct {
	events  []string
	texts   []string
	images  [][]byte
	textErr error
	imgErr  error
	ctxErrs []error
}

func (n *recordingNotifier) SendText(ctx context.Context, text string) error {
	n.events = append(n.events, "text")
	n.texts = append(n.texts, text)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.textErr
}

func (n *recordingNotifier) SendImage(ctx context.Context, png []byte, caption string) error {
	n.events = append(n.events, "image:"+caption)
	n.images = append(n.images, png)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.imgErr
}

var _ notify.Notifier = (*recordingNotifier)(nil)

func TestReportTextThenScreenshot(t *testing.T) {
	f := browsertest.New()
	n := &recordingNotifier{}
	r := &Reporter{Browser: f, Notifier: n, MaxRetries: 3, Log: logx.Nop()}

	r.Report(context.Background(), poolA, Outcome{Kind: Success, Step: StepDone})

	require.Equal(t, []string{"text", "image:PoolA 09:00:00 success"}, n.events)
	require.Equal(t, "✅ Successfully reserved a slot in PoolA at 09:00:00 (Lane swim)", n.texts[0])
	require.Equal(t, f.PNG, n.images[0])
}

func TestReportScreenshotFailureStillSendsText(t *testing.T) {
	f := browsertest.New()
	f.ScreenshotErr = errors.New("target closed")
	n := &recordingNotifier{}
	r := &Reporter{Browser: f, Notifier: n, Log: logx.Nop()}

	r.Report(context.Background(), poolA, Outcome{Kind: NoAvailability, Step: StepGroupSize})

	require.Equal(t, []string{"text"}, n.events)
}

func TestReportSwallowsNotifierErrors(t *testing.T) {
	f := browsertest.New()
	n := &recordingNotifier{
		textErr: fmt.Errorf("%w: 502", notify.ErrDelivery),
		imgErr:  fmt.Errorf("%w: 502", notify.ErrDelivery),
	}
	r := &Reporter{Browser: f, Notifier: n, Log: logx.Nop()}

	require.NotPanics(t, func() {
		r.Report(context.Background(), poolA, Outcome{Kind: Failure, Step: StepPickTime, Err: errors.New("boom")})
	})
	// a failed text does not prevent the screenshot
	require.Len(t, n.events, 2)
}

func TestReportRunsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := &recordingNotifier{}
	r := &Reporter{Browser: browsertest.New(), Notifier: n, Log: logx.Nop()}

	r.Report(ctx, poolA, Outcome{Kind: Failure, Step: StepAwaitCode, Err: context.Canceled})

	require.Len(t, n.events, 2)
	for _, err := range n.ctxErrs {
		require.NoError(t, err)
	}
}

func TestReportWithoutNotifierOrBrowser(t *testing.T) {
	f := browsertest.New()
	r := &Reporter{Browser: f, Log: logx.Nop()}
	r.Report(context.Background(), poolA, Outcome{Kind: Success})
	require.Empty(t, f.Calls(), "no screenshot without a notifier")

	n := &recordingNotifier{}
	r = &Reporter{Notifier: n, Log: logx.Nop()}
	r.Report(context.Background(), poolA, Outcome{Kind: Success})
	require.Equal(t, []string{"text"}, n.events)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		out  Outcome
		want string
	}{
		{
			name: "success",
			out:  Outcome{Kind: Success},
			want: "✅ Successfully reserved a slot in PoolA at 09:00:00 (Lane swim)",
		},
		{
			name: "no slots",
			out:  Outcome{Kind: NoAvailability},
			want: "❌ No slots available in PoolA at 09:00:00 (Lane swim)",
		},
		{
			name: "no more times",
			out:  Outcome{Kind: NoAvailability, NoMoreTimes: true},
			want: "❌ No more available times in PoolA at 09:00:00 (Lane swim)",
		},
		{
			name: "retries",
			out:  Outcome{Kind: RetryExhausted, Retries: 3},
			want: "❌ Failed to reserve slot in PoolA at 09:00:00 (Lane swim) after 3 retries",
		},
		{
			name: "failure",
			out:  Outcome{Kind: Failure, Step: StepAwaitCode, Err: errors.New("no code")},
			want: "❌ Failed to reserve a slot in PoolA at 09:00:00 (Lane swim), step await_code: no code",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Message(poolA, tt.out, 3))
		})
	}
}
