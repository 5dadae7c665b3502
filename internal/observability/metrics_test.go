package observability

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/danmuck/cmdclient/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	cmd := command.New(command.PCLock, netip.MustParseAddr("127.0.0.1"), nil)
	before := testutil.ToFloat64(commandsSent.WithLabelValues("pc_lock", "true"))

	RecordHTTPRequest("cmdserver", "GET", "/health", 200, 12*time.Millisecond)
	RecordSend(cmd, command.FrameLen(cmd), nil, time.Millisecond)
	RecordSend(cmd, command.FrameLen(cmd), errors.New("reset"), time.Millisecond)
	RecordDispatch(cmd, 2, nil)
	RecordReceived(cmd)
	RecordDecodeError()

	if got := testutil.ToFloat64(commandsSent.WithLabelValues("pc_lock", "true")); got != before+1 {
		t.Fatalf("unexpected success count: got=%v before=%v", got, before)
	}
	if got := testutil.ToFloat64(commandsSent.WithLabelValues("pc_lock", "false")); got < 1 {
		t.Fatalf("failure not recorded: %v", got)
	}
}

func TestUnknownTypesShareOneSeries(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	target := netip.MustParseAddr("127.0.0.1")
	before := testutil.CollectAndCount(commandsReceived)

	for i := 0; i < 1000; i++ {
		cmd := command.New(command.Type(1000+i), target, nil)
		RecordReceived(cmd)
		RecordSend(cmd, command.FrameLen(cmd), nil, time.Millisecond)
		RecordDispatch(cmd, 1, nil)
		RecordDispatchRetry(cmd)
	}

	if got := testutil.CollectAndCount(commandsReceived); got > before+1 {
		t.Fatalf("unknown ordinals grew received series: before=%d after=%d", before, got)
	}
	if got := testutil.ToFloat64(commandsReceived.WithLabelValues("unknown")); got < 1000 {
		t.Fatalf("unknown counter too low: %v", got)
	}
	if got := testutil.CollectAndCount(commandsSent); got > len(command.Types())*2+2 {
		t.Fatalf("sent series unbounded: %d", got)
	}
	if got := testutil.CollectAndCount(dispatchRetries); got > len(command.Types())+1 {
		t.Fatalf("retry series unbounded: %d", got)
	}
}

func TestDispatchQueueDepthGauge(t *testing.T) {
	testlog.Start(t)
	SetDispatchQueueDepth(7)
	if got := testutil.ToFloat64(dispatchQueueDepth); got != 7 {
		t.Fatalf("unexpected queue depth: %v", got)
	}
	SetDispatchQueueDepth(0)
	if got := testutil.ToFloat64(dispatchQueueDepth); got != 0 {
		t.Fatalf("unexpected queue depth: %v", got)
	}
}
