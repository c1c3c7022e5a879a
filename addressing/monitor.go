package addressing

import (
	"context"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
)

// 指标名称
const (
	MetricAnnouncementsTotal = "fabric_address_announcements_total"
	MetricEndpoints          = "fabric_address_endpoints"
	MetricRequestsTotal      = "fabric_address_requests_total"
	MetricSendFailuresTotal  = "fabric_address_send_failures_total"
	MetricRepliesDropped     = "fabric_address_replies_dropped_total"
)

// 公告来源，用作指标标签
const (
	originLocal  = "local"
	originRemote = "remote"
	originLeave  = "leave"
)

type monitor struct {
	logger        clog.Logger
	announcements metrics.Counter
	endpoints     metrics.Gauge
	requests      metrics.Counter
	sendFailures  metrics.Counter
	dropped       metrics.Counter
}

func newMonitor(logger clog.Logger, meter metrics.Meter) (*monitor, error) {
	m := &monitor{logger: logger}
	var err error
	if m.announcements, err = meter.Counter(MetricAnnouncementsTotal, "Address announcements applied to the cache"); err != nil {
		return nil, err
	}
	if m.endpoints, err = meter.Gauge(MetricEndpoints, "Endpoints with at least one active address"); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Counter(MetricRequestsTotal, "Address requests received from peers"); err != nil {
		return nil, err
	}
	if m.sendFailures, err = meter.Counter(MetricSendFailuresTotal, "Failed sends on the address channel"); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Counter(MetricRepliesDropped, "Address request replies dropped"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *monitor) added(endpointID string, addr SocketAddress, origin string) {
	m.logger.Debug("address added", clog.String("endpoint", endpointID), clog.String("address", addr.String()),
		clog.String("origin", origin))
	m.announcements.Inc(context.Background(), metrics.L("type", string(Activated)), metrics.L("origin", origin))
}

func (m *monitor) removed(endpointID string, addr SocketAddress, origin string) {
	m.logger.Debug("address removed", clog.String("endpoint", endpointID), clog.String("address", addr.String()),
		clog.String("origin", origin))
	m.announcements.Inc(context.Background(), metrics.L("type", string(Deactivated)), metrics.L("origin", origin))
}

func (m *monitor) endpointCount(n int) {
	m.endpoints.Set(context.Background(), float64(n))
}

func (m *monitor) receivedRequest(runtimeName string) {
	m.logger.Info("received address request", clog.String("requester", runtimeName))
	m.requests.Inc(context.Background())
}

func (m *monitor) replyDropped(runtimeName, reason string) {
	m.logger.Warn("dropping address reply", clog.String("requester", runtimeName), clog.String("reason", reason))
	m.dropped.Inc(context.Background(), metrics.L("reason", reason))
}

func (m *monitor) error(op string, err error) {
	m.logger.Error("address channel operation failed", clog.String("op", op), clog.Error(err))
	m.sendFailures.Inc(context.Background(), metrics.L("op", op))
}
