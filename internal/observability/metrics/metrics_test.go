package metrics

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
)

func TestNormalizeMetricName(t *testing.T) {
	tests := map[string]string{
		" session/metric ": "session_metric",
		"foo..bar":         "foo.bar",
		"multi  space":     "multi__space",
		".":                "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), input)
	}
}

func TestFormatTags(t *testing.T) {
	global := map[string]string{"env": "prod", " service ": " session "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	assert.Equal(t, "|#env:stage,result:success,service:session", formatTags(global, local))
	assert.Empty(t, formatTags(nil, nil))
}

func TestStatsdClient_WritesLines(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewStatsdClient(StatsdConfig{Address: pc.LocalAddr().String(), Prefix: ".onehub."})
	require.NoError(t, err)
	defer c.Close()

	c.Count("session.logout", 1, map[string]string{"trigger": "user"})

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "onehub.session.logout:1|c|#trigger:user", string(buf[:n]))

	require.NoError(t, c.Close())
	assert.NotPanics(t, func() { c.Timing("after.close", time.Second, nil) })
}

func TestNewStatsdClient_RequiresAddress(t *testing.T) {
	_, err := NewStatsdClient(StatsdConfig{Address: " "})
	assert.Error(t, err)
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg, "onehub", nil)

	sink.Count("session.identity_check", 1, map[string]string{"result": "success"})
	sink.Count("session.identity_check", 2, map[string]string{"result": "success", "extra": "dropped"})
	sink.Count("session.identity_check", 1, map[string]string{"result": "error"})
	sink.Gauge("session.state", 1, nil)
	sink.Timing("session.identity_check.duration", 250*time.Millisecond, map[string]string{"result": "success"})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"onehub_session_identity_check_total",
		"onehub_session_state",
		"onehub_session_identity_check_duration_seconds",
	}, names)

	expected := `
# HELP onehub_session_identity_check_total Count of session.identity_check events.
# TYPE onehub_session_identity_check_total counter
onehub_session_identity_check_total{result="error"} 1
onehub_session_identity_check_total{result="success"} 3
`
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "onehub_session_identity_check_total"))
}

func TestEmitIdentityCheck(t *testing.T) {
	rec := &Recorder{}

	EmitIdentityCheck(rec, IdentityCheckMetric{Result: ResultError, Err: apperrors.Unauthorized(401), Duration: time.Second})
	EmitIdentityCheck(rec, IdentityCheckMetric{Result: ResultSkipped, Reason: "circuit_open"})
	EmitIdentityCheck(nil, IdentityCheckMetric{Result: ResultSuccess})

	records := rec.Records()
	require.Len(t, records, 3)
	assert.Equal(t, map[string]string{"result": "error", "error_class": "unauthorized"}, records[0].Tags)
	assert.Equal(t, "session.identity_check.duration", records[1].Name)
	assert.Equal(t, map[string]string{"result": "skipped", "reason": "circuit_open"}, records[2].Tags)
	assert.EqualValues(t, 2, rec.CountOf("session.identity_check"))
}

func TestEmitHelpersIgnoreNilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitCircuitOpen(nil, "breaker")
		EmitRedirect(nil, true)
		EmitLogout(nil, "user", "ok")
		EmitIdleTimeout(nil, time.Hour)
	})
	assert.Nil(t, CloneTags(nil))
	assert.IsType(t, Nop{}, OrNop(nil))
}
