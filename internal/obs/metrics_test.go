package obs

import (
	"testing"
	"time"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseType(t *testing.T) {
	assert.Equal(t, "eTick.", baseType("eTick.AAPL.NASDAQ"))
	assert.Equal(t, "eTick.", baseType("eTick."))
	assert.Equal(t, "eTimer", baseType("eTimer"))
	assert.Equal(t, "eLog", baseType("eLog"))
}

func TestCollectorCountsEvents(t *testing.T) {
	ee := event.New(time.Hour)
	ee.Start()
	defer ee.Stop()

	c := NewCollector(ee)
	c.Start()
	defer c.Stop()

	before := testutil.ToFloat64(eventsTotal.WithLabelValues("eTick."))
	require.NoError(t, ee.Put(event.Event{Type: "eTick.AAPL.NASDAQ"}))
	require.NoError(t, ee.Put(event.Event{Type: "eTick."}))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(eventsTotal.WithLabelValues("eTick."))-before == 2
	}, time.Second, time.Millisecond)

	// detached collector stops counting
	c.Stop()
	require.NoError(t, ee.Put(event.Event{Type: "eTick."}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before+2, testutil.ToFloat64(eventsTotal.WithLabelValues("eTick.")))
}
