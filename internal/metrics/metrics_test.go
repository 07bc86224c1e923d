package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(bookingCreated.WithLabelValues("conflict"))
	IncBookingCreated("conflict")
	IncBookingCreated("conflict")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingCreated.WithLabelValues("conflict")))

	IncChangePublished("inserted")
	assert.GreaterOrEqual(t, testutil.ToFloat64(changesPublished.WithLabelValues("inserted")), 1.0)

	SetStreamSubscribers(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(streamSubscribers))
}
