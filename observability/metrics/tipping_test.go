package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTippingMetrics(t *testing.T) {
	m := Tipping()
	if Tipping() != m {
		t.Fatalf("expected singleton registry")
	}

	before := testutil.ToFloat64(m.operations.WithLabelValues("record_tip", "success"))
	m.ObserveOperation("record_tip", "")
	if got := testutil.ToFloat64(m.operations.WithLabelValues("record_tip", "success")); got != before+1 {
		t.Fatalf("unexpected success count %v", got)
	}

	m.ObserveOperation("record_tip", "AmountTooLow")
	if got := testutil.ToFloat64(m.rejections.WithLabelValues("record_tip", "AmountTooLow")); got < 1 {
		t.Fatalf("expected rejection to be counted")
	}

	volume := testutil.ToFloat64(m.tipsVolume)
	m.ObserveTip(big.NewInt(1000), big.NewInt(50))
	if got := testutil.ToFloat64(m.tipsVolume); got != volume+1000 {
		t.Fatalf("unexpected tip volume %v", got)
	}

	var nilMetrics *TippingMetrics
	nilMetrics.ObserveOperation("noop", "")
	nilMetrics.ObserveTip(big.NewInt(1), nil)
	nilMetrics.RecordStreamDrop()
}
