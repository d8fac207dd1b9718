package sim_test

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/ystepanoff/glossy/internal/glossy"
	"github.com/ystepanoff/glossy/internal/sim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunFloodReachesEveryNode(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 16

	net := sim.NewNetwork(4, params, nil)

	results, err := net.RunFlood(1, []byte("multi-hop-msg"), true, 3, 12)
	if err != nil {
		t.Fatalf("RunFlood() error: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}

	for _, r := range results {
		if r.NodeID == 1 {
			continue // initiator does not "receive" its own flood
		}
		if r.RxCnt == 0 {
			t.Errorf("node %d never received the flood", r.NodeID)
		}
	}
}

func TestRunFloodRelaysPayloadContents(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	params.PayloadLen = 16

	net := sim.NewNetwork(4, params, nil)

	payload := []byte("multi-hop-msg")
	if _, err := net.RunFlood(1, payload, true, 3, 12); err != nil {
		t.Fatalf("RunFlood() error: %v", err)
	}

	for _, n := range net.Nodes {
		if n.ID == 1 {
			continue // initiator's own payload buffer is never overwritten by a reception
		}
		if got := n.Controller.GetPayloadLen(); got != len(payload) {
			t.Errorf("node %d: GetPayloadLen() = %d, want %d", n.ID, got, len(payload))
			continue
		}
		if got := n.Controller.Payload(); string(got) != string(payload) {
			t.Errorf("node %d: Payload() = %q, want %q", n.ID, got, payload)
		}
	}
}

func TestRunFloodUnknownInitiator(t *testing.T) {
	t.Parallel()

	params := glossy.DefaultParams()
	net := sim.NewNetwork(2, params, nil)

	_, err := net.RunFlood(99, []byte("x"), false, 1, 5)
	if err == nil {
		t.Fatal("RunFlood() with unknown initiator returned nil error")
	}
}
