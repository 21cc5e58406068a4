package worldtest

import (
	"testing"

	"fluidcraft.ai/internal/protocol"
	"fluidcraft.ai/internal/sim/catalogs"
)

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func actionResultCode(obs protocol.ObsMsg, ref string) string {
	for _, e := range obs.Events {
		if typ, _ := e["type"].(string); typ != "ACTION_RESULT" {
			continue
		}
		if got, _ := e["ref"].(string); got != ref {
			continue
		}
		if ok, _ := e["ok"].(bool); ok {
			return ""
		}
		if code, _ := e["code"].(string); code != "" {
			return code
		}
		return "E_INTERNAL"
	}
	return "E_INTERNAL"
}

func findEvent(obs protocol.ObsMsg, typ string) protocol.Event {
	for _, e := range obs.Events {
		if got, _ := e["type"].(string); got == typ {
			return e
		}
	}
	return nil
}

func stepUntilTick(t *testing.T, h *Harness, target uint64) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if h.W.CurrentTick() >= target {
			return
		}
		h.StepNoop()
	}
	t.Fatalf("stepUntilTick: exceeded iteration limit; now=%d target=%d", h.W.CurrentTick(), target)
}
